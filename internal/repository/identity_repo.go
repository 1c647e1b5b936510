package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"email-gate/internal/domain"
)

// IdentityRepository define el contrato de persistencia para identidades verificadas.
type IdentityRepository interface {
	GetByID(ctx context.Context, identityID string) (domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (domain.Identity, error)
	GetByHandle(ctx context.Context, displayName, discriminator string) (domain.Identity, error)
	// CommitVerified borra el código pendiente y guarda la identidad en una transacción.
	CommitVerified(ctx context.Context, identity domain.Identity) error
}

// PgIdentityRepository implementa IdentityRepository usando pgxpool.
type PgIdentityRepository struct {
	pool *pgxpool.Pool
}

func NewPgIdentityRepository(pool *pgxpool.Pool) *PgIdentityRepository {
	return &PgIdentityRepository{pool: pool}
}

const pgUniqueViolation = "23505"

func (r *PgIdentityRepository) GetByID(ctx context.Context, identityID string) (domain.Identity, error) {
	const query = `
		SELECT identity_id, display_name, discriminator, verified_email
		FROM users
		WHERE identity_id = $1
	`
	return r.scanOne(ctx, query, identityID)
}

func (r *PgIdentityRepository) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	const query = `
		SELECT identity_id, display_name, discriminator, verified_email
		FROM users
		WHERE verified_email = $1
	`
	return r.scanOne(ctx, query, email)
}

func (r *PgIdentityRepository) GetByHandle(ctx context.Context, displayName, discriminator string) (domain.Identity, error) {
	const query = `
		SELECT identity_id, display_name, discriminator, verified_email
		FROM users
		WHERE display_name = $1 AND discriminator = $2
		LIMIT 1
	`
	return r.scanOne(ctx, query, displayName, discriminator)
}

func (r *PgIdentityRepository) CommitVerified(ctx context.Context, identity domain.Identity) error {
	const deletePending = `DELETE FROM usercodes WHERE identity_id = $1`
	const upsertIdentity = `
		INSERT INTO users (identity_id, display_name, discriminator, verified_email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    discriminator = EXCLUDED.discriminator,
		    verified_email = EXCLUDED.verified_email
	`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deletePending, identity.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsertIdentity,
			identity.ID,
			identity.DisplayName,
			identity.Discriminator,
			identity.VerifiedEmail,
		)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("commit verified identity: %w", err)
	}
	return nil
}

func (r *PgIdentityRepository) scanOne(ctx context.Context, query string, args ...any) (domain.Identity, error) {
	var ident domain.Identity
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ident.ID,
		&ident.DisplayName,
		&ident.Discriminator,
		&ident.VerifiedEmail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return ident, nil
}
