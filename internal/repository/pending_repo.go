package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"email-gate/internal/domain"
)

// PendingRepository define el contrato de persistencia para códigos pendientes.
// Hay a lo sumo un código pendiente por identidad.
type PendingRepository interface {
	Upsert(ctx context.Context, pending domain.PendingVerification) error
	FindActive(ctx context.Context, identityID, code string, now time.Time) (domain.PendingVerification, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PgPendingRepository implementa PendingRepository usando pgxpool.
type PgPendingRepository struct {
	pool *pgxpool.Pool
}

func NewPgPendingRepository(pool *pgxpool.Pool) *PgPendingRepository {
	return &PgPendingRepository{pool: pool}
}

func (r *PgPendingRepository) Upsert(ctx context.Context, pending domain.PendingVerification) error {
	const query = `
		INSERT INTO usercodes (identity_id, email, code, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id) DO UPDATE
		SET email = EXCLUDED.email,
		    code = EXCLUDED.code,
		    expires_at = EXCLUDED.expires_at
	`
	_, err := r.pool.Exec(ctx, query,
		pending.IdentityID,
		pending.Email,
		pending.Code,
		pending.ExpiresAt.UTC(),
	)
	return err
}

func (r *PgPendingRepository) FindActive(ctx context.Context, identityID, code string, now time.Time) (domain.PendingVerification, error) {
	const query = `
		SELECT identity_id, email, code, expires_at
		FROM usercodes
		WHERE identity_id = $1 AND code = $2 AND expires_at > $3
	`
	var p domain.PendingVerification
	err := r.pool.QueryRow(ctx, query, identityID, code, now.UTC()).Scan(
		&p.IdentityID,
		&p.Email,
		&p.Code,
		&p.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingVerification{}, ErrNotFound
	}
	if err != nil {
		return domain.PendingVerification{}, err
	}
	return p, nil
}

func (r *PgPendingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM usercodes WHERE expires_at <= $1`
	tag, err := r.pool.Exec(ctx, query, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
