package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"email-gate/internal/domain"
)

// SQLiteIdentityRepository implementa IdentityRepository sobre SQLite.
type SQLiteIdentityRepository struct {
	db *sql.DB
}

func NewSQLiteIdentityRepository(db *sql.DB) *SQLiteIdentityRepository {
	return &SQLiteIdentityRepository{db: db}
}

func (r *SQLiteIdentityRepository) GetByID(ctx context.Context, identityID string) (domain.Identity, error) {
	const query = `
		SELECT identity_id, display_name, discriminator, verified_email
		FROM users
		WHERE identity_id = ?
	`
	return r.scanOne(ctx, query, identityID)
}

func (r *SQLiteIdentityRepository) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	const query = `
		SELECT identity_id, display_name, discriminator, verified_email
		FROM users
		WHERE verified_email = ?
	`
	return r.scanOne(ctx, query, email)
}

func (r *SQLiteIdentityRepository) GetByHandle(ctx context.Context, displayName, discriminator string) (domain.Identity, error) {
	const query = `
		SELECT identity_id, display_name, discriminator, verified_email
		FROM users
		WHERE display_name = ? AND discriminator = ?
		LIMIT 1
	`
	return r.scanOne(ctx, query, displayName, discriminator)
}

func (r *SQLiteIdentityRepository) CommitVerified(ctx context.Context, identity domain.Identity) (err error) {
	const deletePending = `DELETE FROM usercodes WHERE identity_id = ?`
	const upsertIdentity = `
		INSERT INTO users (identity_id, display_name, discriminator, verified_email)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identity_id) DO UPDATE
		SET display_name = excluded.display_name,
		    discriminator = excluded.discriminator,
		    verified_email = excluded.verified_email
	`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, deletePending, identity.ID); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}
	_, err = tx.ExecContext(ctx, upsertIdentity,
		identity.ID,
		identity.DisplayName,
		identity.Discriminator,
		identity.VerifiedEmail,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrEmailTaken
		}
		return fmt.Errorf("upsert identity: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteIdentityRepository) scanOne(ctx context.Context, query string, args ...any) (domain.Identity, error) {
	var ident domain.Identity
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&ident.ID,
		&ident.DisplayName,
		&ident.Discriminator,
		&ident.VerifiedEmail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return ident, nil
}

// SQLitePendingRepository implementa PendingRepository sobre SQLite.
// expires_at se guarda como segundos unix.
type SQLitePendingRepository struct {
	db *sql.DB
}

func NewSQLitePendingRepository(db *sql.DB) *SQLitePendingRepository {
	return &SQLitePendingRepository{db: db}
}

func (r *SQLitePendingRepository) Upsert(ctx context.Context, pending domain.PendingVerification) error {
	const query = `
		INSERT INTO usercodes (identity_id, email, code, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (identity_id) DO UPDATE
		SET email = excluded.email,
		    code = excluded.code,
		    expires_at = excluded.expires_at
	`
	_, err := r.db.ExecContext(ctx, query,
		pending.IdentityID,
		pending.Email,
		pending.Code,
		pending.ExpiresAt.Unix(),
	)
	return err
}

func (r *SQLitePendingRepository) FindActive(ctx context.Context, identityID, code string, now time.Time) (domain.PendingVerification, error) {
	const query = `
		SELECT identity_id, email, code, expires_at
		FROM usercodes
		WHERE identity_id = ? AND code = ? AND expires_at > ?
	`
	var (
		p         domain.PendingVerification
		expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, query, identityID, code, now.Unix()).Scan(
		&p.IdentityID,
		&p.Email,
		&p.Code,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PendingVerification{}, ErrNotFound
	}
	if err != nil {
		return domain.PendingVerification{}, err
	}
	p.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return p, nil
}

func (r *SQLitePendingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM usercodes WHERE expires_at <= ?`
	res, err := r.db.ExecContext(ctx, query, now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
