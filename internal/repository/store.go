package repository

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"email-gate/internal/db"
)

// Store agrupa los dos repositorios, que siempre viven en la misma base.
type Store struct {
	Identities IdentityRepository
	Pending    PendingRepository

	ping  func(ctx context.Context) error
	close func()
}

// NewPgStore arma el Store sobre Postgres.
func NewPgStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Identities: NewPgIdentityRepository(pool),
		Pending:    NewPgPendingRepository(pool),
		ping:       func(ctx context.Context) error { return db.Ping(ctx, pool) },
		close:      pool.Close,
	}
}

// NewSQLiteStore arma el Store sobre SQLite.
func NewSQLiteStore(sqlDB *sql.DB) *Store {
	return &Store{
		Identities: NewSQLiteIdentityRepository(sqlDB),
		Pending:    NewSQLitePendingRepository(sqlDB),
		ping:       sqlDB.PingContext,
		close:      func() { _ = sqlDB.Close() },
	}
}

// Ping verifica conectividad con la base subyacente.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close libera las conexiones.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
