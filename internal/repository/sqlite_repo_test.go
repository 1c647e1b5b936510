package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"email-gate/internal/db"
	"email-gate/internal/domain"
)

func newTestSQLiteStore(t *testing.T) *Store {
	t.Helper()

	sqlDB, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Errorf("close sqlite: %v", err)
		}
	})

	if err := db.MigrateSQLite(context.Background(), sqlDB); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return NewSQLiteStore(sqlDB)
}

func TestSQLitePending_UpsertReplacesPriorCode(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := domain.PendingVerification{IdentityID: "u1", Email: "a@school.edu", Code: "111111", ExpiresAt: now.Add(24 * time.Hour)}
	second := domain.PendingVerification{IdentityID: "u1", Email: "b@school.edu", Code: "222222", ExpiresAt: now.Add(48 * time.Hour)}

	if err := store.Pending.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert first: %v", err)
	}
	if err := store.Pending.Upsert(ctx, second); err != nil {
		t.Fatalf("upsert second: %v", err)
	}

	if _, err := store.Pending.FindActive(ctx, "u1", "111111", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected overwritten code to be gone, got %v", err)
	}

	got, err := store.Pending.FindActive(ctx, "u1", "222222", now)
	if err != nil {
		t.Fatalf("expected second code active, got %v", err)
	}
	if got.Email != "b@school.edu" {
		t.Fatalf("expected email replaced, got %s", got.Email)
	}
	if !got.ExpiresAt.Equal(second.ExpiresAt) {
		t.Fatalf("expected expiry %v, got %v", second.ExpiresAt, got.ExpiresAt)
	}
}

func TestSQLitePending_FindActiveRespectsExpiryAndIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	pending := domain.PendingVerification{IdentityID: "u1", Email: "a@school.edu", Code: "012345", ExpiresAt: now.Add(time.Hour)}
	if err := store.Pending.Upsert(ctx, pending); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := store.Pending.FindActive(ctx, "u2", "012345", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other identity to miss, got %v", err)
	}
	if _, err := store.Pending.FindActive(ctx, "u1", "012345", now.Add(time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected code at expiry instant to miss, got %v", err)
	}
	if _, err := store.Pending.FindActive(ctx, "u1", "012345", now.Add(59*time.Minute)); err != nil {
		t.Fatalf("expected code before expiry to match, got %v", err)
	}
}

func TestSQLitePending_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = store.Pending.Upsert(ctx, domain.PendingVerification{IdentityID: "old", Email: "o@school.edu", Code: "000000", ExpiresAt: now.Add(-time.Minute)})
	_ = store.Pending.Upsert(ctx, domain.PendingVerification{IdentityID: "new", Email: "n@school.edu", Code: "999999", ExpiresAt: now.Add(time.Minute)})

	n, err := store.Pending.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row deleted, got %d", n)
	}
	if _, err := store.Pending.FindActive(ctx, "new", "999999", now); err != nil {
		t.Fatalf("expected live code kept, got %v", err)
	}
}

func TestSQLiteIdentity_CommitVerified(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = store.Pending.Upsert(ctx, domain.PendingVerification{IdentityID: "u1", Email: "a@school.edu", Code: "123456", ExpiresAt: now.Add(time.Hour)})

	ident := domain.Identity{ID: "u1", DisplayName: "alice", Discriminator: "1234", VerifiedEmail: "a@school.edu"}
	if err := store.Identities.CommitVerified(ctx, ident); err != nil {
		t.Fatalf("commit verified: %v", err)
	}

	if _, err := store.Pending.FindActive(ctx, "u1", "123456", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pending row deleted, got %v", err)
	}

	byID, err := store.Identities.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID != ident {
		t.Fatalf("expected %+v, got %+v", ident, byID)
	}

	byHandle, err := store.Identities.GetByHandle(ctx, "alice", "1234")
	if err != nil || byHandle.VerifiedEmail != "a@school.edu" {
		t.Fatalf("expected lookup by handle, got %+v %v", byHandle, err)
	}

	// Re-verificar con otro email actualiza la fila existente.
	ident.VerifiedEmail = "alice@mail.school.edu"
	if err := store.Identities.CommitVerified(ctx, ident); err != nil {
		t.Fatalf("commit second email: %v", err)
	}
	if _, err := store.Identities.GetByEmail(ctx, "a@school.edu"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old email released, got %v", err)
	}
	byEmail, err := store.Identities.GetByEmail(ctx, "alice@mail.school.edu")
	if err != nil || byEmail.ID != "u1" {
		t.Fatalf("expected updated email, got %+v %v", byEmail, err)
	}
}

func TestSQLiteIdentity_EmailUniqueAcrossIdentities(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if err := store.Identities.CommitVerified(ctx, domain.Identity{ID: "u1", VerifiedEmail: "a@school.edu"}); err != nil {
		t.Fatalf("commit first: %v", err)
	}
	err := store.Identities.CommitVerified(ctx, domain.Identity{ID: "u2", VerifiedEmail: "a@school.edu"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := store.Identities.GetByID(ctx, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no row for u2, got %v", err)
	}
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("expected ping ok, got %v", err)
	}
}
