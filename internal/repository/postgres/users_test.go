package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/repository"
)

func newUserRepoMock(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return NewUserRepository(nil).WithExecutor(mock), mock
}

func samplePrincipal() domain.Principal {
	return domain.Principal{
		ID:           "11111111-1111-1111-1111-111111111111",
		Email:        "user@example.com",
		PasswordHash: "salt:hash",
		IsActive:     false,
		Roles:        []string{"user"},
		RegisteredAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestUserRepositoryCreate(t *testing.T) {
	repo, mock := newUserRepoMock(t)
	principal := samplePrincipal()

	mock.ExpectExec(`INSERT INTO auth\.principals`).
		WithArgs(
			principal.ID,
			principal.Email,
			principal.PasswordHash,
			principal.IsActive,
			principal.RememberMe,
			principal.Roles,
			principal.RefreshTokenHash,
			principal.RegisteredAt,
			principal.LastLogin,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), principal); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryCreateConflict(t *testing.T) {
	repo, mock := newUserRepoMock(t)
	principal := samplePrincipal()

	mock.ExpectExec(`INSERT INTO auth\.principals`).
		WithArgs(
			principal.ID,
			principal.Email,
			principal.PasswordHash,
			principal.IsActive,
			principal.RememberMe,
			principal.Roles,
			principal.RefreshTokenHash,
			principal.RegisteredAt,
			principal.LastLogin,
		).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.Create(context.Background(), principal); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("Create = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryGetByEmail(t *testing.T) {
	repo, mock := newUserRepoMock(t)
	registered := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	hash := "refresh-hash"

	mock.ExpectQuery(`SELECT .+ FROM auth\.principals WHERE email = \$1`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns).AddRow(
			"11111111-1111-1111-1111-111111111111",
			"user@example.com",
			"salt:hash",
			true,
			true,
			[]string{"user"},
			&hash,
			registered,
			(*time.Time)(nil),
		))

	principal, err := repo.GetByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if principal.Email != "user@example.com" || !principal.IsActive {
		t.Fatalf("unexpected principal %+v", principal)
	}
	if principal.RefreshTokenHash == nil || *principal.RefreshTokenHash != "refresh-hash" {
		t.Fatal("refresh token hash not scanned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectQuery(`SELECT .+ FROM auth\.principals WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetByID = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryUpdateRotationState(t *testing.T) {
	repo, mock := newUserRepoMock(t)
	hash := "new-hash"

	mock.ExpectExec(`UPDATE auth\.principals SET refresh_token_hash = \$1, remember_me = \$2 WHERE id = \$3`).
		WithArgs(&hash, true, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateRotationState(context.Background(), "user-1", domain.RotationState{
		RefreshTokenHash: &hash,
		RememberMe:       true,
	})
	if err != nil {
		t.Fatalf("UpdateRotationState: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryUpdateRotationStateNotFound(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectExec(`UPDATE auth\.principals SET refresh_token_hash = \$1, remember_me = \$2 WHERE id = \$3`).
		WithArgs((*string)(nil), false, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateRotationState(context.Background(), "missing", domain.RotationState{})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("UpdateRotationState = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryActivate(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectExec(`UPDATE auth\.principals SET is_active = \$1 WHERE id = \$2`).
		WithArgs(true, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Activate(context.Background(), "user-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserRepositoryUpdateEmailConflict(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectExec(`UPDATE auth\.principals SET email = \$1 WHERE id = \$2`).
		WithArgs("taken@example.com", "user-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.UpdateEmail(context.Background(), "user-1", "taken@example.com"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("UpdateEmail = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
