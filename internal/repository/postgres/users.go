package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/repository"
)

const uniqueViolationCode = "23505"

// UserRepository implements port.UserStore using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user store.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithExecutor returns a repository instance operating through the supplied
// executor; used by tests and transactional callers.
func (r *UserRepository) WithExecutor(exec pgExecutor) *UserRepository {
	if exec == nil {
		return r
	}
	return &UserRepository{pool: r.pool, exec: exec, builder: r.builder}
}

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"is_active",
	"remember_me",
	"roles",
	"refresh_token_hash",
	"registered_at",
	"last_login",
}

// Create inserts a new principal row.
func (r *UserRepository) Create(ctx context.Context, principal domain.Principal) error {
	query := r.builder.Insert("auth.principals").
		Columns(userColumns...).
		Values(
			principal.ID,
			principal.Email,
			principal.PasswordHash,
			principal.IsActive,
			principal.RememberMe,
			principal.Roles,
			principal.RefreshTokenHash,
			principal.RegisteredAt,
			principal.LastLogin,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert principal sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert principal: %w", err)
	}

	return nil
}

// GetByID retrieves a principal by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("auth.principals").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal sql: %w", err)
	}

	return r.scanOne(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves a principal by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("auth.principals").
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal by email sql: %w", err)
	}

	return r.scanOne(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *UserRepository) scanOne(row pgx.Row) (*domain.Principal, error) {
	var (
		principal   domain.Principal
		refreshHash *string
		lastLogin   *time.Time
	)

	if err := row.Scan(
		&principal.ID,
		&principal.Email,
		&principal.PasswordHash,
		&principal.IsActive,
		&principal.RememberMe,
		&principal.Roles,
		&refreshHash,
		&principal.RegisteredAt,
		&lastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}

	principal.RefreshTokenHash = refreshHash
	principal.LastLogin = lastLogin

	return &principal, nil
}

// UpdateRotationState replaces the stored refresh token hash and remember-me
// flag in a single statement.
func (r *UserRepository) UpdateRotationState(ctx context.Context, id string, state domain.RotationState) error {
	stmt, args, err := r.builder.
		Update("auth.principals").
		Set("refresh_token_hash", state.RefreshTokenHash).
		Set("remember_me", state.RememberMe).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update rotation state sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update rotation state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword rewrites the stored credential hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.
		Update("auth.principals").
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Activate flips the is_active flag.
func (r *UserRepository) Activate(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update("auth.principals").
		Set("is_active", true).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build activate principal sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("activate principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateEmail replaces the principal's email address.
func (r *UserRepository) UpdateEmail(ctx context.Context, id string, email string) error {
	stmt, args, err := r.builder.
		Update("auth.principals").
		Set("email", email).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update email sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrConflict
		}
		return fmt.Errorf("update email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLogin stamps the last successful authentication.
func (r *UserRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("auth.principals").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("record login: %w", err)
	}

	return nil
}

var _ port.UserStore = (*UserRepository)(nil)
