package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/repository"
)

// ActivationRepository implements port.ActivationStore using PostgreSQL.
// Every mutation is a single upsert keyed by principal id; there is no
// read-modify-write window for concurrent toggles to race through.
type ActivationRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewActivationRepository wires a PostgreSQL-backed activation store.
func NewActivationRepository(pool *pgxpool.Pool) *ActivationRepository {
	return &ActivationRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithExecutor returns a repository instance operating through the supplied executor.
func (r *ActivationRepository) WithExecutor(exec pgExecutor) *ActivationRepository {
	if exec == nil {
		return r
	}
	return &ActivationRepository{pool: r.pool, exec: exec, builder: r.builder, now: r.now}
}

// Get retrieves the activation record for a principal.
func (r *ActivationRepository) Get(ctx context.Context, principalID string) (*domain.ActivationRecord, error) {
	stmt, args, err := r.builder.
		Select(
			"principal_id",
			"activation_code",
			"activation_token",
			"requested_email",
			"two_factor_secret",
			"two_factor_enabled",
			"updated_at",
		).
		From("auth.activations").
		Where(squirrel.Eq{"principal_id": principalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select activation sql: %w", err)
	}

	var record domain.ActivationRecord
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&record.PrincipalID,
		&record.ActivationCode,
		&record.ActivationToken,
		&record.RequestedEmail,
		&record.TwoFactorSecret,
		&record.TwoFactorEnabled,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan activation: %w", err)
	}

	return &record, nil
}

// SetActivationArtifacts stores a fresh code/token pair, replacing any
// previous one.
func (r *ActivationRepository) SetActivationArtifacts(ctx context.Context, principalID, code, token string, requestedEmail *string) error {
	now := r.now().UTC()

	stmt, args, err := r.builder.
		Insert("auth.activations").
		Columns("principal_id", "activation_code", "activation_token", "requested_email", "two_factor_enabled", "updated_at").
		Values(principalID, code, token, requestedEmail, false, now).
		Suffix(`ON CONFLICT (principal_id) DO UPDATE SET
			activation_code = EXCLUDED.activation_code,
			activation_token = EXCLUDED.activation_token,
			requested_email = EXCLUDED.requested_email,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert activation artifacts sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert activation artifacts: %w", err)
	}

	return nil
}

// ConsumeActivation blanks code, token, and requested email atomically. A
// consumed code cannot be replayed; the blanking rides the same statement
// that authorizes the transition.
func (r *ActivationRepository) ConsumeActivation(ctx context.Context, principalID string) error {
	stmt, args, err := r.builder.
		Update("auth.activations").
		Set("activation_code", nil).
		Set("activation_token", nil).
		Set("requested_email", nil).
		Set("updated_at", r.now().UTC()).
		Where(squirrel.Eq{"principal_id": principalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume activation sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume activation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetTwoFactor writes secret and enabled together in one upsert. Enabling
// with a nil secret is rejected so the pair can never diverge.
func (r *ActivationRepository) SetTwoFactor(ctx context.Context, principalID string, secret *string, enabled bool) error {
	if enabled && (secret == nil || *secret == "") {
		return fmt.Errorf("two-factor secret is required when enabling")
	}
	if !enabled {
		secret = nil
	}

	now := r.now().UTC()

	stmt, args, err := r.builder.
		Insert("auth.activations").
		Columns("principal_id", "two_factor_secret", "two_factor_enabled", "updated_at").
		Values(principalID, secret, enabled, now).
		Suffix(`ON CONFLICT (principal_id) DO UPDATE SET
			two_factor_secret = EXCLUDED.two_factor_secret,
			two_factor_enabled = EXCLUDED.two_factor_enabled,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert two-factor sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert two-factor: %w", err)
	}

	return nil
}

var _ port.ActivationStore = (*ActivationRepository)(nil)
