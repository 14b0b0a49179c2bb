package port

import (
	"context"
	"time"

	"github.com/starcoex/auth-platform/internal/core/domain"
)

// UserStore exposes persistence behavior for principals.
type UserStore interface {
	Create(ctx context.Context, principal domain.Principal) error
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	// UpdateRotationState replaces the stored refresh token hash and remember-me
	// flag in a single write; a nil hash clears the rotation state.
	UpdateRotationState(ctx context.Context, id string, state domain.RotationState) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	// Activate flips is_active; paired with ActivationStore.ConsumeActivation
	// by the activation flow.
	Activate(ctx context.Context, id string) error
	UpdateEmail(ctx context.Context, id string, email string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}
