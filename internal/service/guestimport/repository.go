package guestimport

import (
	"context"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// Transactor runs a unit of work in one store transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GuestRepository is the data access contract for canonical guests. Lookups
// return an error matching domain.ErrNotFound when nothing matches.
type GuestRepository interface {
	FindByLegacyID(ctx context.Context, legacyID string) (*domain.GuestIdentity, error)
	FindByEmail(ctx context.Context, email string) (*domain.GuestIdentity, error)
	FindByFullName(ctx context.Context, fullName string) (*domain.GuestIdentity, error)
	Create(ctx context.Context, g *domain.GuestIdentity) error
	Update(ctx context.Context, id string, patch *domain.GuestIdentity) (*domain.GuestIdentity, error)
}

// LedgerAppender records a finished run.
type LedgerAppender interface {
	Append(ctx context.Context, e *domain.SyncLedgerEntry) error
}
