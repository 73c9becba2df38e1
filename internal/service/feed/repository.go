package feed

import (
	"context"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// Transactor runs a unit of work in one store transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GuestRepository is the subset of guest storage the feed needs.
type GuestRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.GuestIdentity, error)
	FindByFullName(ctx context.Context, fullName string) (*domain.GuestIdentity, error)
	Create(ctx context.Context, g *domain.GuestIdentity) error
}

// ReservationRepository stores reservations keyed by external id. Upsert
// reports whether a new row was inserted.
type ReservationRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*domain.ReservationRecord, error)
	Upsert(ctx context.Context, r *domain.ReservationRecord) (bool, error)
}
