package vendormerge

import (
	"context"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// Transactor runs a unit of work in one store transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// VendorRepository is the data access contract for vendors and the records
// that reference them. The merge methods run inside Transactor.WithinTx.
type VendorRepository interface {
	Roster(ctx context.Context) ([]domain.VendorUsage, error)
	LockVendors(ctx context.Context, ids []string) ([]domain.VendorIdentity, error)
	RepointTransfers(ctx context.Context, masterID string, duplicateIDs []string) (int, error)
	RepointProducts(ctx context.Context, masterID string, duplicateIDs []string) (int, error)
	ListUsers(ctx context.Context, vendorIDs []string) ([]domain.VendorUser, error)
	MoveUser(ctx context.Context, userID, vendorID string, deactivate bool) error
	Deactivate(ctx context.Context, ids []string) (int, error)
	RecordMerge(ctx context.Context, masterID, duplicateID, reason string) error
	Upsert(ctx context.Context, v *domain.VendorIdentity) (*domain.VendorIdentity, error)
	Get(ctx context.Context, id string) (*domain.VendorIdentity, error)
}

// Classifier is the text-classification collaborator. It returns the raw
// model reply.
type Classifier interface {
	Classify(ctx context.Context, system, prompt string) (string, error)
}

// LedgerAppender records a finished merge run.
type LedgerAppender interface {
	Append(ctx context.Context, e *domain.SyncLedgerEntry) error
}
