package ledger

import (
	"context"
	"time"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// Page size bounds for Recent.
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Repository defines the data access contract for the ledger. There is no
// update or delete.
type Repository interface {
	Append(ctx context.Context, e *domain.SyncLedgerEntry) error
	Recent(ctx context.Context, limit int) ([]domain.SyncLedgerEntry, error)
}

// Service appends and lists ledger entries. It is safe for concurrent use.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a ledger service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Append stamps the entry and stores it.
func (s *Service) Append(ctx context.Context, e *domain.SyncLedgerEntry) error {
	if e.TriggeredBy == "" {
		return domain.ValidationError("ledger.append", "triggered_by is required")
	}
	if e.SyncedAt.IsZero() {
		e.SyncedAt = s.now()
	}
	if e.Errors == nil {
		e.Errors = []string{}
	}
	return s.repo.Append(ctx, e)
}

// Recent returns the newest entries first. limit <= 0 selects DefaultLimit;
// larger values are capped at MaxLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.SyncLedgerEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	entries, err := s.repo.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.SyncLedgerEntry{}
	}
	return entries, nil
}

// Trigger builds a triggered_by label such as "csv_import:maria".
func Trigger(source, actor string) string {
	if actor == "" {
		return source
	}
	return source + ":" + actor
}
