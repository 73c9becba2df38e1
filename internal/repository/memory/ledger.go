package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
)

// LedgerRepo is the in-memory append-only ledger.
type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) Append(ctx context.Context, e *domain.SyncLedgerEntry) error {
	defer r.s.lock(ctx)()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	stored := *e
	stored.Errors = append([]string{}, e.Errors...)
	r.s.st.ledger = append(r.s.st.ledger, stored)
	return nil
}

func (r *LedgerRepo) Recent(_ context.Context, limit int) ([]domain.SyncLedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := append([]domain.SyncLedgerEntry(nil), r.s.st.ledger...)
	// Appends are chronological; the stable sort keeps later appends first on equal timestamps.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SyncedAt.After(out[j].SyncedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
