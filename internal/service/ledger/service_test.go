package ledger

import (
	"context"
	"testing"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo records calls for assertions.
type mockRepo struct {
	entries   []domain.SyncLedgerEntry
	lastLimit int
}

func (m *mockRepo) Append(_ context.Context, e *domain.SyncLedgerEntry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockRepo) Recent(_ context.Context, limit int) ([]domain.SyncLedgerEntry, error) {
	m.lastLimit = limit
	return nil, nil
}

func TestAppend_StampsEntry(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo)

	e := &domain.SyncLedgerEntry{TriggeredBy: "scheduled", Created: 2}
	require.NoError(t, svc.Append(context.Background(), e))

	require.Len(t, repo.entries, 1)
	assert.False(t, repo.entries[0].SyncedAt.IsZero())
	assert.NotNil(t, repo.entries[0].Errors)
}

func TestAppend_RequiresTrigger(t *testing.T) {
	svc := NewService(&mockRepo{})
	err := svc.Append(context.Background(), &domain.SyncLedgerEntry{})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestRecent_ClampsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-5, DefaultLimit},
		{50, 50},
		{10000, MaxLimit},
	}
	for _, tt := range tests {
		repo := &mockRepo{}
		entries, err := NewService(repo).Recent(context.Background(), tt.in)
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Equal(t, tt.want, repo.lastLimit)
	}
}

func TestTrigger(t *testing.T) {
	assert.Equal(t, "csv_import:maria", Trigger("csv_import", "maria"))
	assert.Equal(t, "scheduled", Trigger("scheduled", ""))
}
