package vendormerge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"github.com/ignite/guest-reconciler/internal/repository/memory"
	"github.com/ignite/guest-reconciler/internal/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeClassifier) Classify(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func newTestService(t *testing.T, store *memory.Store, vendors VendorRepository, c Classifier) *Service {
	t.Helper()
	if vendors == nil {
		vendors = store.Vendors
	}
	svc, err := NewService(store, vendors, c, ledger.NewService(store.Ledger))
	require.NoError(t, err)
	return svc
}

func seedVendor(store *memory.Store, id, name string) {
	store.Vendors.SeedVendor(domain.VendorIdentity{ID: id, Name: name, IsActive: true})
}

func TestMerge_RepointsEverythingAndDeactivates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedVendor(store, "m", "Acme Transfers")
	seedVendor(store, "d", "ACME TRANSFERS S.A.")

	t1 := store.Vendors.SeedTransfer("d")
	t2 := store.Vendors.SeedTransfer("d")
	p1 := store.Vendors.SeedProduct("d")
	_, err := store.Vendors.SeedUser(domain.VendorUser{ID: "u1", VendorID: "m", Email: "ops@acme.com", IsActive: true})
	require.NoError(t, err)
	_, err = store.Vendors.SeedUser(domain.VendorUser{ID: "u2", VendorID: "d", Email: "OPS@acme.com", IsActive: true})
	require.NoError(t, err)
	_, err = store.Vendors.SeedUser(domain.VendorUser{ID: "u3", VendorID: "d", Email: "sales@acme.com", IsActive: true})
	require.NoError(t, err)

	svc := newTestService(t, store, nil, nil)
	res := svc.Merge(ctx, []MergeRequest{{MasterID: "m", DuplicateIDs: []string{"d"}}}, "ana")

	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.GroupsProcessed)
	assert.Equal(t, 1, res.VendorsDeactivated)
	assert.Equal(t, 5, res.DependentRecordsRepointed)
	assert.Equal(t, 1, res.UsersDeactivated)

	for _, id := range []string{t1, t2} {
		assert.Equal(t, "m", store.Vendors.TransferVendor(id))
	}
	assert.Equal(t, "m", store.Vendors.ProductVendor(p1))
	assert.Zero(t, store.Vendors.References("d"))

	dup, err := store.Vendors.Get(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, "ACME TRANSFERS S.A. [MERGED]", dup.Name)
	assert.False(t, dup.IsActive)

	u2, _ := store.Vendors.User("u2")
	assert.Equal(t, "m", u2.VendorID)
	assert.False(t, u2.IsActive, "clashing email is deactivated")
	u3, _ := store.Vendors.User("u3")
	assert.Equal(t, "m", u3.VendorID)
	assert.True(t, u3.IsActive)

	merges := store.Vendors.Merges()
	require.Len(t, merges, 1)
	assert.Equal(t, "d", merges[0].DuplicateID)
	assert.Equal(t, "duplicate of Acme Transfers", merges[0].Reason)

	entries, err := store.Ledger.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "vendor_merge:ana", entries[0].TriggeredBy)

	t.Run("re-run is a no-op", func(t *testing.T) {
		again := svc.Merge(ctx, []MergeRequest{{MasterID: "m", DuplicateIDs: []string{"d"}}}, "ana")
		assert.Empty(t, again.Errors)
		assert.Equal(t, 1, again.GroupsProcessed)
		assert.Zero(t, again.VendorsDeactivated)
		assert.Zero(t, again.DependentRecordsRepointed)

		dup, err := store.Vendors.Get(ctx, "d")
		require.NoError(t, err)
		assert.Equal(t, "ACME TRANSFERS S.A. [MERGED]", dup.Name)
		assert.Len(t, store.Vendors.Merges(), 1)
	})
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, *domain.SyncLedgerEntry) error {
	return errors.New("ledger unavailable")
}

func (failingLedger) Recent(context.Context, int) ([]domain.SyncLedgerEntry, error) {
	return nil, nil
}

func TestMerge_LedgerFailureIsLoggedAsError(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(prev) })

	store := memory.New()
	seedVendor(store, "m", "Acme Transfers")
	seedVendor(store, "d", "ACME TRANSFERS S.A.")

	svc, err := NewService(store, store.Vendors, nil, ledger.NewService(failingLedger{}))
	require.NoError(t, err)
	res := svc.Merge(context.Background(), []MergeRequest{{MasterID: "m", DuplicateIDs: []string{"d"}}}, "ana")

	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.VendorsDeactivated)

	var entry map[string]string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var e map[string]string
		require.NoError(t, json.Unmarshal(line, &e))
		if e["msg"] == "vendor merge ledger append failed" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "ledger unavailable", entry["error"])
}

func TestMerge_SameEmailOnTwoDuplicates(t *testing.T) {
	store := memory.New()
	seedVendor(store, "m", "Sol Tours")
	seedVendor(store, "d1", "Sol Tour")
	seedVendor(store, "d2", "Sol-Tours")
	_, err := store.Vendors.SeedUser(domain.VendorUser{ID: "a", VendorID: "d1", Email: "book@sol.mx", IsActive: true})
	require.NoError(t, err)
	_, err = store.Vendors.SeedUser(domain.VendorUser{ID: "b", VendorID: "d2", Email: "book@sol.mx", IsActive: true})
	require.NoError(t, err)

	res := newTestService(t, store, nil, nil).Merge(context.Background(),
		[]MergeRequest{{MasterID: "m", DuplicateIDs: []string{"d1", "d2"}}}, "ana")

	require.Empty(t, res.Errors)
	assert.Equal(t, 2, res.VendorsDeactivated)
	assert.Equal(t, 1, res.UsersDeactivated)

	a, _ := store.Vendors.User("a")
	b, _ := store.Vendors.User("b")
	assert.True(t, a.IsActive)
	assert.False(t, b.IsActive)
	assert.Equal(t, "m", a.VendorID)
	assert.Equal(t, "m", b.VendorID)
}

func TestMerge_GroupValidation(t *testing.T) {
	store := memory.New()
	seedVendor(store, "m", "Acme")
	seedVendor(store, "d", "Acme Inc")
	seedVendor(store, "gone", "Old Acme [MERGED]")

	tests := []struct {
		name    string
		req     MergeRequest
		wantErr string
	}{
		{"missing master", MergeRequest{MasterID: "nope", DuplicateIDs: []string{"d"}}, "master vendor nope"},
		{"master among duplicates", MergeRequest{MasterID: "m", DuplicateIDs: []string{"d", "m"}}, "into itself"},
		{"merged master", MergeRequest{MasterID: "gone", DuplicateIDs: []string{"d"}}, "already been merged"},
		{"unknown duplicate", MergeRequest{MasterID: "m", DuplicateIDs: []string{"d", "ghost"}}, "duplicate vendor ghost"},
		{"no duplicates", MergeRequest{MasterID: "m"}, "at least one vendor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestService(t, store, nil, nil).Merge(context.Background(), []MergeRequest{tt.req}, "ana")
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], tt.wantErr)
			assert.Zero(t, res.GroupsProcessed)

			d, err := store.Vendors.Get(context.Background(), "d")
			require.NoError(t, err)
			assert.True(t, d.IsActive)
		})
	}
}

// failingVendors injects an error into one step of the merge.
type failingVendors struct {
	*memory.VendorRepo
	deactivateErr error
	repointErr    error
}

func (f *failingVendors) Deactivate(ctx context.Context, ids []string) (int, error) {
	if f.deactivateErr != nil {
		return 0, f.deactivateErr
	}
	return f.VendorRepo.Deactivate(ctx, ids)
}

func (f *failingVendors) RepointTransfers(ctx context.Context, masterID string, ids []string) (int, error) {
	if f.repointErr != nil {
		return 0, f.repointErr
	}
	return f.VendorRepo.RepointTransfers(ctx, masterID, ids)
}

func TestMerge_FailedGroupRollsBackAlone(t *testing.T) {
	store := memory.New()
	seedVendor(store, "m", "Acme")
	seedVendor(store, "d", "Acme Inc")
	tr := store.Vendors.SeedTransfer("d")

	vendors := &failingVendors{VendorRepo: store.Vendors, deactivateErr: domain.ConflictError("deactivate vendors", "boom")}
	res := newTestService(t, store, vendors, nil).Merge(context.Background(),
		[]MergeRequest{{MasterID: "m", DuplicateIDs: []string{"d"}}}, "ana")

	require.Len(t, res.Errors, 1)
	assert.False(t, res.Aborted)
	assert.Equal(t, "d", store.Vendors.TransferVendor(tr), "repoint rolled back with the group")
	assert.Empty(t, store.Vendors.Merges())
}

func TestMerge_FatalErrorStopsRun(t *testing.T) {
	store := memory.New()
	seedVendor(store, "m", "Acme")
	seedVendor(store, "d", "Acme Inc")
	seedVendor(store, "m2", "Sol")
	seedVendor(store, "d2", "Sol SA")

	vendors := &failingVendors{VendorRepo: store.Vendors, repointErr: domain.FatalError("repoint transfers", errors.New("connection reset"))}
	res := newTestService(t, store, vendors, nil).Merge(context.Background(), []MergeRequest{
		{MasterID: "m", DuplicateIDs: []string{"d"}},
		{MasterID: "m2", DuplicateIDs: []string{"d2"}},
	}, "ana")

	assert.True(t, res.Aborted)
	assert.Len(t, res.Errors, 1)
	assert.Zero(t, res.GroupsProcessed)
	d2, err := store.Vendors.Get(context.Background(), "d2")
	require.NoError(t, err)
	assert.True(t, d2.IsActive)
}

func TestSaveVendor(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedVendor(store, "gone", "Old Acme [MERGED]")
	svc := newTestService(t, store, nil, nil)

	saved, err := svc.SaveVendor(ctx, &domain.VendorIdentity{Name: "  Nuevo Transporte ", Email: "OPS@NT.MX", IsActive: true})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "Nuevo Transporte", saved.Name)
	assert.Equal(t, "ops@nt.mx", saved.Email)

	_, err = svc.SaveVendor(ctx, &domain.VendorIdentity{Name: " "})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = svc.SaveVendor(ctx, &domain.VendorIdentity{Name: "Sneaky [MERGED]"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = svc.SaveVendor(ctx, &domain.VendorIdentity{ID: "gone", Name: "Old Acme Revived", IsActive: true})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	v, err := svc.Vendor(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, "Old Acme [MERGED]", v.Name)
}
