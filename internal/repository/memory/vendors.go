package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
)

// VendorRepo is the in-memory vendor repository. Besides the merge
// operations it exposes seeding and inspection helpers for dev data and
// tests.
type VendorRepo struct{ s *Store }

func (r *VendorRepo) Roster(context.Context) ([]domain.VendorUsage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.VendorUsage
	for _, v := range r.s.st.vendors {
		if v.IsMerged() {
			continue
		}
		out = append(out, domain.VendorUsage{
			Vendor:    v,
			Transfers: countRefs(r.s.st.transfers, v.ID),
			Products:  countRefs(r.s.st.products, v.ID),
			Users:     r.countUsers(v.ID),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total() != out[j].Total() {
			return out[i].Total() > out[j].Total()
		}
		return out[i].Vendor.Name < out[j].Vendor.Name
	})
	return out, nil
}

func (r *VendorRepo) LockVendors(_ context.Context, ids []string) ([]domain.VendorIdentity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.VendorIdentity
	for _, id := range ids {
		if v, ok := r.s.st.vendors[id]; ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *VendorRepo) RepointTransfers(ctx context.Context, masterID string, duplicateIDs []string) (int, error) {
	defer r.s.lock(ctx)()
	return repointRefs(r.s.st.transfers, masterID, duplicateIDs), nil
}

func (r *VendorRepo) RepointProducts(ctx context.Context, masterID string, duplicateIDs []string) (int, error) {
	defer r.s.lock(ctx)()
	return repointRefs(r.s.st.products, masterID, duplicateIDs), nil
}

func (r *VendorRepo) ListUsers(_ context.Context, vendorIDs []string) ([]domain.VendorUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	want := make(map[string]bool, len(vendorIDs))
	for _, id := range vendorIDs {
		want[id] = true
	}
	var out []domain.VendorUser
	for _, u := range r.s.st.users {
		if want[u.VendorID] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VendorID != out[j].VendorID {
			return out[i].VendorID < out[j].VendorID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MoveUser enforces the same rule as the partial unique index on
// vendor_users: one active user per vendor and email.
func (r *VendorRepo) MoveUser(ctx context.Context, userID, vendorID string, deactivate bool) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.st.users[userID]
	if !ok {
		return domain.NotFoundError("move vendor user", "user %s", userID)
	}
	u.VendorID = vendorID
	u.IsActive = u.IsActive && !deactivate
	if u.IsActive && r.activeEmailTaken(vendorID, u.Email, u.ID) {
		return domain.ConflictError("move vendor user",
			"duplicate key value violates unique constraint: active user %s already exists for vendor %s", u.Email, vendorID)
	}
	r.s.st.users[userID] = u
	return nil
}

func (r *VendorRepo) Deactivate(ctx context.Context, ids []string) (int, error) {
	defer r.s.lock(ctx)()

	n := 0
	for _, id := range ids {
		v, ok := r.s.st.vendors[id]
		if !ok || v.IsMerged() {
			continue
		}
		v.IsActive = false
		v.Name = domain.MergedName(v.Name)
		v.UpdatedAt = now()
		r.s.st.vendors[id] = v
		n++
	}
	return n, nil
}

func (r *VendorRepo) RecordMerge(ctx context.Context, masterID, duplicateID, reason string) error {
	defer r.s.lock(ctx)()
	r.s.st.merges = append(r.s.st.merges, MergeRecord{
		MasterID: masterID, DuplicateID: duplicateID, Reason: reason, MergedAt: now(),
	})
	return nil
}

func (r *VendorRepo) Upsert(ctx context.Context, v *domain.VendorIdentity) (*domain.VendorIdentity, error) {
	defer r.s.lock(ctx)()

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	existing, ok := r.s.st.vendors[v.ID]
	if ok && existing.IsMerged() {
		return nil, domain.ConflictError("upsert vendor", "vendor %s has been merged and cannot be edited", v.ID)
	}
	saved := *v
	saved.UpdatedAt = now()
	if ok {
		saved.CreatedAt = existing.CreatedAt
		saved.LegacyID = existing.LegacyID
	} else {
		saved.CreatedAt = saved.UpdatedAt
	}
	r.s.st.vendors[v.ID] = saved
	return &saved, nil
}

func (r *VendorRepo) Get(_ context.Context, id string) (*domain.VendorIdentity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.st.vendors[id]
	if !ok {
		return nil, domain.NotFoundError("get vendor", "vendor %s", id)
	}
	return &v, nil
}

// SeedVendor stores v as-is.
func (r *VendorRepo) SeedVendor(v domain.VendorIdentity) {
	defer r.s.lock(context.Background())()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
		v.UpdatedAt = v.CreatedAt
	}
	r.s.st.vendors[v.ID] = v
}

// SeedTransfer adds a transfer booked with vendorID and returns its id.
func (r *VendorRepo) SeedTransfer(vendorID string) string {
	defer r.s.lock(context.Background())()
	id := uuid.New().String()
	r.s.st.transfers[id] = vendorID
	return id
}

// SeedProduct adds a product sold by vendorID and returns its id.
func (r *VendorRepo) SeedProduct(vendorID string) string {
	defer r.s.lock(context.Background())()
	id := uuid.New().String()
	r.s.st.products[id] = vendorID
	return id
}

// SeedUser adds a vendor user, enforcing the active email rule.
func (r *VendorRepo) SeedUser(u domain.VendorUser) (string, error) {
	defer r.s.lock(context.Background())()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.IsActive && r.activeEmailTaken(u.VendorID, u.Email, u.ID) {
		return "", domain.ConflictError("seed vendor user", "active user %s already exists for vendor %s", u.Email, u.VendorID)
	}
	r.s.st.users[u.ID] = u
	return u.ID, nil
}

// TransferVendor returns the vendor a transfer points at.
func (r *VendorRepo) TransferVendor(transferID string) string {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.st.transfers[transferID]
}

// ProductVendor returns the vendor a product points at.
func (r *VendorRepo) ProductVendor(productID string) string {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.st.products[productID]
}

// User returns a vendor user by id.
func (r *VendorRepo) User(id string) (domain.VendorUser, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.st.users[id]
	return u, ok
}

// References counts transfers, products and users pointing at vendorID.
func (r *VendorRepo) References(vendorID string) int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return countRefs(r.s.st.transfers, vendorID) + countRefs(r.s.st.products, vendorID) + r.countUsers(vendorID)
}

// Merges returns the vendor_merges audit rows.
func (r *VendorRepo) Merges() []MergeRecord {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]MergeRecord(nil), r.s.st.merges...)
}

func (r *VendorRepo) countUsers(vendorID string) int {
	n := 0
	for _, u := range r.s.st.users {
		if u.VendorID == vendorID {
			n++
		}
	}
	return n
}

func (r *VendorRepo) activeEmailTaken(vendorID, email, exceptID string) bool {
	for _, other := range r.s.st.users {
		if other.ID != exceptID && other.VendorID == vendorID && other.IsActive &&
			strings.EqualFold(other.Email, email) {
			return true
		}
	}
	return false
}

func countRefs(refs map[string]string, vendorID string) int {
	n := 0
	for _, v := range refs {
		if v == vendorID {
			n++
		}
	}
	return n
}

func repointRefs(refs map[string]string, masterID string, duplicateIDs []string) int {
	dup := make(map[string]bool, len(duplicateIDs))
	for _, id := range duplicateIDs {
		dup[id] = true
	}
	n := 0
	for id, vendorID := range refs {
		if dup[vendorID] {
			refs[id] = masterID
			n++
		}
	}
	return n
}
