// Package memory provides an in-memory implementation of the service
// repositories. It backs `store.type: memory` for local development and
// the service-level tests.
//
// Transactions are serialised and implemented with snapshot/restore: a
// failing unit of work restores the state captured when it began. Reads
// outside a transaction may observe uncommitted writes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// MergeRecord is one vendor_merges audit row.
type MergeRecord struct {
	MasterID    string
	DuplicateID string
	Reason      string
	MergedAt    time.Time
}

type state struct {
	guests       map[string]domain.GuestIdentity
	guestOrder   []string
	reservations map[string]domain.ReservationRecord // keyed by external id
	vendors      map[string]domain.VendorIdentity
	transfers    map[string]string // transfer id -> vendor id
	products     map[string]string // product id -> vendor id
	users        map[string]domain.VendorUser
	merges       []MergeRecord
	ledger       []domain.SyncLedgerEntry
}

func newState() state {
	return state{
		guests:       make(map[string]domain.GuestIdentity),
		reservations: make(map[string]domain.ReservationRecord),
		vendors:      make(map[string]domain.VendorIdentity),
		transfers:    make(map[string]string),
		products:     make(map[string]string),
		users:        make(map[string]domain.VendorUser),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.guests {
		v.Stats = cloneStats(v.Stats)
		c.guests[k] = v
	}
	c.guestOrder = append([]string(nil), s.guestOrder...)
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.vendors {
		c.vendors[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	c.merges = append([]MergeRecord(nil), s.merges...)
	c.ledger = append([]domain.SyncLedgerEntry(nil), s.ledger...)
	return c
}

func cloneStats(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type txKey struct{}

// Store bundles the in-memory repositories.
type Store struct {
	Guests       *GuestRepo
	Reservations *ReservationRepo
	Vendors      *VendorRepo
	Ledger       *LedgerRepo

	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
}

// New returns an empty store.
func New() *Store {
	s := &Store{st: newState()}
	s.Guests = &GuestRepo{s: s}
	s.Reservations = &ReservationRepo{s: s}
	s.Vendors = &VendorRepo{s: s}
	s.Ledger = &LedgerRepo{s: s}
	return s
}

// WithinTx runs fn as one unit of work. Any error restores the state from
// before fn ran. Nested calls join the outer unit. Writes outside a unit
// wait for the running unit to finish, so a rollback never discards them.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return domain.FatalError("begin tx", err)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// lock takes the write lock for one repository call. Outside a unit of work
// it also holds txMu. The returned func releases both.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func now() time.Time { return time.Now().UTC() }
