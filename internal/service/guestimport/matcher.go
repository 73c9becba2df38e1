package guestimport

import (
	"context"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// Matcher finds the canonical guest a normalized row most likely refers to.
type Matcher struct {
	guests GuestRepository
}

// NewMatcher creates a matcher over the guest repository.
func NewMatcher(guests GuestRepository) *Matcher {
	return &Matcher{guests: guests}
}

// Match returns at most one candidate, or nil. Lookups run in order legacy
// id, email, full name and the first hit wins. When several guests share a
// name the repository's ordering (oldest first) decides.
func (m *Matcher) Match(ctx context.Context, row NormalizedRow) (*domain.GuestIdentity, error) {
	lookups := []struct {
		key  string
		find func(context.Context, string) (*domain.GuestIdentity, error)
	}{
		{row.LegacyID, m.guests.FindByLegacyID},
		{row.Email, m.guests.FindByEmail},
		{row.FullName, m.guests.FindByFullName},
	}
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		g, err := l.find(ctx, l.key)
		if err == nil {
			return g, nil
		}
		if !domain.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}
