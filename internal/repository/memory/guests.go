package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
)

// GuestRepo is the in-memory guest repository.
type GuestRepo struct{ s *Store }

func (r *GuestRepo) FindByLegacyID(_ context.Context, legacyID string) (*domain.GuestIdentity, error) {
	return r.first("find guest by legacy id", func(g *domain.GuestIdentity) bool {
		return legacyID != "" && g.LegacyID == legacyID
	})
}

func (r *GuestRepo) FindByEmail(_ context.Context, email string) (*domain.GuestIdentity, error) {
	return r.first("find guest by email", func(g *domain.GuestIdentity) bool {
		return email != "" && strings.EqualFold(g.Email, email)
	})
}

func (r *GuestRepo) FindByFullName(_ context.Context, fullName string) (*domain.GuestIdentity, error) {
	return r.first("find guest by name", func(g *domain.GuestIdentity) bool {
		return fullName != "" && strings.EqualFold(g.FullName, fullName)
	})
}

func (r *GuestRepo) Get(_ context.Context, id string) (*domain.GuestIdentity, error) {
	return r.first("get guest", func(g *domain.GuestIdentity) bool { return g.ID == id })
}

func (r *GuestRepo) Create(ctx context.Context, g *domain.GuestIdentity) error {
	defer r.s.lock(ctx)()

	if g.LegacyID != "" {
		for _, existing := range r.s.st.guests {
			if existing.LegacyID == g.LegacyID {
				return domain.ConflictError("create guest", "legacy id %s already exists", g.LegacyID)
			}
		}
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.ProfileType == "" {
		g.ProfileType = domain.ProfileGuest
	}
	g.Stats = domain.NonEmptyStats(g.Stats)
	g.CreatedAt = now()
	g.UpdatedAt = g.CreatedAt

	stored := *g
	stored.Stats = cloneStats(g.Stats)
	r.s.st.guests[g.ID] = stored
	r.s.st.guestOrder = append(r.s.st.guestOrder, g.ID)
	return nil
}

func (r *GuestRepo) Update(ctx context.Context, id string, patch *domain.GuestIdentity) (*domain.GuestIdentity, error) {
	defer r.s.lock(ctx)()

	g, ok := r.s.st.guests[id]
	if !ok {
		return nil, domain.NotFoundError("update guest", "guest %s", id)
	}
	g.Stats = cloneStats(g.Stats)
	g.ApplyPatch(patch)
	g.UpdatedAt = now()
	r.s.st.guests[id] = g

	out := g
	out.Stats = cloneStats(g.Stats)
	return &out, nil
}

func (r *GuestRepo) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.st.guests), nil
}

// first scans guests in creation order.
func (r *GuestRepo) first(op string, match func(*domain.GuestIdentity) bool) (*domain.GuestIdentity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, id := range r.s.st.guestOrder {
		g := r.s.st.guests[id]
		if match(&g) {
			g.Stats = cloneStats(g.Stats)
			return &g, nil
		}
	}
	return nil, &domain.Error{Kind: domain.KindNotFound, Op: op, Err: domain.ErrNotFound}
}
