package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
)

// ReservationRepo is the in-memory reservation repository.
type ReservationRepo struct{ s *Store }

func (r *ReservationRepo) FindByExternalID(_ context.Context, externalID string) (*domain.ReservationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.st.reservations[externalID]
	if !ok {
		return nil, domain.NotFoundError("find reservation", "reservation %s", externalID)
	}
	return &rec, nil
}

func (r *ReservationRepo) Upsert(ctx context.Context, rec *domain.ReservationRecord) (bool, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.guests[rec.GuestID]; !ok {
		return false, domain.ConflictError("upsert reservation", "guest %s does not exist", rec.GuestID)
	}
	if existing, ok := r.s.st.reservations[rec.ExternalID]; ok {
		existing.Room = rec.Room
		existing.Arrival = rec.Arrival
		existing.Departure = rec.Departure
		existing.Status = rec.Status
		existing.UpdatedAt = now()
		r.s.st.reservations[rec.ExternalID] = existing
		rec.ID = existing.ID
		rec.GuestID = existing.GuestID
		return false, nil
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = now()
	rec.UpdatedAt = rec.CreatedAt
	r.s.st.reservations[rec.ExternalID] = *rec
	return true, nil
}

func (r *ReservationRepo) Count(context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.st.reservations), nil
}
