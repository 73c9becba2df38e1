package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
)

// ReservationRepo persists PMS reservations keyed by their external id.
type ReservationRepo struct{ db *sql.DB }

// NewReservationRepo creates a Postgres-backed reservation repository.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// FindByExternalID returns the reservation with the given PMS id.
func (r *ReservationRepo) FindByExternalID(ctx context.Context, externalID string) (*domain.ReservationRecord, error) {
	var rec domain.ReservationRecord
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, opera_resv_id, guest_id, room, arrival, departure, status, created_at, updated_at
		FROM reservations WHERE opera_resv_id = $1
	`, externalID).Scan(&rec.ID, &rec.ExternalID, &rec.GuestID, &rec.Room, &rec.Arrival,
		&rec.Departure, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, classify("find reservation", err)
	}
	return &rec, nil
}

// Upsert inserts the reservation or updates room, dates and status in place
// when the external id already exists. It reports whether a row was created.
func (r *ReservationRepo) Upsert(ctx context.Context, rec *domain.ReservationRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	var inserted bool
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO reservations (id, opera_resv_id, guest_id, room, arrival, departure, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (opera_resv_id) DO UPDATE SET
			room       = EXCLUDED.room,
			arrival    = EXCLUDED.arrival,
			departure  = EXCLUDED.departure,
			status     = EXCLUDED.status,
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted
	`, rec.ID, rec.ExternalID, rec.GuestID, rec.Room, rec.Arrival, rec.Departure, string(rec.Status),
	).Scan(&rec.ID, &inserted)
	if err != nil {
		return false, classify("upsert reservation", err)
	}
	return inserted, nil
}

// Count returns the number of reservations.
func (r *ReservationRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&n); err != nil {
		return 0, classify("count reservations", err)
	}
	return n, nil
}
