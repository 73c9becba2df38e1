package domain

import "time"

// ReservationStatus is the normalized lifecycle state of a PMS reservation.
type ReservationStatus string

const (
	StatusReserved   ReservationStatus = "reserved"
	StatusCheckedIn  ReservationStatus = "checked_in"
	StatusCheckedOut ReservationStatus = "checked_out"
	StatusCancelled  ReservationStatus = "cancelled"
	StatusNoShow     ReservationStatus = "no_show"
	StatusWaitlist   ReservationStatus = "waitlist"
)

// ReservationRecord is one stay booked in the property-management system.
// ExternalID is the PMS reservation id and is unique; reimports update the
// record in place.
type ReservationRecord struct {
	ID         string            `json:"id" db:"id"`
	ExternalID string            `json:"opera_resv_id" db:"opera_resv_id"`
	GuestID    string            `json:"guest_id" db:"guest_id"`
	Room       string            `json:"room,omitempty" db:"room"`
	Arrival    time.Time         `json:"arrival" db:"arrival"`
	Departure  time.Time         `json:"departure" db:"departure"`
	Status     ReservationStatus `json:"status" db:"status"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}
