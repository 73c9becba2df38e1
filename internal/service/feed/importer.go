package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"github.com/ignite/guest-reconciler/internal/pkg/textnorm"
)

// Reservation is one validated record of the payload.
type Reservation struct {
	ExternalID string
	GuestName  string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Country    string
	Room       string
	Arrival    time.Time
	Departure  time.Time
	Status     domain.ReservationStatus
}

// RecordDetail is the audit payload kept in the ledger for each imported
// reservation.
type RecordDetail struct {
	ExternalID string                   `json:"opera_resv_id"`
	GuestID    string                   `json:"guest_id"`
	GuestName  string                   `json:"guest_name"`
	Room       string                   `json:"room,omitempty"`
	Arrival    string                   `json:"arrival"`
	Departure  string                   `json:"departure"`
	Status     domain.ReservationStatus `json:"status"`
	NewGuest   bool                     `json:"new_guest,omitempty"`
}

// Result summarises one payload import.
type Result struct {
	Created        int            `json:"created"`
	Updated        int            `json:"updated"`
	Errors         []string       `json:"errors"`
	CreatedRecords []RecordDetail `json:"createdRecords"`
	UpdatedRecords []RecordDetail `json:"updatedRecords"`
	Aborted        bool           `json:"aborted,omitempty"`
}

// Importer applies reservation payloads to the store.
type Importer struct {
	tx           Transactor
	guests       GuestRepository
	reservations ReservationRepository
}

// NewImporter creates a feed importer.
func NewImporter(tx Transactor, guests GuestRepository, reservations ReservationRepository) *Importer {
	return &Importer{tx: tx, guests: guests, reservations: reservations}
}

// Import parses data and upserts every reservation in it. A payload that is
// not XML is a validation error. Bad records are reported in Errors and do
// not stop the rest; a fatal store error stops the payload with Aborted set.
func (im *Importer) Import(ctx context.Context, data []byte) (*Result, error) {
	records, err := parsePayload(data)
	if err != nil {
		return nil, domain.ValidationError("feed.import", "%v", err)
	}

	res := &Result{
		Errors:         []string{},
		CreatedRecords: []RecordDetail{},
		UpdatedRecords: []RecordDetail{},
	}
	for _, raw := range records {
		resv, err := raw.reservation()
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("record %d%s: %v", raw.index, raw.label(), err))
			continue
		}

		var (
			detail   RecordDetail
			inserted bool
		)
		err = im.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			detail, inserted, err = im.apply(ctx, resv)
			return err
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("reservation %s: %v", resv.ExternalID, err))
			if domain.IsFatal(err) {
				logger.Error("feed import aborted", "opera_resv_id", resv.ExternalID, "error", err)
				res.Aborted = true
				break
			}
			continue
		}

		if inserted {
			res.Created++
			res.CreatedRecords = append(res.CreatedRecords, detail)
		} else {
			res.Updated++
			res.UpdatedRecords = append(res.UpdatedRecords, detail)
		}
	}

	logger.Info("feed payload imported",
		"records", len(records), "created", res.Created, "updated", res.Updated, "errors", len(res.Errors))
	return res, nil
}

func (im *Importer) apply(ctx context.Context, r Reservation) (RecordDetail, bool, error) {
	detail := RecordDetail{
		ExternalID: r.ExternalID,
		GuestName:  r.GuestName,
		Room:       r.Room,
		Arrival:    r.Arrival.Format("2006-01-02"),
		Departure:  r.Departure.Format("2006-01-02"),
		Status:     r.Status,
	}

	guestID, newGuest, err := im.resolveGuest(ctx, r)
	if err != nil {
		return detail, false, err
	}
	detail.NewGuest = newGuest

	rec := &domain.ReservationRecord{
		ExternalID: r.ExternalID,
		GuestID:    guestID,
		Room:       r.Room,
		Arrival:    r.Arrival,
		Departure:  r.Departure,
		Status:     r.Status,
	}
	inserted, err := im.reservations.Upsert(ctx, rec)
	if err != nil {
		return detail, false, fmt.Errorf("upsert reservation: %w", err)
	}
	detail.GuestID = rec.GuestID
	return detail, inserted, nil
}

// resolveGuest keeps the guest of a known reservation, otherwise matches by
// email then full name, otherwise creates a guest without a legacy id.
func (im *Importer) resolveGuest(ctx context.Context, r Reservation) (string, bool, error) {
	existing, err := im.reservations.FindByExternalID(ctx, r.ExternalID)
	switch {
	case err == nil:
		return existing.GuestID, false, nil
	case !domain.IsNotFound(err):
		return "", false, fmt.Errorf("find reservation: %w", err)
	}

	if r.Email != "" {
		g, err := im.guests.FindByEmail(ctx, r.Email)
		if err == nil {
			return g.ID, false, nil
		}
		if !domain.IsNotFound(err) {
			return "", false, fmt.Errorf("find guest by email: %w", err)
		}
	}
	g, err := im.guests.FindByFullName(ctx, r.GuestName)
	if err == nil {
		return g.ID, false, nil
	}
	if !domain.IsNotFound(err) {
		return "", false, fmt.Errorf("find guest by name: %w", err)
	}

	guest := &domain.GuestIdentity{
		FullName:    r.GuestName,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		Country:     r.Country,
		ProfileType: domain.ProfileGuest,
	}
	if err := im.guests.Create(ctx, guest); err != nil {
		return "", false, fmt.Errorf("create guest: %w", err)
	}
	return guest.ID, true, nil
}

var (
	errMissingID   = errors.New("missing reservation id")
	errMissingName = errors.New("missing guest name")
)

// reservation validates the raw values.
func (r rawRecord) reservation() (Reservation, error) {
	out := Reservation{
		ExternalID: r.values[fieldExternalID],
		Email:      strings.ToLower(r.values[fieldEmail]),
		Phone:      r.values[fieldPhone],
		Country:    strings.ToUpper(r.values[fieldCountry]),
		Room:       r.values[fieldRoom],
		Status:     normalizeStatus(r.values[fieldStatus]),
	}
	if out.ExternalID == "" {
		return out, errMissingID
	}

	out.GuestName, out.FirstName, out.LastName = guestName(
		r.values[fieldGuestName], r.values[fieldFirstName], r.values[fieldLastName])
	if out.GuestName == "" {
		return out, errMissingName
	}

	arrival, ok := r.values[fieldArrival]
	if !ok {
		return out, errors.New("missing arrival date")
	}
	departure, ok := r.values[fieldDeparture]
	if !ok {
		return out, errors.New("missing departure date")
	}
	var err error
	if out.Arrival, err = parseDate(arrival); err != nil {
		return out, fmt.Errorf("arrival: %w", err)
	}
	if out.Departure, err = parseDate(departure); err != nil {
		return out, fmt.Errorf("departure: %w", err)
	}
	if out.Departure.Before(out.Arrival) {
		return out, fmt.Errorf("departure %s is before arrival %s",
			out.Departure.Format("2006-01-02"), out.Arrival.Format("2006-01-02"))
	}
	return out, nil
}

func (r rawRecord) label() string {
	if id := r.values[fieldExternalID]; id != "" {
		return " (" + id + ")"
	}
	return ""
}

// guestName builds "First Last". Opera writes display names as
// "Last, First".
func guestName(full, first, last string) (string, string, string) {
	first = textnorm.TitleName(first)
	last = textnorm.TitleName(last)

	full = textnorm.CollapseSpaces(full)
	if l, f, ok := strings.Cut(full, ","); ok {
		l, f = strings.TrimSpace(l), strings.TrimSpace(f)
		if first == "" {
			first = textnorm.TitleName(f)
		}
		if last == "" {
			last = textnorm.TitleName(l)
		}
		full = textnorm.CollapseSpaces(f + " " + l)
	}
	full = textnorm.TitleName(full)
	if full == "" {
		full = textnorm.CollapseSpaces(first + " " + last)
	}
	return full, first, last
}
