package feed

import (
	"strings"
	"unicode"

	"github.com/ignite/guest-reconciler/internal/domain"
)

var statusAliases = map[string]domain.ReservationStatus{
	"RESERVED":   domain.StatusReserved,
	"RES":        domain.StatusReserved,
	"NEW":        domain.StatusReserved,
	"CONFIRMED":  domain.StatusReserved,
	"DUEIN":      domain.StatusReserved,
	"CHECKEDIN":  domain.StatusCheckedIn,
	"INHOUSE":    domain.StatusCheckedIn,
	"CHECKEDOUT": domain.StatusCheckedOut,
	"CANCELLED":  domain.StatusCancelled,
	"CANCELED":   domain.StatusCancelled,
	"CXL":        domain.StatusCancelled,
	"NOSHOW":     domain.StatusNoShow,
	"WAITLIST":   domain.StatusWaitlist,
	"WAITLISTED": domain.StatusWaitlist,
}

// normalizeStatus maps a PMS status to the canonical set. Unknown values
// are lower snake-cased; an empty status means reserved.
func normalizeStatus(raw string) domain.ReservationStatus {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.StatusReserved
	}
	if s, ok := statusAliases[normalizeTag(raw)]; ok {
		return s
	}

	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
		} else if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return domain.ReservationStatus(strings.TrimRight(b.String(), "_"))
}
