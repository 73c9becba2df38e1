package domain

import (
	"strings"
	"time"
)

// ProfileType classifies a guest for front-desk treatment.
type ProfileType string

const (
	ProfileVIP   ProfileType = "VIP"
	ProfileGuest ProfileType = "Guest"
)

// GuestIdentity is the canonical record of one real-world guest.
// Guests are never deleted, only updated.
type GuestIdentity struct {
	ID            string            `json:"id" db:"id"`
	LegacyID      string            `json:"legacy_id,omitempty" db:"legacy_id"`
	Email         string            `json:"email,omitempty" db:"email"`
	FullName      string            `json:"full_name" db:"full_name"`
	FirstName     string            `json:"first_name,omitempty" db:"first_name"`
	LastName      string            `json:"last_name,omitempty" db:"last_name"`
	CompanionName string            `json:"companion_name,omitempty" db:"companion_name"`
	Phone         string            `json:"phone,omitempty" db:"phone"`
	Country       string            `json:"country,omitempty" db:"country"`
	Notes         string            `json:"notes,omitempty" db:"notes"`
	Stats         map[string]string `json:"stats,omitempty" db:"stats"`
	ProfileType   ProfileType       `json:"profile_type" db:"profile_type"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the best human label for the guest.
func (g *GuestIdentity) DisplayName() string {
	if name := strings.TrimSpace(g.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(g.FirstName + " " + g.LastName); name != "" {
		return name
	}
	if g.LegacyID != "" {
		return g.LegacyID
	}
	return g.Email
}

// ApplyPatch copies every non-empty field of patch onto g. The legacy id is
// never touched. Stats keys are merged, with non-empty incoming values
// winning.
func (g *GuestIdentity) ApplyPatch(patch *GuestIdentity) {
	setIfPresent(&g.Email, patch.Email)
	setIfPresent(&g.FullName, patch.FullName)
	setIfPresent(&g.FirstName, patch.FirstName)
	setIfPresent(&g.LastName, patch.LastName)
	setIfPresent(&g.CompanionName, patch.CompanionName)
	setIfPresent(&g.Phone, patch.Phone)
	setIfPresent(&g.Country, patch.Country)
	setIfPresent(&g.Notes, patch.Notes)
	if patch.ProfileType != "" {
		g.ProfileType = patch.ProfileType
	}
	for k, v := range patch.Stats {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if g.Stats == nil {
			g.Stats = make(map[string]string, len(patch.Stats))
		}
		g.Stats[k] = v
	}
}

// NonEmptyStats returns a copy of stats without blank values.
func NonEmptyStats(stats map[string]string) map[string]string {
	out := make(map[string]string, len(stats))
	for k, v := range stats {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}

func setIfPresent(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
