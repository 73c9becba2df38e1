package domain

import (
	"strings"
	"time"
)

// MergedMarker is appended to a vendor's name when it is merged into another.
const MergedMarker = "[MERGED]"

// VendorIdentity is a supplier (transport company, tour operator, ...)
// referenced by transfers, products and vendor users.
type VendorIdentity struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Type      string    `json:"type,omitempty" db:"type"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	LegacyID  string    `json:"legacy_id,omitempty" db:"legacy_id"`
	ColorTag  string    `json:"color_tag,omitempty" db:"color_tag"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsMerged reports whether the vendor has been folded into another vendor.
func (v *VendorIdentity) IsMerged() bool { return IsMergedName(v.Name) }

// IsMergedName reports whether a vendor name carries the merge marker.
func IsMergedName(name string) bool {
	return strings.HasSuffix(strings.TrimSpace(name), MergedMarker)
}

// MergedName returns the terminal name for a merged vendor. Idempotent.
func MergedName(name string) string {
	if IsMergedName(name) {
		return name
	}
	return name + " " + MergedMarker
}

// VendorUser is a login belonging to a vendor. At most one active user per
// vendor may hold a given email address.
type VendorUser struct {
	ID       string `json:"id" db:"id"`
	VendorID string `json:"vendor_id" db:"vendor_id"`
	Email    string `json:"email" db:"email"`
	Name     string `json:"name,omitempty" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// VendorUsage is a vendor together with the number of records pointing at it.
type VendorUsage struct {
	Vendor    VendorIdentity `json:"vendor"`
	Transfers int            `json:"transfers"`
	Products  int            `json:"products"`
	Users     int            `json:"users"`
}

// Total is the usage weight used to rank vendors and pick merge masters.
func (u VendorUsage) Total() int { return u.Transfers + u.Products + u.Users }
