package guestimport

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/textnorm"
)

// NormalizedRow is the typed form of one export row.
type NormalizedRow struct {
	LegacyID    string             `json:"legacy_id,omitempty"`
	FullName    string             `json:"full_name,omitempty"`
	FirstName   string             `json:"first_name,omitempty"`
	LastName    string             `json:"last_name,omitempty"`
	Companion   string             `json:"companion,omitempty"`
	Email       string             `json:"email,omitempty"`
	Phone       string             `json:"phone,omitempty"`
	Country     string             `json:"country,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	ProfileType domain.ProfileType `json:"profile_type,omitempty"`
	Stats       map[string]string  `json:"stats,omitempty"`
}

// Incomplete reports whether the row lacks both a name and a legacy id.
func (n NormalizedRow) Incomplete() bool {
	return n.FullName == "" && n.LegacyID == ""
}

// DisplayName is the label used in error messages.
func (n NormalizedRow) DisplayName() string {
	switch {
	case n.FullName != "":
		return n.FullName
	case n.LegacyID != "":
		return n.LegacyID
	case n.Email != "":
		return n.Email
	default:
		return "(unnamed row)"
	}
}

// Guest converts the row into the fields of a canonical guest.
func (n NormalizedRow) Guest() *domain.GuestIdentity {
	return &domain.GuestIdentity{
		LegacyID:      n.LegacyID,
		Email:         n.Email,
		FullName:      n.FullName,
		FirstName:     n.FirstName,
		LastName:      n.LastName,
		CompanionName: n.Companion,
		Phone:         n.Phone,
		Country:       n.Country,
		Notes:         n.Notes,
		Stats:         domain.NonEmptyStats(n.Stats),
		ProfileType:   n.ProfileType,
	}
}

// companionSplit matches the conjunction joining two guests in one name
// cell: "Jane Doe y Carlos Ruiz", "Jane Doe & Carlos Ruiz".
var companionSplit = regexp.MustCompile(`(?i)\s+(?:y|&|and)\s+`)

// MalformedRowError reports a record whose column count does not match the
// header.
type MalformedRowError struct {
	Want, Got int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("expected %d columns, got %d", e.Want, e.Got)
}

// Normalize maps one record through the column mapping. It is a pure
// function. The raw header->value map is always returned, even for a
// malformed record.
func Normalize(record []string, m *ColumnMapping) (NormalizedRow, map[string]string, error) {
	raw := make(map[string]string, len(m.Headers))
	for i, h := range m.Headers {
		if i < len(record) {
			raw[h] = record[i]
		}
	}
	if len(record) != len(m.Headers) {
		return NormalizedRow{}, raw, &MalformedRowError{Want: len(m.Headers), Got: len(record)}
	}

	var (
		row    NormalizedRow
		values = make(map[Field]string, len(m.Fields))
	)
	for i, field := range m.Fields {
		if v := strings.TrimSpace(record[i]); v != "" {
			values[field] = v
		}
	}

	row.LegacyID = values[FieldLegacyID]
	row.Email = normalizeEmail(values[FieldEmail])
	row.Phone = normalizePhone(values[FieldPhone])
	row.Country = normalizeCountry(values[FieldCountry])
	row.Notes = textnorm.CollapseSpaces(values[FieldNotes])
	row.ProfileType = normalizeVIP(values[FieldVIP])
	row.Companion = textnorm.TitleName(values[FieldCompanion])
	splitNames(&row, values[FieldFullName], values[FieldFirstName], values[FieldLastName])

	for f := range statFields {
		if v, ok := values[f]; ok {
			if row.Stats == nil {
				row.Stats = make(map[string]string, len(statFields))
			}
			row.Stats[string(f)] = v
		}
	}
	return row, raw, nil
}

// splitNames derives full, first, last and companion names. A full-name cell
// holding two people is split on the conjunction when no companion column
// is set; the first token of the primary name becomes the first name.
func splitNames(row *NormalizedRow, full, first, last string) {
	full = textnorm.TitleName(full)
	first = textnorm.TitleName(first)
	last = textnorm.TitleName(last)

	if full != "" && row.Companion == "" {
		if parts := companionSplit.Split(full, 2); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			full = strings.TrimSpace(parts[0])
			row.Companion = strings.TrimSpace(parts[1])
		}
	}

	if full == "" {
		full = textnorm.CollapseSpaces(first + " " + last)
	}
	if first == "" && last == "" && full != "" {
		tokens := strings.Fields(full)
		first = tokens[0]
		last = strings.Join(tokens[1:], " ")
	}

	row.FullName = full
	row.FirstName = first
	row.LastName = last
}

func normalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	return strings.Trim(email, "\"'<>")
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
		} else if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeCountry(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) == 2 {
		return strings.ToUpper(v)
	}
	switch textnorm.Key(v) {
	case "":
		return ""
	case "mexico", "mex":
		return "MX"
	case "united states", "usa", "united states of america", "estados unidos", "eua", "eeuu":
		return "US"
	case "canada", "can":
		return "CA"
	case "united kingdom", "uk", "great britain", "reino unido":
		return "GB"
	case "spain", "espana", "esp":
		return "ES"
	case "germany", "alemania", "deu":
		return "DE"
	case "france", "francia", "fra":
		return "FR"
	case "italy", "italia", "ita":
		return "IT"
	case "argentina", "arg":
		return "AR"
	case "colombia", "col":
		return "CO"
	case "brazil", "brasil", "bra":
		return "BR"
	default:
		return strings.ToUpper(v)
	}
}

func normalizeVIP(raw string) domain.ProfileType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "vip", "true", "1", "yes", "y", "si", "sí", "x":
		return domain.ProfileVIP
	default:
		return domain.ProfileGuest
	}
}
