package guestimport

import (
	"strings"
	"unicode"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/textnorm"
)

// Field is a canonical column of the guest export.
type Field string

const (
	FieldLegacyID  Field = "legacy_id"
	FieldFullName  Field = "full_name"
	FieldFirstName Field = "first_name"
	FieldLastName  Field = "last_name"
	FieldCompanion Field = "companion"
	FieldEmail     Field = "email"
	FieldVIP       Field = "vip"
	FieldPhone     Field = "phone"
	FieldCountry   Field = "country"
	FieldNotes     Field = "notes"
	FieldStays     Field = "stays"
	FieldNights    Field = "nights"
	FieldRevenue   Field = "revenue"
	FieldLastStay  Field = "last_stay"
)

// statFields are kept as opaque strings in the guest's stats object.
var statFields = map[Field]bool{
	FieldStays:    true,
	FieldNights:   true,
	FieldRevenue:  true,
	FieldLastStay: true,
}

// columnAliases maps normalized header names to canonical fields. The CRM
// export has been produced in English and Spanish over the years.
var columnAliases = map[string]Field{
	// Legacy id
	"legacy_id":   FieldLegacyID,
	"id":          FieldLegacyID,
	"guest_id":    FieldLegacyID,
	"client_id":   FieldLegacyID,
	"customer_id": FieldLegacyID,
	"crm_id":      FieldLegacyID,
	"id_cliente":  FieldLegacyID,
	"no_cliente":  FieldLegacyID,

	// Full name
	"name":            FieldFullName,
	"full_name":       FieldFullName,
	"fullname":        FieldFullName,
	"guest":           FieldFullName,
	"guest_name":      FieldFullName,
	"nombre":          FieldFullName,
	"nombre_completo": FieldFullName,
	"cliente":         FieldFullName,
	"huesped":         FieldFullName,

	// First / last name
	"first_name": FieldFirstName,
	"firstname":  FieldFirstName,
	"first":      FieldFirstName,
	"given_name": FieldFirstName,
	"nombres":    FieldFirstName,
	"last_name":  FieldLastName,
	"lastname":   FieldLastName,
	"last":       FieldLastName,
	"surname":    FieldLastName,
	"apellido":   FieldLastName,
	"apellidos":  FieldLastName,

	// Companion
	"companion":      FieldCompanion,
	"companion_name": FieldCompanion,
	"partner":        FieldCompanion,
	"spouse":         FieldCompanion,
	"acompanante":    FieldCompanion,
	"pareja":         FieldCompanion,

	// Contact
	"email":         FieldEmail,
	"e_mail":        FieldEmail,
	"email_address": FieldEmail,
	"mail":          FieldEmail,
	"correo":        FieldEmail,
	"phone":         FieldPhone,
	"telephone":     FieldPhone,
	"tel":           FieldPhone,
	"mobile":        FieldPhone,
	"telefono":      FieldPhone,
	"celular":       FieldPhone,
	"country":       FieldCountry,
	"country_code":  FieldCountry,
	"nationality":   FieldCountry,
	"pais":          FieldCountry,
	"nacionalidad":  FieldCountry,

	// Profile
	"vip":         FieldVIP,
	"is_vip":      FieldVIP,
	"vip_status":  FieldVIP,
	"notes":       FieldNotes,
	"note":        FieldNotes,
	"comments":    FieldNotes,
	"preferences": FieldNotes,
	"notas":       FieldNotes,
	"comentarios": FieldNotes,

	// Stay statistics
	"stays":           FieldStays,
	"total_stays":     FieldStays,
	"visits":          FieldStays,
	"estancias":       FieldStays,
	"nights":          FieldNights,
	"total_nights":    FieldNights,
	"noches":          FieldNights,
	"revenue":         FieldRevenue,
	"total_spent":     FieldRevenue,
	"total_revenue":   FieldRevenue,
	"gasto_total":     FieldRevenue,
	"last_stay":       FieldLastStay,
	"last_visit":      FieldLastStay,
	"ultima_estancia": FieldLastStay,
}

// identityFields are the columns of which at least one must be present for
// a file to be importable.
var identityFields = []Field{FieldLegacyID, FieldFullName, FieldFirstName, FieldLastName, FieldEmail}

// ColumnMapping holds the resolved mapping from column index to field.
type ColumnMapping struct {
	Fields  map[int]Field
	Headers []string
}

// NormalizeHeader lowercases, folds accents, turns spaces, hyphens and dots
// into underscores and drops other punctuation: " E-Mail Address " ->
// "e_mail_address".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(textnorm.FoldAccents(h)))
	h = strings.Trim(h, "\"'")

	var b strings.Builder
	lastUnderscore := false
	for _, r := range h {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '-' || r == '.' || r == '_' || r == '/':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// MapColumns resolves a header row. It fails with a validation error when
// no identity column (id, name or email) is present.
func MapColumns(header []string) (*ColumnMapping, error) {
	m := &ColumnMapping{
		Fields:  make(map[int]Field, len(header)),
		Headers: make([]string, len(header)),
	}
	seen := make(map[Field]bool)
	for i, h := range header {
		m.Headers[i] = strings.TrimSpace(h)
		field, ok := columnAliases[NormalizeHeader(h)]
		if !ok || seen[field] {
			continue
		}
		m.Fields[i] = field
		seen[field] = true
	}

	for _, f := range identityFields {
		if seen[f] {
			return m, nil
		}
	}
	return nil, domain.ValidationError("guestimport.map_columns",
		"header has no id, name or email column (got %s)", strings.Join(header, ", "))
}
