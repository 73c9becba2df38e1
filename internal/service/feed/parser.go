package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// node is a schema-less XML element. Opera exports differ between versions
// and properties, so records are read by tag alias instead of fixed structs.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

// recordTags are the element names (normalized) that hold one reservation.
var recordTags = map[string]bool{
	"GRESERVATION":      true,
	"RESERVATION":       true,
	"RESERVATIONRECORD": true,
}

// field is a logical reservation attribute.
type field int

const (
	fieldExternalID field = iota
	fieldGuestName
	fieldFirstName
	fieldLastName
	fieldEmail
	fieldPhone
	fieldCountry
	fieldRoom
	fieldArrival
	fieldDeparture
	fieldStatus
)

var fieldAliases = map[string]field{
	"RESVNAMEID":         fieldExternalID,
	"CONFIRMATIONNO":     fieldExternalID,
	"CONFIRMATIONNUMBER": fieldExternalID,
	"RESERVATIONID":      fieldExternalID,
	"RESVID":             fieldExternalID,
	"CONFNO":             fieldExternalID,

	"GUESTNAME":   fieldGuestName,
	"FULLNAME":    fieldGuestName,
	"NAME":        fieldGuestName,
	"DISPLAYNAME": fieldGuestName,
	"FIRSTNAME":   fieldFirstName,
	"GIVENNAME":   fieldFirstName,
	"LASTNAME":    fieldLastName,
	"SURNAME":     fieldLastName,

	"EMAIL":        fieldEmail,
	"EMAILADDRESS": fieldEmail,
	"PHONE":        fieldPhone,
	"PHONENO":      fieldPhone,
	"COUNTRY":      fieldCountry,
	"NATIONALITY":  fieldCountry,

	"ROOM":       fieldRoom,
	"ROOMNO":     fieldRoom,
	"ROOMNUMBER": fieldRoom,

	"ARRIVAL":       fieldArrival,
	"ARRIVALDATE":   fieldArrival,
	"BEGINDATE":     fieldArrival,
	"CHECKIN":       fieldArrival,
	"DEPARTURE":     fieldDeparture,
	"DEPARTUREDATE": fieldDeparture,
	"ENDDATE":       fieldDeparture,
	"CHECKOUT":      fieldDeparture,

	"RESVSTATUS":        fieldStatus,
	"STATUS":            fieldStatus,
	"RESERVATIONSTATUS": fieldStatus,
}

// rawRecord is one reservation element with its values looked up by field.
// The first occurrence of a field wins.
type rawRecord struct {
	index  int
	values map[field]string
}

func normalizeTag(tag string) string {
	tag = strings.ToUpper(tag)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(tag)
}

// parsePayload decodes the XML document and returns its reservation
// records in document order.
func parsePayload(data []byte) ([]rawRecord, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	dec.Strict = false

	var root node
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}

	var out []rawRecord
	collectRecords(root, &out)
	return out, nil
}

func collectRecords(n node, out *[]rawRecord) {
	if recordTags[normalizeTag(n.XMLName.Local)] {
		rec := rawRecord{index: len(*out) + 1, values: make(map[field]string)}
		rec.fill(n)
		*out = append(*out, rec)
	}
	for _, c := range n.Children {
		collectRecords(c, out)
	}
}

// fill reads the record element's own attributes and its descendant
// leaves into r. Attributes of descendants are not fields.
func (r *rawRecord) fill(n node) {
	for _, a := range n.Attrs {
		r.set(a.Name.Local, a.Value)
	}
	r.fillLeaves(n)
}

// fillLeaves skips nested record elements; they become records of their own.
func (r *rawRecord) fillLeaves(n node) {
	for _, c := range n.Children {
		tag := normalizeTag(c.XMLName.Local)
		if recordTags[tag] {
			continue
		}
		if len(c.Children) == 0 {
			r.set(c.XMLName.Local, c.Content)
			continue
		}
		r.fillLeaves(c)
	}
}

func (r *rawRecord) set(tag, value string) {
	f, ok := fieldAliases[normalizeTag(tag)]
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if _, exists := r.values[f]; !exists {
		r.values[f] = value
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}
