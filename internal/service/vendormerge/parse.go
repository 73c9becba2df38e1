package vendormerge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// ParseError reports a classifier reply that is not the expected JSON
// array. Raw holds the reply, truncated.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unparsable classifier reply: %s: %v", e.Reason, e.Err)
	}
	return "unparsable classifier reply: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

const maxRawInError = 512

// flexString accepts a JSON string or number. Models sometimes emit
// numeric group ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

type proposedVendor struct {
	ID                flexString `json:"id"`
	Name              string     `json:"name"`
	IsSuggestedMaster bool       `json:"isSuggestedMaster"`
}

type proposedGroup struct {
	GroupID flexString       `json:"groupId"`
	Reason  string           `json:"reason"`
	Vendors []proposedVendor `json:"vendors"`
}

// parseGroups extracts the proposed groups from a classifier reply.
// Markdown fences and text around the outermost array are ignored; the
// array itself must match the expected shape exactly. Failures are
// collaborator errors wrapping a *ParseError.
func parseGroups(reply string) ([]proposedGroup, error) {
	body := stripFences(reply)
	start := strings.IndexByte(body, '[')
	end := strings.LastIndexByte(body, ']')
	if start < 0 || end < start {
		return nil, parseFailure("no JSON array found", reply, nil)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body[start : end+1])))
	dec.DisallowUnknownFields()
	var groups []proposedGroup
	if err := dec.Decode(&groups); err != nil {
		return nil, parseFailure("invalid group array", reply, err)
	}
	return groups, nil
}

func parseFailure(reason, raw string, err error) error {
	if len(raw) > maxRawInError {
		raw = raw[:maxRawInError] + "..."
	}
	return domain.CollaboratorError("vendormerge.parse", &ParseError{Reason: reason, Raw: raw, Err: err})
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// reconcile checks the proposed groups against the roster. Groups naming
// unknown vendors are dropped, a vendor is kept only in the first group
// that claims it, and single-member groups survive only for placeholder
// records. Every surviving group gets exactly one master and its members'
// fields are taken from the roster, not from the reply.
func reconcile(proposed []proposedGroup, r *roster) (groups []Group, dropped []string) {
	claimed := make(map[string]bool)

	for i, pg := range proposed {
		id := strings.TrimSpace(string(pg.GroupID))
		if id == "" {
			id = "g" + strconv.Itoa(i+1)
		}

		var unknown string
		for _, v := range pg.Vendors {
			if _, ok := r.lookup(string(v.ID)); !ok {
				unknown = string(v.ID)
				break
			}
		}
		if unknown != "" {
			dropped = append(dropped, fmt.Sprintf("group %s: unknown vendor id %q", id, unknown))
			continue
		}

		var (
			members []Member
			flagged = make(map[string]bool)
		)
		for _, v := range pg.Vendors {
			vid := string(v.ID)
			if claimed[vid] {
				continue
			}
			claimed[vid] = true
			u, _ := r.lookup(vid)
			members = append(members, memberOf(u))
			if v.IsSuggestedMaster {
				flagged[vid] = true
			}
		}

		reason := strings.TrimSpace(pg.Reason)
		switch {
		case len(members) == 0:
			continue
		case len(members) == 1:
			if !isPlaceholderName(members[0].Name) {
				for _, m := range members {
					delete(claimed, m.ID)
				}
				continue
			}
			reason = invalidRecordReason
		}

		pickMaster(members, flagged, r)
		groups = append(groups, Group{GroupID: id, Reason: reason, Members: members})
	}
	return groups, dropped
}

// pickMaster keeps the collaborator's choice when it flagged exactly one
// member; otherwise the most used member wins, ties going to roster order.
func pickMaster(members []Member, flagged map[string]bool, r *roster) {
	master := ""
	if len(flagged) == 1 {
		for id := range flagged {
			master = id
		}
	} else {
		best := 0
		for i := 1; i < len(members); i++ {
			m, b := members[i], members[best]
			if m.Usage.Total > b.Usage.Total || (m.Usage.Total == b.Usage.Total && r.rank(m.ID) < r.rank(b.ID)) {
				best = i
			}
		}
		master = members[best].ID
	}
	for i := range members {
		members[i].IsSuggestedMaster = members[i].ID == master
	}
}
