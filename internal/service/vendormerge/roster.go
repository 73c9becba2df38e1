package vendormerge

import (
	"fmt"
	"strings"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/osteele/liquid"
)

// Usage counts the records pointing at a vendor.
type Usage struct {
	Transfers int `json:"transfers"`
	Products  int `json:"products"`
	Users     int `json:"users"`
	Total     int `json:"total"`
}

// Member is one vendor of a candidate group, with its roster fields.
type Member struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Type              string `json:"type,omitempty"`
	IsActive          bool   `json:"isActive"`
	IsSuggestedMaster bool   `json:"isSuggestedMaster"`
	Usage             Usage  `json:"usage"`
}

// Group is a set of vendors believed to be the same supplier. Exactly one
// member is the suggested master.
type Group struct {
	GroupID string   `json:"groupId"`
	Reason  string   `json:"reason"`
	Members []Member `json:"members"`
}

// Master returns the suggested master of the group.
func (g Group) Master() Member {
	for _, m := range g.Members {
		if m.IsSuggestedMaster {
			return m
		}
	}
	return Member{}
}

// roster indexes the usage-weighted vendor list by id, keeping the
// repository's order (most used first).
type roster struct {
	entries []domain.VendorUsage
	byID    map[string]int
}

func newRoster(entries []domain.VendorUsage) *roster {
	r := &roster{entries: entries, byID: make(map[string]int, len(entries))}
	for i, e := range entries {
		r.byID[e.Vendor.ID] = i
	}
	return r
}

func (r *roster) lookup(id string) (domain.VendorUsage, bool) {
	i, ok := r.byID[id]
	if !ok {
		return domain.VendorUsage{}, false
	}
	return r.entries[i], true
}

func (r *roster) rank(id string) int { return r.byID[id] }

func memberOf(u domain.VendorUsage) Member {
	return Member{
		ID:       u.Vendor.ID,
		Name:     u.Vendor.Name,
		Type:     u.Vendor.Type,
		IsActive: u.Vendor.IsActive,
		Usage: Usage{
			Transfers: u.Transfers,
			Products:  u.Products,
			Users:     u.Users,
			Total:     u.Total(),
		},
	}
}

const systemPrompt = `You review a hotel's supplier list for duplicate records of the same real-world company. ` +
	`Answer with a JSON array only, no prose and no markdown.`

const promptTemplate = `Each line below is one vendor: id | name | type | active | transfers | products | users.
Group vendors that are the same company (spelling variants, legal suffixes, abbreviations, accents).
Also report single records whose name is a placeholder (test, cancelled, n/a, xxx) as a group of one.
In every group mark exactly one vendor as the master, preferring the active vendor with the most usage.

Reply with this shape and nothing else:
[{"groupId":"g1","reason":"short explanation","vendors":[{"id":"...","name":"...","isSuggestedMaster":true}]}]

Vendors ({{ count }}):
{% for line in lines %}{{ line }}
{% endfor %}`

// promptRenderer compiles the instruction template once.
type promptRenderer struct {
	tpl *liquid.Template
}

func newPromptRenderer() (*promptRenderer, error) {
	tpl, err := liquid.NewEngine().ParseString(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse grouping prompt: %w", err)
	}
	return &promptRenderer{tpl: tpl}, nil
}

func (p *promptRenderer) render(r *roster) (string, error) {
	lines := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		lines = append(lines, rosterLine(e))
	}
	out, err := p.tpl.RenderString(liquid.Bindings{"count": len(lines), "lines": lines})
	if err != nil {
		return "", fmt.Errorf("render grouping prompt: %w", err)
	}
	return out, nil
}

func rosterLine(u domain.VendorUsage) string {
	vType := u.Vendor.Type
	if vType == "" {
		vType = "-"
	}
	active := "inactive"
	if u.Vendor.IsActive {
		active = "active"
	}
	name := strings.ReplaceAll(u.Vendor.Name, "|", "/")
	return fmt.Sprintf("%s | %s | %s | %s | %d | %d | %d",
		u.Vendor.ID, name, vType, active, u.Transfers, u.Products, u.Users)
}
