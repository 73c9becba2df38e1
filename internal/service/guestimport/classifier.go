package guestimport

import (
	"strings"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// Action is the change proposed for one import row.
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionUpdate   Action = "UPDATE"
	ActionConflict Action = "CONFLICT"
	ActionSkip     Action = "SKIP"
)

// Classification reasons shown to the reviewer.
const (
	ReasonNewProfile  = "New Profile"
	ReasonIDOrEmail   = "ID/Email Match"
	ReasonSimilarName = "Similar Name found"
	ReasonIncomplete  = "Missing name and ID"
)

// Classify turns a row and its candidate into an action and a reason.
func Classify(row NormalizedRow, match *domain.GuestIdentity) (Action, string) {
	if row.Incomplete() {
		return ActionSkip, ReasonIncomplete
	}
	if match == nil {
		return ActionCreate, ReasonNewProfile
	}
	if row.LegacyID != "" && row.LegacyID == match.LegacyID {
		return ActionUpdate, ReasonIDOrEmail
	}
	if row.Email != "" && strings.EqualFold(row.Email, match.Email) {
		return ActionUpdate, ReasonIDOrEmail
	}
	return ActionConflict, ReasonSimilarName
}
