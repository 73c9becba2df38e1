package domain

import "time"

// SyncLedgerEntry is an immutable audit record of one import, sync or merge
// run. Entries are only ever appended.
type SyncLedgerEntry struct {
	ID            string         `json:"id" db:"id"`
	SyncedAt      time.Time      `json:"synced_at" db:"synced_at"`
	EmailsFound   int            `json:"emails_found" db:"emails_found"`
	XMLsProcessed int            `json:"xmls_processed" db:"xmls_processed"`
	Created       int            `json:"created" db:"created"`
	Updated       int            `json:"updated" db:"updated"`
	Errors        []string       `json:"errors" db:"errors"`
	TriggeredBy   string         `json:"triggered_by" db:"triggered_by"`
	Details       map[string]any `json:"details,omitempty" db:"details"`
}
