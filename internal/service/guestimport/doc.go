// Package guestimport reconciles a legacy CRM spreadsheet export against the
// canonical guest store.
//
// The pipeline has two phases. Analyze normalizes every row, looks up at
// most one existing guest and proposes an action (CREATE, UPDATE, CONFLICT
// or SKIP) without touching the store. A reviewer may then override actions
// and hand the rows to Execute, which applies them one transaction per row.
//
// The service layer depends on the interfaces in repository.go. It never
// imports net/http or database/sql directly.
package guestimport
