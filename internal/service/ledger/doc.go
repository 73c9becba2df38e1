// Package ledger records every import, feed sync and vendor merge run in an
// append-only audit log.
//
// The service layer depends on the Repository interface defined below and
// never imports net/http or database/sql directly.
package ledger
