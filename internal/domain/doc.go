// Package domain defines the core business types for the guest and vendor
// reconciliation service.
//
// Types in this package are pure value objects with no behavior, no database
// dependencies, and no HTTP concerns. They are the shared language between
// handlers, services, and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Pure helpers on a type are allowed (merging, validation, naming rules)
//   - Constants and enums belong here
package domain
