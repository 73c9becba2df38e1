// Package vendormerge finds vendors that are the same real-world supplier
// and folds the duplicates into one master.
//
// Analyze is read-only: it builds a usage-weighted roster, asks the text
// classifier for candidate groups, re-validates every group against the
// roster and falls back to a deterministic name grouping when the
// classifier is unavailable. Merge applies reviewed groups, one
// transaction per group, repointing every transfer, product and vendor
// user before the duplicates are deactivated.
package vendormerge
