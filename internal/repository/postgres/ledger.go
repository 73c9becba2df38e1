package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/lib/pq"
)

// LedgerRepo is the append-only sync ledger. There is deliberately no update
// or delete method.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo creates a Postgres-backed ledger repository.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// Append inserts one entry.
func (r *LedgerRepo) Append(ctx context.Context, e *domain.SyncLedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	details := []byte("{}")
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode ledger details: %w", err)
		}
		details = b
	}
	errs := e.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO sync_ledger (id, synced_at, emails_found, xmls_processed, created, updated, errors, triggered_by, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.SyncedAt, e.EmailsFound, e.XMLsProcessed, e.Created, e.Updated,
		pq.Array(errs), e.TriggeredBy, string(details))
	if err != nil {
		return classify("append ledger entry", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (r *LedgerRepo) Recent(ctx context.Context, limit int) ([]domain.SyncLedgerEntry, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, synced_at, emails_found, xmls_processed, created, updated, errors, triggered_by, details
		FROM sync_ledger
		ORDER BY synced_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify("recent ledger entries", err)
	}
	defer rows.Close()

	var out []domain.SyncLedgerEntry
	for rows.Next() {
		var (
			e       domain.SyncLedgerEntry
			errs    pq.StringArray
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.SyncedAt, &e.EmailsFound, &e.XMLsProcessed, &e.Created,
			&e.Updated, &errs, &e.TriggeredBy, &details); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Errors = []string(errs)
		if e.Errors == nil {
			e.Errors = []string{}
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("decode ledger details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("recent ledger entries", err)
	}
	return out, nil
}
