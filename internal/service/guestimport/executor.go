package guestimport

import (
	"context"
	"fmt"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
)

// ExecuteResult summarises an executed batch.
type ExecuteResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
	Aborted bool     `json:"aborted,omitempty"`
}

// Executor applies reviewed rows to the guest store.
//
// Each row runs in its own transaction and commits independently, so a
// failed row rolls back only itself. A fatal store error stops the batch;
// rows already committed stay committed.
type Executor struct {
	tx     Transactor
	guests GuestRepository
}

// NewExecutor creates an executor.
func NewExecutor(tx Transactor, guests GuestRepository) *Executor {
	return &Executor{tx: tx, guests: guests}
}

// Execute applies rows in order. It never returns an error: per-row failures
// are collected in the result as "<name>: <reason>".
func (e *Executor) Execute(ctx context.Context, rows []AnalysisRow) *ExecuteResult {
	res := &ExecuteResult{Errors: []string{}}

	for i := range rows {
		row := &rows[i]
		switch row.Action {
		case ActionCreate, ActionUpdate:
		default:
			res.Skipped++
			continue
		}

		err := e.tx.WithinTx(ctx, func(ctx context.Context) error {
			return e.apply(ctx, row)
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", row.Normalized.DisplayName(), err))
			if domain.IsFatal(err) {
				logger.Error("guest import aborted", "line", row.Line, "error", err)
				res.Aborted = true
				break
			}
			continue
		}

		if row.Action == ActionCreate {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res
}

func (e *Executor) apply(ctx context.Context, row *AnalysisRow) error {
	if row.Normalized.Incomplete() {
		return domain.ValidationError("", "row has no name and no id")
	}
	incoming := row.Normalized.Guest()

	if row.Action == ActionCreate {
		if incoming.ProfileType == "" {
			incoming.ProfileType = domain.ProfileGuest
		}
		if err := e.guests.Create(ctx, incoming); err != nil {
			return fmt.Errorf("create guest: %w", err)
		}
		return nil
	}

	if row.Match == nil || row.Match.ID == "" {
		return domain.ValidationError("", "update requires a matched guest")
	}
	incoming.LegacyID = ""
	if _, err := e.guests.Update(ctx, row.Match.ID, incoming); err != nil {
		return fmt.Errorf("update guest: %w", err)
	}
	return nil
}
