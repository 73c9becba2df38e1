package vendormerge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"github.com/ignite/guest-reconciler/internal/service/ledger"
)

// MergeRequest folds DuplicateIDs into MasterID.
type MergeRequest struct {
	MasterID     string   `json:"masterId"`
	DuplicateIDs []string `json:"duplicateIds"`
	Reason       string   `json:"reason,omitempty"`
}

// MergeResult summarises a merge run.
type MergeResult struct {
	GroupsProcessed           int      `json:"groupsProcessed"`
	VendorsDeactivated        int      `json:"vendorsDeactivated"`
	DependentRecordsRepointed int      `json:"dependentRecordsRepointed"`
	UsersDeactivated          int      `json:"usersDeactivated"`
	Errors                    []string `json:"errors"`
	Aborted                   bool     `json:"aborted,omitempty"`
}

type groupStats struct {
	deactivated int
	repointed   int
	users       int
}

// Merge applies each request in its own transaction. A failing group rolls
// back alone and is reported; a fatal store error stops the run. The run is
// recorded in the ledger.
func (s *Service) Merge(ctx context.Context, requests []MergeRequest, actor string) *MergeResult {
	res := &MergeResult{Errors: []string{}}

	for i, req := range requests {
		var st groupStats
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			st, err = s.mergeGroup(ctx, req)
			return err
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("group %d (master %s): %v", i+1, req.MasterID, err))
			if domain.IsFatal(err) {
				res.Aborted = true
				break
			}
			continue
		}
		res.GroupsProcessed++
		res.VendorsDeactivated += st.deactivated
		res.DependentRecordsRepointed += st.repointed
		res.UsersDeactivated += st.users
	}

	logger.Info("vendor merge finished",
		"actor", actor, "groups", res.GroupsProcessed, "deactivated", res.VendorsDeactivated,
		"repointed", res.DependentRecordsRepointed, "errors", len(res.Errors), "aborted", res.Aborted)

	if s.ledger != nil {
		entry := &domain.SyncLedgerEntry{
			SyncedAt:    time.Now().UTC(),
			Updated:     res.DependentRecordsRepointed,
			Errors:      res.Errors,
			TriggeredBy: ledger.Trigger("vendor_merge", actor),
			Details: map[string]any{
				"groupsProcessed":           res.GroupsProcessed,
				"vendorsDeactivated":        res.VendorsDeactivated,
				"dependentRecordsRepointed": res.DependentRecordsRepointed,
				"usersDeactivated":          res.UsersDeactivated,
				"merges":                    requests,
			},
		}
		if err := s.ledger.Append(ctx, entry); err != nil {
			logger.Error("vendor merge ledger append failed", "error", err)
		}
	}
	return res
}

func (s *Service) mergeGroup(ctx context.Context, req MergeRequest) (groupStats, error) {
	var st groupStats

	masterID := strings.TrimSpace(req.MasterID)
	duplicateIDs, err := cleanDuplicateIDs(masterID, req.DuplicateIDs)
	if err != nil {
		return st, err
	}

	locked, err := s.vendors.LockVendors(ctx, append([]string{masterID}, duplicateIDs...))
	if err != nil {
		return st, err
	}
	byID := make(map[string]domain.VendorIdentity, len(locked))
	for _, v := range locked {
		byID[v.ID] = v
	}

	master, ok := byID[masterID]
	if !ok {
		return st, domain.NotFoundError("vendors.merge", "master vendor %s", masterID)
	}
	if master.IsMerged() {
		return st, domain.ConflictError("vendors.merge", "master vendor %s has already been merged", masterID)
	}

	var active []string
	for _, id := range duplicateIDs {
		dup, ok := byID[id]
		if !ok {
			return st, domain.NotFoundError("vendors.merge", "duplicate vendor %s", id)
		}
		if !dup.IsMerged() {
			active = append(active, id)
		}
	}
	if len(active) == 0 {
		return st, nil
	}

	transfers, err := s.vendors.RepointTransfers(ctx, masterID, active)
	if err != nil {
		return st, err
	}
	products, err := s.vendors.RepointProducts(ctx, masterID, active)
	if err != nil {
		return st, err
	}
	moved, deactivated, err := s.moveUsers(ctx, masterID, active)
	if err != nil {
		return st, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "duplicate of " + master.Name
	}
	for _, id := range active {
		if err := s.vendors.RecordMerge(ctx, masterID, id, reason); err != nil {
			return st, err
		}
	}

	n, err := s.vendors.Deactivate(ctx, active)
	if err != nil {
		return st, err
	}

	st.deactivated = n
	st.repointed = transfers + products + moved
	st.users = deactivated
	return st, nil
}

// moveUsers repoints the duplicates' users to the master. An active user
// whose email is already active under the master, or was claimed by an
// earlier duplicate of this group, is deactivated as it moves.
func (s *Service) moveUsers(ctx context.Context, masterID string, duplicateIDs []string) (moved, deactivated int, err error) {
	users, err := s.vendors.ListUsers(ctx, append([]string{masterID}, duplicateIDs...))
	if err != nil {
		return 0, 0, err
	}

	activeEmails := make(map[string]bool)
	for _, u := range users {
		if u.VendorID == masterID && u.IsActive {
			activeEmails[strings.ToLower(u.Email)] = true
		}
	}

	for _, u := range users {
		if u.VendorID == masterID {
			continue
		}
		email := strings.ToLower(u.Email)
		clash := u.IsActive && activeEmails[email]
		if err := s.vendors.MoveUser(ctx, u.ID, masterID, clash); err != nil {
			return 0, 0, err
		}
		moved++
		if clash {
			deactivated++
		} else if u.IsActive {
			activeEmails[email] = true
		}
	}
	return moved, deactivated, nil
}

func cleanDuplicateIDs(masterID string, ids []string) ([]string, error) {
	if masterID == "" {
		return nil, domain.ValidationError("vendors.merge", "masterId is required")
	}
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if id == masterID {
			return nil, domain.ConflictError("vendors.merge", "vendor %s cannot be merged into itself", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, domain.ValidationError("vendors.merge", "duplicateIds must name at least one vendor")
	}
	return out, nil
}
