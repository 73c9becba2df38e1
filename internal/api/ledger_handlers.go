package api

import (
	"net/http"
	"strconv"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/httputil"
)

// SyncLog lists the newest ledger entries.
//
//	GET /api/sync-log?limit=N
func (h *Handlers) SyncLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.BadRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string][]domain.SyncLedgerEntry{"entries": entries})
}
