package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/httputil"
	"github.com/ignite/guest-reconciler/internal/service/feedsync"
	"github.com/ignite/guest-reconciler/internal/service/ledger"
)

// SyncFeed sweeps the mailbox now. It does not take the poller's lock, so
// it may overlap a scheduled sweep; reimports are idempotent. A mailbox
// failure still answers 200 with the summary and its errors.
//
//	POST /api/feed/sync
func (h *Handlers) SyncFeed(w http.ResponseWriter, r *http.Request) {
	res, err := h.feed.RunOnce(r.Context(), ledger.Trigger("manual", actorOf(r, "")))
	if err != nil {
		if errors.Is(err, feedsync.ErrNoMailSource) {
			httputil.ServiceUnavailable(w, err.Error())
			return
		}
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}

// UploadFeed imports one Opera XML export posted as the raw body or as
// multipart field "file".
//
//	POST /api/feed/upload
func (h *Handlers) UploadFeed(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := h.uploadReader(w, r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeBody()

	data, err := io.ReadAll(body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "too_large", "upload too large")
			return
		}
		writeError(w, domain.ValidationError("feed.upload", "read body: %v", err))
		return
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		httputil.BadRequest(w, "empty upload")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload.xml"
	}
	res, err := h.feed.ImportUpload(r.Context(), filename, data, actorOf(r, ""))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}
