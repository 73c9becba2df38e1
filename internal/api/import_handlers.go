package api

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/httputil"
	"github.com/ignite/guest-reconciler/internal/service/guestimport"
)

// ExecuteImportRequest is the body of POST /api/import/execute.
type ExecuteImportRequest struct {
	Rows  []guestimport.AnalysisRow `json:"rows"`
	Actor string                    `json:"actor"`
}

// ExecuteImportResponse wraps the executor result.
type ExecuteImportResponse struct {
	Success bool                       `json:"success"`
	Result  *guestimport.ExecuteResult `json:"result"`
}

// AnalyzeImport classifies every row of an uploaded CSV. The file is
// accepted as multipart field "file" or as a raw text/csv body.
//
//	POST /api/import/analyze
func (h *Handlers) AnalyzeImport(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := h.uploadReader(w, r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeBody()

	analysis, err := h.imports.Analyze(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, analysis)
}

// ExecuteImport applies reviewed rows.
//
//	POST /api/import/execute
func (h *Handlers) ExecuteImport(w http.ResponseWriter, r *http.Request) {
	var req ExecuteImportRequest
	if !httputil.Decode(w, r, &req, h.maxUpload) {
		return
	}
	if len(req.Rows) == 0 {
		httputil.BadRequest(w, "rows must not be empty")
		return
	}

	res := h.imports.Execute(r.Context(), req.Rows, actorOf(r, req.Actor))
	httputil.OK(w, ExecuteImportResponse{Success: !res.Aborted, Result: res})
}

// uploadReader returns the uploaded document, either a multipart file
// field or the raw request body, limited to the configured upload size.
func (h *Handlers) uploadReader(w http.ResponseWriter, r *http.Request, field string) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, func() {}, nil
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, nil, domain.ValidationError("upload", "invalid multipart body: %v", err)
	}
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, nil, domain.ValidationError("upload", "multipart field %q is required", field)
	}
	return f, func() { f.Close() }, nil
}

// actorOf prefers the actor named in the body, then the X-Actor header.
func actorOf(r *http.Request, bodyActor string) string {
	if a := strings.TrimSpace(bodyActor); a != "" {
		return a
	}
	if a := strings.TrimSpace(r.Header.Get("X-Actor")); a != "" {
		return a
	}
	return "anonymous"
}
