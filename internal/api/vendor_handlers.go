package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/httputil"
	"github.com/ignite/guest-reconciler/internal/service/vendormerge"
)

// MergeVendorsRequest is the body of POST /api/vendors/merge.
type MergeVendorsRequest struct {
	Merges []vendormerge.MergeRequest `json:"merges"`
	Actor  string                     `json:"actor"`
}

// SaveVendorRequest is the body of POST /api/vendors. IsActive defaults to
// true for new entries.
type SaveVendorRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	IsActive *bool  `json:"is_active"`
	ColorTag string `json:"color_tag"`
}

// VendorDuplicates proposes duplicate groups. Read-only.
//
//	GET /api/vendors/duplicates
func (h *Handlers) VendorDuplicates(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.vendors.Analyze(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, analysis)
}

// MergeVendors applies reviewed groups, one transaction per group.
//
//	POST /api/vendors/merge
func (h *Handlers) MergeVendors(w http.ResponseWriter, r *http.Request) {
	var req MergeVendorsRequest
	if !httputil.Decode(w, r, &req, 1<<20) {
		return
	}
	if len(req.Merges) == 0 {
		httputil.BadRequest(w, "merges must not be empty")
		return
	}
	httputil.OK(w, h.vendors.Merge(r.Context(), req.Merges, actorOf(r, req.Actor)))
}

// SaveVendor creates or updates a vendor by manual entry.
//
//	POST /api/vendors
func (h *Handlers) SaveVendor(w http.ResponseWriter, r *http.Request) {
	var req SaveVendorRequest
	if !httputil.Decode(w, r, &req, 64<<10) {
		return
	}
	v := &domain.VendorIdentity{
		ID:       req.ID,
		Name:     req.Name,
		Type:     req.Type,
		Email:    req.Email,
		Phone:    req.Phone,
		IsActive: req.IsActive == nil || *req.IsActive,
		ColorTag: req.ColorTag,
	}
	saved, err := h.vendors.SaveVendor(r.Context(), v)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, saved)
}

// GetVendor returns one vendor.
//
//	GET /api/vendors/{id}
func (h *Handlers) GetVendor(w http.ResponseWriter, r *http.Request) {
	v, err := h.vendors.Vendor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, v)
}
