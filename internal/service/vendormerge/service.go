package vendormerge

import (
	"context"
	"strings"

	"github.com/ignite/guest-reconciler/internal/domain"
)

// Service groups and merges vendors. The classifier is optional; without
// one, Analyze uses the heuristic grouping only.
type Service struct {
	tx         Transactor
	vendors    VendorRepository
	classifier Classifier
	ledger     LedgerAppender
	prompt     *promptRenderer
}

// NewService creates a vendor merge service. classifier may be nil.
func NewService(tx Transactor, vendors VendorRepository, classifier Classifier, appender LedgerAppender) (*Service, error) {
	prompt, err := newPromptRenderer()
	if err != nil {
		return nil, err
	}
	return &Service{
		tx:         tx,
		vendors:    vendors,
		classifier: classifier,
		ledger:     appender,
		prompt:     prompt,
	}, nil
}

// SaveVendor creates or updates a vendor from manual entry. Merged vendors
// cannot be edited, and no vendor may be given the merge marker by hand.
func (s *Service) SaveVendor(ctx context.Context, v *domain.VendorIdentity) (*domain.VendorIdentity, error) {
	v.Name = strings.TrimSpace(v.Name)
	switch {
	case v.Name == "":
		return nil, domain.ValidationError("vendors.save", "name is required")
	case domain.IsMergedName(v.Name):
		return nil, domain.ValidationError("vendors.save", "name may not end with %s", domain.MergedMarker)
	}
	v.Email = strings.ToLower(strings.TrimSpace(v.Email))
	v.Phone = strings.TrimSpace(v.Phone)
	return s.vendors.Upsert(ctx, v)
}

// Vendor returns one vendor by id.
func (s *Service) Vendor(ctx context.Context, id string) (*domain.VendorIdentity, error) {
	return s.vendors.Get(ctx, id)
}
