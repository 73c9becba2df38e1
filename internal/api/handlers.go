package api

import (
	"context"
	"io"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/service/feed"
	"github.com/ignite/guest-reconciler/internal/service/feedsync"
	"github.com/ignite/guest-reconciler/internal/service/guestimport"
	"github.com/ignite/guest-reconciler/internal/service/vendormerge"
)

// GuestImporter is the CSV reconciliation pipeline.
type GuestImporter interface {
	Analyze(ctx context.Context, r io.Reader) (*guestimport.Analysis, error)
	Execute(ctx context.Context, rows []guestimport.AnalysisRow, actor string) *guestimport.ExecuteResult
}

// FeedSyncer runs mailbox sweeps and manual XML uploads.
type FeedSyncer interface {
	RunOnce(ctx context.Context, triggeredBy string) (*feedsync.SyncResult, error)
	ImportUpload(ctx context.Context, filename string, data []byte, actor string) (*feed.Result, error)
}

// VendorMerger groups and merges vendors.
type VendorMerger interface {
	Analyze(ctx context.Context) (*vendormerge.Analysis, error)
	Merge(ctx context.Context, requests []vendormerge.MergeRequest, actor string) *vendormerge.MergeResult
	SaveVendor(ctx context.Context, v *domain.VendorIdentity) (*domain.VendorIdentity, error)
	Vendor(ctx context.Context, id string) (*domain.VendorIdentity, error)
}

// LedgerReader lists recent sync runs.
type LedgerReader interface {
	Recent(ctx context.Context, limit int) ([]domain.SyncLedgerEntry, error)
}

// Pinger checks the canonical store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PollerStatus reports the in-process feed poller, when one runs.
type PollerStatus interface {
	IsHealthy() bool
	IsRunning() bool
	LastError() string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	imports   GuestImporter
	feed      FeedSyncer
	vendors   VendorMerger
	ledger    LedgerReader
	store     Pinger
	storeType string
	poller    PollerStatus
	maxUpload int64
}

// Deps are the collaborators of the handlers. Poller may be nil.
type Deps struct {
	Imports        GuestImporter
	Feed           FeedSyncer
	Vendors        VendorMerger
	Ledger         LedgerReader
	Store          Pinger
	StoreType      string
	Poller         PollerStatus
	MaxUploadBytes int64
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &Handlers{
		imports:   d.Imports,
		feed:      d.Feed,
		vendors:   d.Vendors,
		ledger:    d.Ledger,
		store:     d.Store,
		storeType: d.StoreType,
		poller:    d.Poller,
		maxUpload: maxUpload,
	}
}
