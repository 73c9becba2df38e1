// Package feedsync runs one mailbox sweep: fetch the Opera XML exports,
// import each one and record the run in the sync ledger. It is shared by
// the manual sync endpoint, the upload endpoint and the hourly poller.
package feedsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/mailfetch"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"github.com/ignite/guest-reconciler/internal/service/feed"
	"github.com/ignite/guest-reconciler/internal/service/ledger"
)

// Importer applies one XML payload.
type Importer interface {
	Import(ctx context.Context, data []byte) (*feed.Result, error)
}

// LedgerAppender records a finished run.
type LedgerAppender interface {
	Append(ctx context.Context, e *domain.SyncLedgerEntry) error
}

// SyncResult summarises one sweep.
type SyncResult struct {
	EmailsFound   int      `json:"emails_found"`
	XMLsProcessed int      `json:"xmls_processed"`
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Errors        []string `json:"errors"`
	// MailboxFailed is set when the mailbox could not be read at all; the
	// cause is the first entry of Errors.
	MailboxFailed bool     `json:"mailbox_failed,omitempty"`
}

// MailboxError returns the mailbox failure, or nil.
func (r *SyncResult) MailboxError() error {
	if r == nil || !r.MailboxFailed || len(r.Errors) == 0 {
		return nil
	}
	return errors.New(r.Errors[0])
}

// ErrNoMailSource is returned by RunOnce when no mailbox is configured.
var ErrNoMailSource = errors.New("mail source not configured")

// Service orchestrates fetch, import and ledger.
type Service struct {
	fetcher  mailfetch.Fetcher
	importer Importer
	ledger   LedgerAppender
}

// NewService creates a feed sync service. fetcher may be nil, in which case
// only uploads are possible.
func NewService(fetcher mailfetch.Fetcher, importer Importer, appender LedgerAppender) *Service {
	return &Service{fetcher: fetcher, importer: importer, ledger: appender}
}

// HasMailSource reports whether RunOnce can sweep a mailbox.
func (s *Service) HasMailSource() bool { return s.fetcher != nil }

// RunOnce sweeps the mailbox and imports every XML attachment found. A
// payload that fails to parse is reported and the rest continue; a fatal
// store error stops the sweep. A mailbox that cannot be read is reported in
// the summary with MailboxFailed set, not returned as an error. Every run is
// recorded in the ledger, including failed ones.
func (s *Service) RunOnce(ctx context.Context, triggeredBy string) (*SyncResult, error) {
	if s.fetcher == nil {
		return nil, domain.CollaboratorError("feedsync.run", ErrNoMailSource)
	}

	res := &SyncResult{Errors: []string{}}
	var created, updated []feed.RecordDetail

	fetched, err := s.fetcher.FetchAttachments(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		res.MailboxFailed = true
		s.record(ctx, res, triggeredBy, created, updated)
		logger.Error("feed sync mailbox failed", "triggered_by", triggeredBy, "error", err)
		return res, nil
	}
	res.EmailsFound = fetched.MessagesFound
	res.Errors = append(res.Errors, fetched.Errors...)

	for _, p := range fetched.Payloads {
		out, err := s.importer.Import(ctx, p.Data)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s (%s): %v", p.Filename, p.MessageID, err))
			continue
		}
		res.XMLsProcessed++
		res.Created += out.Created
		res.Updated += out.Updated
		for _, e := range out.Errors {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", p.Filename, e))
		}
		created = append(created, out.CreatedRecords...)
		updated = append(updated, out.UpdatedRecords...)
		if out.Aborted {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: import aborted, remaining attachments skipped", p.Filename))
			break
		}
	}

	s.record(ctx, res, triggeredBy, created, updated)
	logger.Info("feed sync finished",
		"triggered_by", triggeredBy, "emails", res.EmailsFound, "xmls", res.XMLsProcessed,
		"created", res.Created, "updated", res.Updated, "errors", len(res.Errors))
	return res, nil
}

// ImportUpload imports one XML document posted by a user and records it in
// the ledger. An unparsable document is a validation error and is not
// recorded.
func (s *Service) ImportUpload(ctx context.Context, filename string, data []byte, actor string) (*feed.Result, error) {
	out, err := s.importer.Import(ctx, data)
	if err != nil {
		return nil, err
	}

	entry := &domain.SyncLedgerEntry{
		SyncedAt:      time.Now().UTC(),
		XMLsProcessed: 1,
		Created:       out.Created,
		Updated:       out.Updated,
		Errors:        out.Errors,
		TriggeredBy:   ledger.Trigger("xml_upload", actor),
		Details: map[string]any{
			"filename":       filename,
			"createdRecords": out.CreatedRecords,
			"updatedRecords": out.UpdatedRecords,
		},
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		logger.Error("feed upload ledger append failed", "error", err)
	}
	logger.Info("feed upload imported", "file", filename, "created", out.Created, "updated", out.Updated)
	return out, nil
}

func (s *Service) record(ctx context.Context, res *SyncResult, triggeredBy string, created, updated []feed.RecordDetail) {
	if created == nil {
		created = []feed.RecordDetail{}
	}
	if updated == nil {
		updated = []feed.RecordDetail{}
	}
	entry := &domain.SyncLedgerEntry{
		SyncedAt:      time.Now().UTC(),
		EmailsFound:   res.EmailsFound,
		XMLsProcessed: res.XMLsProcessed,
		Created:       res.Created,
		Updated:       res.Updated,
		Errors:        res.Errors,
		TriggeredBy:   triggeredBy,
		Details: map[string]any{
			"createdRecords": created,
			"updatedRecords": updated,
		},
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		logger.Error("feed sync ledger append failed", "error", err)
	}
}
