// Package mailfetch retrieves Opera XML exports delivered as e-mail
// attachments.
//
// Two mailboxes are supported: a Gmail label read through the Gmail REST
// API and an S3 bucket fed by SES inbound rules. Both mark a message as
// consumed only after at least one XML attachment was extracted from it,
// so a transient read failure leaves the message for the next poll.
// Delivery is at-least-once; replays are absorbed by the feed importer's
// upsert on the external reservation id.
package mailfetch

import (
	"context"
	"path"
	"strings"
)

// Payload is one XML attachment.
type Payload struct {
	MessageID string
	Filename  string
	Data      []byte
}

// FetchResult is the outcome of one mailbox sweep. Errors holds per-message
// failures; the sweep itself continues past them.
type FetchResult struct {
	MessagesFound int
	Payloads      []Payload
	Errors        []string
}

// Fetcher is a mailbox backend.
type Fetcher interface {
	FetchAttachments(ctx context.Context) (*FetchResult, error)
}

// isXMLAttachment reports whether a part looks like an Opera export.
func isXMLAttachment(filename, mimeType string) bool {
	if strings.EqualFold(path.Ext(filename), ".xml") {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType == "application/xml" || mimeType == "text/xml"
}
