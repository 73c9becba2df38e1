package mailfetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/guest-reconciler/internal/config"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	gmailAPIBase     = "https://gmail.googleapis.com/gmail/v1"
	gmailModifyScope = "https://www.googleapis.com/auth/gmail.modify"
)

// GmailFetcher reads unread messages under a label. Consuming a message
// removes its UNREAD label.
type GmailFetcher struct {
	httpClient *http.Client
	baseURL    string
	label      string
	maxResults int
}

// NewGmailFetcher creates a fetcher authenticated with a long-lived refresh
// token. The oauth2 client refreshes access tokens as needed.
func NewGmailFetcher(ctx context.Context, cfg config.GmailConfig) *GmailFetcher {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmailModifyScope},
		Endpoint:     google.Endpoint,
	}
	client := oc.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	client.Timeout = cfg.Timeout()
	return NewGmailFetcherWithClient(client, gmailAPIBase, cfg.Label, cfg.MaxResults)
}

// NewGmailFetcherWithClient creates a fetcher with a custom HTTP client and
// API base (for testing).
func NewGmailFetcherWithClient(httpClient *http.Client, baseURL, label string, maxResults int) *GmailFetcher {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &GmailFetcher{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		label:      label,
		maxResults: maxResults,
	}
}

type gmailListResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type gmailMessage struct {
	ID      string    `json:"id"`
	Payload gmailPart `json:"payload"`
}

type gmailPart struct {
	MimeType string      `json:"mimeType"`
	Filename string      `json:"filename"`
	Body     gmailBody   `json:"body"`
	Parts    []gmailPart `json:"parts"`
}

type gmailBody struct {
	AttachmentID string `json:"attachmentId"`
	Size         int    `json:"size"`
	Data         string `json:"data"`
}

// FetchAttachments lists unread labelled messages and extracts their XML
// attachments. Failing to list is a collaborator error; failures on single
// messages are reported in the result.
func (g *GmailFetcher) FetchAttachments(ctx context.Context) (*FetchResult, error) {
	ids, err := g.listMessageIDs(ctx)
	if err != nil {
		return nil, domain.CollaboratorError("gmail.list", err)
	}

	res := &FetchResult{MessagesFound: len(ids)}
	for _, id := range ids {
		payloads, err := g.messagePayloads(ctx, id)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("message %s: %v", id, err))
			continue
		}
		if len(payloads) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("message %s: no XML attachment", id))
			continue
		}
		res.Payloads = append(res.Payloads, payloads...)

		if err := g.markRead(ctx, id); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("message %s: mark read: %v", id, err))
		}
	}

	logger.Info("gmail sweep finished",
		"label", g.label, "messages", res.MessagesFound, "payloads", len(res.Payloads), "errors", len(res.Errors))
	return res, nil
}

func (g *GmailFetcher) query() string {
	label := g.label
	if strings.ContainsAny(label, " \t") {
		label = `"` + label + `"`
	}
	return fmt.Sprintf("label:%s is:unread has:attachment", label)
}

func (g *GmailFetcher) listMessageIDs(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("q", g.query())
	params.Set("maxResults", fmt.Sprintf("%d", g.maxResults))

	var list gmailListResponse
	if err := g.getJSON(ctx, "/users/me/messages?"+params.Encode(), &list); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (g *GmailFetcher) messagePayloads(ctx context.Context, id string) ([]Payload, error) {
	var msg gmailMessage
	if err := g.getJSON(ctx, "/users/me/messages/"+url.PathEscape(id)+"?format=full", &msg); err != nil {
		return nil, err
	}

	var out []Payload
	var walk func(p gmailPart) error
	walk = func(p gmailPart) error {
		for _, child := range p.Parts {
			if err := walk(child); err != nil {
				return err
			}
		}
		if p.Filename == "" || !isXMLAttachment(p.Filename, p.MimeType) {
			return nil
		}
		data, err := g.partData(ctx, id, p.Body)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", p.Filename, err)
		}
		out = append(out, Payload{MessageID: id, Filename: p.Filename, Data: data})
		return nil
	}
	if err := walk(msg.Payload); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GmailFetcher) partData(ctx context.Context, messageID string, body gmailBody) ([]byte, error) {
	encoded := body.Data
	if body.AttachmentID != "" {
		var att gmailBody
		path := fmt.Sprintf("/users/me/messages/%s/attachments/%s",
			url.PathEscape(messageID), url.PathEscape(body.AttachmentID))
		if err := g.getJSON(ctx, path, &att); err != nil {
			return nil, err
		}
		encoded = att.Data
	}
	return decodeBase64URL(encoded)
}

func (g *GmailFetcher) markRead(ctx context.Context, id string) error {
	body, _ := json.Marshal(map[string][]string{"removeLabelIds": {"UNREAD"}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/users/me/messages/"+url.PathEscape(id)+"/modify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gmail API error: %d - %s", resp.StatusCode, string(data))
	}
	return nil
}

func (g *GmailFetcher) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gmail API error: %d - %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// decodeBase64URL accepts Gmail's base64url data with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
