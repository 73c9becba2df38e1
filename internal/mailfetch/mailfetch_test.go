package mailfetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ignite/guest-reconciler/internal/config"
	"github.com/ignite/guest-reconciler/internal/pkg/logger"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<LIST_G_RESERVATION><G_RESERVATION><RESV_NAME_ID>1</RESV_NAME_ID></G_RESERVATION></LIST_G_RESERVATION>`

func rawMessage(t *testing.T) []byte {
	t.Helper()
	encoded := base64.StdEncoding.EncodeToString([]byte(sampleXML))
	// wrap like a real mailer
	var wrapped strings.Builder
	for len(encoded) > 76 {
		wrapped.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	wrapped.WriteString(encoded)

	return []byte(strings.Join([]string{
		"From: opera@hotel.example",
		"To: feeds@hotel.example",
		"Subject: Reservations export",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hourly export attached.",
		"--inner--",
		"--outer",
		`Content-Type: application/octet-stream; name="=?UTF-8?Q?reservas_ma=C3=B1ana.xml?="`,
		"Content-Transfer-Encoding: base64",
		`Content-Disposition: attachment`,
		"",
		wrapped.String(),
		"--outer",
		"Content-Type: text/csv",
		`Content-Disposition: attachment; filename="summary.csv"`,
		"",
		"a,b",
		"--outer--",
		"",
	}, "\r\n"))
}

func TestExtractXMLAttachments(t *testing.T) {
	atts, err := ExtractXMLAttachments(rawMessage(t))
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "reservas mañana.xml", atts[0].Filename)
	assert.Equal(t, sampleXML, string(atts[0].Data))
}

func TestExtractXMLAttachments_QuotedPrintableTextXML(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@b.c",
		"Content-Type: text/xml; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"<LIST><NAME>Pe=C3=B1a</NAME></LIST>",
	}, "\r\n")
	atts, err := ExtractXMLAttachments([]byte(raw))
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "attachment.xml", atts[0].Filename)
	assert.Equal(t, "<LIST><NAME>Peña</NAME></LIST>", string(atts[0].Data))
}

func TestIsXMLAttachment(t *testing.T) {
	assert.True(t, isXMLAttachment("export.XML", "application/octet-stream"))
	assert.True(t, isXMLAttachment("", "application/xml; charset=utf-8"))
	assert.False(t, isXMLAttachment("export.csv", "text/csv"))
}

// gmailServer fakes the subset of the Gmail API the fetcher calls.
type gmailServer struct {
	mu       sync.Mutex
	modified []string
	query    string
}

func (s *gmailServer) handler(t *testing.T) http.Handler {
	xmlData := base64.URLEncoding.EncodeToString([]byte(sampleXML))
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.query = r.URL.Query().Get("q")
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "m1"}, {"id": "m2"}, {"id": "m3"}},
		})
	})
	mux.HandleFunc("/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "m1",
			"payload": map[string]any{
				"mimeType": "multipart/mixed",
				"parts": []map[string]any{
					{"mimeType": "text/plain", "body": map[string]any{"data": "aGk"}},
					{"mimeType": "application/xml", "filename": "export.xml", "body": map[string]any{"attachmentId": "a1"}},
				},
			},
		})
	})
	mux.HandleFunc("/users/me/messages/m1/attachments/a1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": xmlData})
	})
	mux.HandleFunc("/users/me/messages/m2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "m2",
			"payload": map[string]any{"mimeType": "text/plain", "body": map[string]any{"data": "aGk"}},
		})
	})
	mux.HandleFunc("/users/me/messages/m3", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend error", http.StatusInternalServerError)
	})
	for _, id := range []string{"m1", "m2", "m3"} {
		id := id
		mux.HandleFunc("/users/me/messages/"+id+"/modify", func(w http.ResponseWriter, r *http.Request) {
			var body map[string][]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"UNREAD"}, body["removeLabelIds"])
			s.mu.Lock()
			s.modified = append(s.modified, id)
			s.mu.Unlock()
			w.Write([]byte(`{}`))
		})
	}
	return mux
}

func TestGmailFetcher_MarksOnlyExtractedMessages(t *testing.T) {
	fake := &gmailServer{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	f := NewGmailFetcherWithClient(srv.Client(), srv.URL, "opera export", 10)
	res, err := f.FetchAttachments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.MessagesFound)
	require.Len(t, res.Payloads, 1)
	assert.Equal(t, "m1", res.Payloads[0].MessageID)
	assert.Equal(t, sampleXML, string(res.Payloads[0].Data))
	assert.Len(t, res.Errors, 2)

	assert.Equal(t, []string{"m1"}, fake.modified)
	assert.Equal(t, `label:"opera export" is:unread has:attachment`, fake.query)
}

func TestGmailFetcher_ListFailureIsCollaboratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_grant", http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := NewGmailFetcherWithClient(srv.Client(), srv.URL, "opera", 10)
	_, err := f.FetchAttachments(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindCollaborator, domain.KindOf(err))
}

// fakeBucket is an in-memory objectAPI.
type fakeBucket struct {
	objects map[string][]byte
	listErr error
	copyErr error
}

func (b *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(b.objects[k])))})
	}
	return out, nil
}

func (b *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (b *fakeBucket) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if b.copyErr != nil {
		return nil, b.copyErr
	}
	src := strings.TrimPrefix(aws.ToString(in.CopySource), aws.ToString(in.Bucket)+"/")
	b.objects[aws.ToString(in.Key)] = b.objects[src]
	return &s3.CopyObjectOutput{}, nil
}

func (b *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(b.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func testInboxConfig() config.S3InboxConfig {
	return config.S3InboxConfig{Bucket: "feeds", Prefix: "inbox/", ProcessedPrefix: "processed/", MaxMessages: 10}
}

func TestS3Inbox_MovesExtractedMessages(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{
		"inbox/msg-1": rawMessage(t),
		"inbox/msg-2": []byte("From: a@b.c\r\nContent-Type: text/plain\r\n\r\nno attachment\r\n"),
	}}
	inbox := newS3Inbox(bucket, testInboxConfig())

	var logs bytes.Buffer
	prev := logger.SetOutput(&logs)
	t.Cleanup(func() { logger.SetOutput(prev) })

	res, err := inbox.FetchAttachments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.MessagesFound)
	require.Len(t, res.Payloads, 1)
	assert.Equal(t, "inbox/msg-1", res.Payloads[0].MessageID)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "no XML attachment")

	_, stillPending := bucket.objects["inbox/msg-1"]
	assert.False(t, stillPending)
	assert.Contains(t, bucket.objects, "processed/msg-1")
	assert.Contains(t, bucket.objects, "inbox/msg-2")

	var entry map[string]string
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var e map[string]string
		require.NoError(t, json.Unmarshal(line, &e))
		if e["msg"] == "s3 inbox sweep finished" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "feeds", entry["bucket"])
	assert.Equal(t, "2", entry["messages"])
	assert.Equal(t, "1", entry["payloads"])
}

func TestS3Inbox_CopyFailureKeepsOriginal(t *testing.T) {
	bucket := &fakeBucket{
		objects: map[string][]byte{"inbox/msg-1": rawMessage(t)},
		copyErr: errors.New("AccessDenied"),
	}
	inbox := newS3Inbox(bucket, testInboxConfig())

	res, err := inbox.FetchAttachments(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Payloads, 1)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, bucket.objects, "inbox/msg-1")
}

func TestS3Inbox_ListFailure(t *testing.T) {
	inbox := newS3Inbox(&fakeBucket{listErr: errors.New("no route to host")}, testInboxConfig())
	_, err := inbox.FetchAttachments(context.Background())
	assert.Equal(t, domain.KindCollaborator, domain.KindOf(err))
}
