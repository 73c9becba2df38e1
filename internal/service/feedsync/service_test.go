package feedsync

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/mailfetch"
	"github.com/ignite/guest-reconciler/internal/repository/memory"
	"github.com/ignite/guest-reconciler/internal/service/feed"
	"github.com/ignite/guest-reconciler/internal/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `<LIST_G_RESERVATION>
  <G_RESERVATION>
    <RESV_NAME_ID>501</RESV_NAME_ID>
    <GUEST_NAME>DOE, JANE</GUEST_NAME>
    <EMAIL>jane@x.com</EMAIL>
    <ARRIVAL>2024-03-14</ARRIVAL>
    <DEPARTURE>2024-03-18</DEPARTURE>
    <RESV_STATUS>RESERVED</RESV_STATUS>
  </G_RESERVATION>
  <G_RESERVATION>
    <RESV_NAME_ID>502</RESV_NAME_ID>
    <GUEST_NAME>Carlos Ruiz</GUEST_NAME>
    <ARRIVAL>2024-03-20</ARRIVAL>
    <DEPARTURE>2024-03-19</DEPARTURE>
  </G_RESERVATION>
</LIST_G_RESERVATION>`

type fakeFetcher struct {
	res *mailfetch.FetchResult
	err error
}

func (f *fakeFetcher) FetchAttachments(context.Context) (*mailfetch.FetchResult, error) {
	return f.res, f.err
}

func newTestService(fetcher mailfetch.Fetcher) (*Service, *memory.Store) {
	store := memory.New()
	im := feed.NewImporter(store, store.Guests, store.Reservations)
	return NewService(fetcher, im, ledger.NewService(store.Ledger)), store
}

func TestRunOnce_ImportsAndRecords(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{res: &mailfetch.FetchResult{
		MessagesFound: 2,
		Payloads: []mailfetch.Payload{
			{MessageID: "m1", Filename: "arrivals.xml", Data: []byte(payload)},
			{MessageID: "m1", Filename: "broken.xml", Data: []byte("<<<")},
		},
		Errors: []string{"message m2: no XML attachment"},
	}}
	svc, store := newTestService(fetcher)

	res, err := svc.RunOnce(ctx, "manual:ana")
	require.NoError(t, err)
	assert.Equal(t, 2, res.EmailsFound)
	assert.Equal(t, 1, res.XMLsProcessed)
	assert.Equal(t, 1, res.Created)
	assert.Zero(t, res.Updated)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, "message m2: no XML attachment", res.Errors[0])
	assert.Contains(t, res.Errors[1], "broken.xml (m1)")
	assert.Contains(t, res.Errors[2], "arrivals.xml: record 2 (502)")

	entries, err := store.Ledger.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "manual:ana", e.TriggeredBy)
	assert.Equal(t, 2, e.EmailsFound)
	assert.Equal(t, 1, e.XMLsProcessed)
	assert.Len(t, e.Details["createdRecords"], 1)

	t.Run("replay updates instead of duplicating", func(t *testing.T) {
		again, err := svc.RunOnce(ctx, "scheduled")
		require.NoError(t, err)
		assert.Zero(t, again.Created)
		assert.Equal(t, 1, again.Updated)
	})
}

func TestRunOnce_FetchFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(&fakeFetcher{err: domain.CollaboratorError("gmail.list", errors.New("401 Unauthorized"))})

	res, err := svc.RunOnce(ctx, "scheduled")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.MailboxFailed)
	assert.Zero(t, res.EmailsFound)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "401")
	require.Error(t, res.MailboxError())
	assert.Contains(t, res.MailboxError().Error(), "gmail.list")

	entries, err := store.Ledger.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "scheduled", entries[0].TriggeredBy)
}

func TestRunOnce_NoMailSource(t *testing.T) {
	svc, _ := newTestService(nil)
	assert.False(t, svc.HasMailSource())

	_, err := svc.RunOnce(context.Background(), "scheduled")
	assert.ErrorIs(t, err, ErrNoMailSource)
	assert.Equal(t, domain.KindCollaborator, domain.KindOf(err))
}

func TestImportUpload(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(nil)

	out, err := svc.ImportUpload(ctx, "export.xml", []byte(payload), "ana")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
	assert.Len(t, out.Errors, 1)

	entries, err := store.Ledger.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "xml_upload:ana", entries[0].TriggeredBy)
	assert.Equal(t, "export.xml", entries[0].Details["filename"])

	_, err = svc.ImportUpload(ctx, "bad.xml", []byte("not xml"), "ana")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
