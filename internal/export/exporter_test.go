package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/presentation-api/internal/deliver"
	"github.com/yourorg/presentation-api/internal/events"
	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/quota"
	"github.com/yourorg/presentation-api/internal/tier"
)

// countingStore wraps the in-memory subscription store so tests can assert
// which quota operations a pipeline run actually performed.
type countingStore struct {
	*quota.MemoryStore
	usageCalls  int
	commitCalls int
}

func (s *countingStore) Usage(ctx context.Context, accountID, period string) (int, error) {
	s.usageCalls++
	return s.MemoryStore.Usage(ctx, accountID, period)
}

func (s *countingStore) CommitAuthorization(ctx context.Context, accountID, period, token string) (bool, error) {
	s.commitCalls++
	return s.MemoryStore.CommitAuthorization(ctx, accountID, period, token)
}

type fakeEmail struct {
	calls int
	last  deliver.EmailMessage
	err   error
}

func (f *fakeEmail) Send(_ context.Context, msg deliver.EmailMessage) (string, error) {
	f.calls++
	f.last = msg
	if f.err != nil {
		return "", f.err
	}
	return "email-1", nil
}

type fakeComps struct {
	calls int
	out   []model.ComparableRecord
	err   error
}

func (f *fakeComps) Fetch(_ context.Context, _ model.PropertyRecord) ([]model.ComparableRecord, error) {
	f.calls++
	return f.out, f.err
}

type captureEvents struct {
	published []events.ExportCompleted
}

func (c *captureEvents) PublishExportCompleted(_ context.Context, ev events.ExportCompleted) {
	c.published = append(c.published, ev)
}

func (c *captureEvents) SubscribeExportCompleted() <-chan events.ExportCompleted { return nil }

type captureReceipts struct {
	saved []*deliver.Receipt
}

func (c *captureReceipts) SaveReceipt(_ context.Context, _ string, r *deliver.Receipt) error {
	c.saved = append(c.saved, r)
	return nil
}

func testProperty() model.PropertyRecord {
	return model.PropertyRecord{
		Address:        "123 Main St",
		City:           "Nashville",
		State:          "TN",
		Zip:            "37201",
		PropertyType:   "Single Family",
		Bedrooms:       3,
		Bathrooms:      2,
		SquareFootage:  1850,
		YearBuilt:      1995,
		EstimatedValue: 425000,
	}
}

func testComparables() []model.ComparableRecord {
	return []model.ComparableRecord{
		{Address: "125 Main St", Price: 295000, Bedrooms: 3, Bathrooms: 2, SquareFootage: 1800, SoldDate: "2026-05-01", PricePerSquareFoot: 163.9},
		{Address: "130 Oak Ave", Price: 300000, Bedrooms: 3, Bathrooms: 2.5, SquareFootage: 1900, SoldDate: "2026-04-12", PricePerSquareFoot: 157.9},
	}
}

func newExporter(t *testing.T, tr tier.Tier) (*Exporter, *countingStore, *fakeEmail) {
	t.Helper()
	store := &countingStore{MemoryStore: quota.NewMemoryStore()}
	store.SetAccount(quota.Account{ID: "a1", Tier: tr})
	email := &fakeEmail{}
	return &Exporter{
		Quota:      quota.NewManager(store),
		Dispatcher: &deliver.Dispatcher{Email: email},
		Brand:      "Foreclosure Solutions",
	}, store, email
}

func TestExportDownloadDocument(t *testing.T) {
	e, store, _ := newExporter(t, tier.Pro)
	ev := &captureEvents{}
	rcpts := &captureReceipts{}
	e.Events = ev
	e.Receipts = rcpts

	res, err := e.Export(context.Background(), Request{
		AccountID:   "a1",
		Property:    testProperty(),
		Comparables: testComparables(),
		Format:      tier.FormatDocument,
		Channel:     tier.ChannelDownload,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Receipt.Artifact)
	assert.Equal(t, "123_Main_St_presentation.txt", res.Receipt.Filename)
	assert.Equal(t, 297500.0, *res.Model.AveragePrice)

	// Exactly one commit, one saved receipt, one event.
	assert.Equal(t, 1, store.commitCalls)
	used, _, err := e.Quota.Usage(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
	require.Len(t, rcpts.saved, 1)
	require.Len(t, ev.published, 1)
	assert.Equal(t, tier.ChannelDownload, ev.published[0].Channel)
}

func TestExportSlidesAlwaysFiveSlides(t *testing.T) {
	e, _, _ := newExporter(t, tier.Premium)

	res, err := e.Export(context.Background(), Request{
		AccountID: "a1",
		Property:  testProperty(),
		Format:    tier.FormatSlides,
		Channel:   tier.ChannelDownload,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Receipt.Artifact)

	var deck []struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(res.Receipt.Artifact.Payload, &deck))
	require.Len(t, deck, 5)
	assert.Equal(t, "title", deck[0].Kind)
}

func TestExportNotPermittedSkipsQuota(t *testing.T) {
	e, store, email := newExporter(t, tier.Basic)

	_, err := e.Export(context.Background(), Request{
		AccountID:   "a1",
		Property:    testProperty(),
		Format:      tier.FormatDocument,
		Channel:     tier.ChannelMail,
		Destination: deliver.Destination{AddressLine1: "1 St", City: "X", State: "TN", Zip: "37201"},
	})
	var de *deliver.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deliver.ReasonNotPermitted, de.Reason)
	assert.Zero(t, store.usageCalls)
	assert.Zero(t, store.commitCalls)
	assert.Zero(t, email.calls)
}

func TestExportValidationSkipsQuota(t *testing.T) {
	e, store, _ := newExporter(t, tier.Pro)

	_, err := e.Export(context.Background(), Request{
		AccountID: "a1",
		Property:  model.PropertyRecord{City: "Nashville", EstimatedValue: 100},
		Format:    tier.FormatDocument,
		Channel:   tier.ChannelDownload,
	})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "address", ve.Field)
	assert.Zero(t, store.usageCalls)
	assert.Zero(t, store.commitCalls)
}

func TestExportValidationSkipsProviderFetch(t *testing.T) {
	e, store, _ := newExporter(t, tier.Pro)
	provider := &fakeComps{out: testComparables()}
	e.Comps = provider

	_, err := e.Export(context.Background(), Request{
		AccountID:        "a1",
		Property:         model.PropertyRecord{},
		FetchComparables: true,
		Format:           tier.FormatDocument,
		Channel:          tier.ChannelDownload,
	})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, provider.calls, "malformed input must not reach the provider")
	assert.Zero(t, store.usageCalls)
}

func TestExportQuotaExceeded(t *testing.T) {
	e, _, email := newExporter(t, tier.Basic)

	req := Request{
		AccountID:   "a1",
		Property:    testProperty(),
		Format:      tier.FormatDocument,
		Channel:     tier.ChannelEmail,
		Destination: deliver.Destination{Email: "homeowner@example.com"},
	}
	_, err := e.Export(context.Background(), req)
	require.NoError(t, err)

	_, err = e.Export(context.Background(), req)
	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 1, exceeded.Used)
	assert.Equal(t, 1, exceeded.Limit)
	assert.Equal(t, 1, email.calls)
}

func TestExportDispatchFailureReleasesQuotaForRetry(t *testing.T) {
	e, store, email := newExporter(t, tier.Basic)
	email.err = errors.New("connection reset")

	req := Request{
		AccountID:   "a1",
		Property:    testProperty(),
		Format:      tier.FormatDocument,
		Channel:     tier.ChannelEmail,
		Destination: deliver.Destination{Email: "homeowner@example.com"},
	}
	_, err := e.Export(context.Background(), req)
	var de *deliver.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deliver.ReasonTransport, de.Reason)
	assert.Zero(t, store.commitCalls)

	used, _, err := e.Quota.Usage(context.Background(), "a1")
	require.NoError(t, err)
	assert.Zero(t, used)

	// The failed attempt did not burn the basic tier's only slot.
	email.err = nil
	_, err = e.Export(context.Background(), req)
	require.NoError(t, err)
	used, _, err = e.Quota.Usage(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestExportFetchesComparablesWhenMissing(t *testing.T) {
	e, _, _ := newExporter(t, tier.Pro)
	provider := &fakeComps{out: testComparables()}
	e.Comps = provider

	res, err := e.Export(context.Background(), Request{
		AccountID:        "a1",
		Property:         testProperty(),
		FetchComparables: true,
		Format:           tier.FormatDocument,
		Channel:          tier.ChannelDownload,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
	assert.True(t, res.Model.HasComparables())
	assert.Equal(t, 297500.0, *res.Model.AveragePrice)
}

func TestExportProviderFailureFallsBack(t *testing.T) {
	e, _, _ := newExporter(t, tier.Pro)
	e.Comps = &fakeComps{err: errors.New("upstream 503")}

	res, err := e.Export(context.Background(), Request{
		AccountID:        "a1",
		Property:         testProperty(),
		FetchComparables: true,
		Format:           tier.FormatDocument,
		Channel:          tier.ChannelDownload,
	})
	require.NoError(t, err)
	assert.False(t, res.Model.HasComparables())
	assert.Contains(t, string(res.Receipt.Artifact.Payload), "No comparable properties available")
}

func TestExportSuppliedComparablesSkipProvider(t *testing.T) {
	e, _, _ := newExporter(t, tier.Pro)
	provider := &fakeComps{}
	e.Comps = provider

	_, err := e.Export(context.Background(), Request{
		AccountID:        "a1",
		Property:         testProperty(),
		Comparables:      testComparables(),
		FetchComparables: true,
		Format:           tier.FormatDocument,
		Channel:          tier.ChannelDownload,
	})
	require.NoError(t, err)
	assert.Zero(t, provider.calls)
}

func TestExportDefaultEmailSubject(t *testing.T) {
	e, _, email := newExporter(t, tier.Pro)

	_, err := e.Export(context.Background(), Request{
		AccountID:   "a1",
		Property:    testProperty(),
		Format:      tier.FormatDocument,
		Channel:     tier.ChannelEmail,
		Destination: deliver.Destination{Email: "homeowner@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Property Presentation - 123 Main St", email.last.Subject)
}

func TestExportCanceledContext(t *testing.T) {
	e, store, _ := newExporter(t, tier.Pro)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Export(ctx, Request{
		AccountID: "a1",
		Property:  testProperty(),
		Format:    tier.FormatDocument,
		Channel:   tier.ChannelDownload,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.commitCalls)
}

func TestExportDocumentHasPageFooters(t *testing.T) {
	e, _, _ := newExporter(t, tier.Pro)

	res, err := e.Export(context.Background(), Request{
		AccountID:   "a1",
		Property:    testProperty(),
		Comparables: testComparables(),
		Format:      tier.FormatDocument,
		Channel:     tier.ChannelDownload,
	})
	require.NoError(t, err)

	text := string(res.Receipt.Artifact.Payload)
	pages := strings.Split(text, "\f")
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "Foreclosure Solutions | Page 1 of 2")
	assert.Contains(t, pages[1], "Foreclosure Solutions | Page 2 of 2")
	assert.Equal(t, "text/plain; charset=utf-8", res.Receipt.Artifact.MIME)
}
