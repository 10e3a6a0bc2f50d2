package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type quoteFixture struct {
	*bookingFixture
	quotes   *QuoteService
	notifier *captureNotifier
	draftID  uuid.UUID
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()
	asset := newTestAsset(t, uuid.New(), 3, 10000)
	base := newBookingFixture(t, asset)

	notifier := &captureNotifier{}
	quotes := NewQuoteService(base.repo, shared.FixedClock{Time: testNow}, zap.NewNop())
	quotes.SetNotifier(notifier)
	quotes.SetEventPublisher(base.publisher)

	fx := &quoteFixture{bookingFixture: base, quotes: quotes, notifier: notifier}

	// Seed a draft with one line so quoting is possible
	draft := createDraft(t, base, defaultCreateRequest())
	_, err := base.service.AddLineItem(context.Background(), base.companyID, draft.ID, AddLineItemRequest{
		BookableID: asset.BookableID(),
		Quantity:   1,
		Taxable:    true,
	})
	require.NoError(t, err)
	fx.draftID = draft.ID
	return fx
}

// quotesAt builds a second service over the same store with a shifted clock,
// for exercising time-driven expiry
func (fx *quoteFixture) quotesAt(when time.Time) *QuoteService {
	svc := NewQuoteService(fx.repo, shared.FixedClock{Time: when}, zap.NewNop())
	svc.SetEventPublisher(fx.publisher)
	return svc
}

func TestQuoteServiceConvert(t *testing.T) {
	ctx := context.Background()

	t.Run("converts a draft with items", func(t *testing.T) {
		fx := newQuoteFixture(t)

		resp, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{
			Terms:     "Net 30, 50% deposit on approval",
			ValidDays: 14,
		})
		require.NoError(t, err)
		assert.Equal(t, "Q-20250601-0001", resp.QuoteNumber)
		assert.Equal(t, "DRAFT", resp.QuoteStatus)
		require.NotNil(t, resp.QuoteExpiresAt)
		assert.Equal(t, testNow.AddDate(0, 0, 14), *resp.QuoteExpiresAt)
	})

	t.Run("zero valid days means no expiry", func(t *testing.T) {
		fx := newQuoteFixture(t)

		resp, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{})
		require.NoError(t, err)
		assert.Nil(t, resp.QuoteExpiresAt)
	})

	t.Run("rejects a booking without items", func(t *testing.T) {
		fx := newQuoteFixture(t)
		empty := createDraft(t, fx.bookingFixture, defaultCreateRequest())

		_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, empty.ID, ConvertToQuoteRequest{})
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NO_ITEMS", domainErr.Code)
	})

	t.Run("rejects a second conversion", func(t *testing.T) {
		fx := newQuoteFixture(t)

		_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{})
		require.NoError(t, err)
		_, err = fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{})
		require.Error(t, err)
	})
}

func TestQuoteServiceSendAndView(t *testing.T) {
	ctx := context.Background()

	t.Run("sending notifies the client", func(t *testing.T) {
		fx := newQuoteFixture(t)
		_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{ValidDays: 14})
		require.NoError(t, err)

		resp, err := fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)
		assert.Equal(t, "SENT", resp.QuoteStatus)
		assert.Contains(t, fx.notifier.templates(), "quote_sent")
		assert.Contains(t, fx.publisher.eventTypes(), booking.EventTypeQuoteSent)
	})

	t.Run("re-sending a sent quote notifies the client again", func(t *testing.T) {
		fx := newQuoteFixture(t)
		_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{ValidDays: 14})
		require.NoError(t, err)
		_, err = fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)

		resp, err := fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)
		assert.Equal(t, "SENT", resp.QuoteStatus)
		assert.Equal(t, []string{"quote_sent", "quote_sent"}, fx.notifier.templates())
	})

	t.Run("a failed notification does not roll back the send", func(t *testing.T) {
		fx := newQuoteFixture(t)
		fx.notifier.err = errors.New("smtp unavailable")
		_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{})
		require.NoError(t, err)

		resp, err := fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)
		assert.Equal(t, "SENT", resp.QuoteStatus)
	})

	t.Run("viewing is idempotent", func(t *testing.T) {
		fx := newQuoteFixture(t)
		_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{})
		require.NoError(t, err)
		_, err = fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)

		first, err := fx.quotes.MarkQuoteViewed(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)
		assert.Equal(t, "VIEWED", first.QuoteStatus)

		again, err := fx.quotes.MarkQuoteViewed(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)
		assert.Equal(t, "VIEWED", again.QuoteStatus)
	})

	t.Run("cannot send an unconverted booking", func(t *testing.T) {
		fx := newQuoteFixture(t)
		_, err := fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
		require.Error(t, err)
	})
}

func TestQuoteServiceApprove(t *testing.T) {
	ctx := context.Background()

	sent := func(t *testing.T, fx *quoteFixture, validDays int) {
		t.Helper()
		_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{ValidDays: validDays})
		require.NoError(t, err)
		_, err = fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
		require.NoError(t, err)
	}

	t.Run("approval confirms the booking and reserves inventory", func(t *testing.T) {
		fx := newQuoteFixture(t)
		sent(t, fx, 14)

		resp, err := fx.quotes.ApproveQuote(ctx, fx.companyID, fx.draftID, ApproveQuoteRequest{
			ApprovedBy: "client@meridian.test",
		})
		require.NoError(t, err)
		assert.Equal(t, "APPROVED", resp.QuoteStatus)
		assert.Equal(t, "CONFIRMED", resp.Status)
		assert.Contains(t, fx.publisher.eventTypes(), booking.EventTypeQuoteApproved)
		assert.Contains(t, fx.publisher.eventTypes(), booking.EventTypeBookingConfirmed)

		stored, findErr := fx.repo.FindByIDForCompany(ctx, fx.companyID, fx.draftID)
		require.NoError(t, findErr)
		assert.Equal(t, booking.BookingStatusConfirmed, stored.Status)
		assert.True(t, stored.ConvertedFromQuote)
		require.Len(t, fx.repo.usages, 1)
		assert.Equal(t, fx.draftID, fx.repo.usages[0].BookingID)
	})

	t.Run("a reservation conflict at approval surfaces the error", func(t *testing.T) {
		fx := newQuoteFixture(t)
		sent(t, fx, 14)
		fx.repo.confirmErr = shared.NewCapacityError("Insufficient availability")

		_, err := fx.quotes.ApproveQuote(ctx, fx.companyID, fx.draftID, ApproveQuoteRequest{
			ApprovedBy: "client@meridian.test",
		})
		require.Error(t, err)
		assert.Empty(t, fx.repo.usages)
	})

	t.Run("lazy expiry is detected and persisted at approval", func(t *testing.T) {
		fx := newQuoteFixture(t)
		sent(t, fx, 5)

		late := fx.quotesAt(testNow.AddDate(0, 0, 10))
		_, err := late.ApproveQuote(ctx, fx.companyID, fx.draftID, ApproveQuoteRequest{
			ApprovedBy: "client@meridian.test",
		})
		require.Error(t, err)

		stored, findErr := fx.repo.FindByIDForCompany(ctx, fx.companyID, fx.draftID)
		require.NoError(t, findErr)
		assert.Equal(t, booking.QuoteStatusExpired, stored.QuoteStatus)
	})

	t.Run("declined quotes cannot be approved", func(t *testing.T) {
		fx := newQuoteFixture(t)
		sent(t, fx, 14)

		_, err := fx.quotes.DeclineQuote(ctx, fx.companyID, fx.draftID, DeclineQuoteRequest{Reason: "over budget"})
		require.NoError(t, err)

		_, err = fx.quotes.ApproveQuote(ctx, fx.companyID, fx.draftID, ApproveQuoteRequest{ApprovedBy: "client"})
		require.Error(t, err)
	})
}

func TestQuoteServiceDuplicate(t *testing.T) {
	ctx := context.Background()
	fx := newQuoteFixture(t)

	_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{
		Terms:     "Net 30",
		ValidDays: 14,
	})
	require.NoError(t, err)
	_, err = fx.quotes.SendQuote(ctx, fx.companyID, fx.draftID)
	require.NoError(t, err)
	_, err = fx.quotes.DeclineQuote(ctx, fx.companyID, fx.draftID, DeclineQuoteRequest{Reason: "dates moved"})
	require.NoError(t, err)

	newStart := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	newEnd := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	resp, err := fx.quotes.DuplicateQuote(ctx, fx.companyID, fx.draftID, DuplicateQuoteRequest{
		StartDate: &newStart,
		EndDate:   &newEnd,
		ValidDays: 7,
	})
	require.NoError(t, err)

	original, findErr := fx.repo.FindByIDForCompany(ctx, fx.companyID, fx.draftID)
	require.NoError(t, findErr)

	assert.NotEqual(t, original.ID, resp.ID)
	assert.Equal(t, "BK-20250601-0002", resp.BookingNumber)
	assert.Equal(t, "Q-20250601-0002", resp.QuoteNumber)
	assert.Equal(t, "DRAFT", resp.QuoteStatus)
	assert.Equal(t, newStart, resp.StartDate)
	require.Len(t, resp.LineItems, 1)
	// Same line, same snapshotted rate, repriced over the new window
	assert.Equal(t, original.LineItems[0].BookableID, resp.LineItems[0].BookableID)
	requireDecimal(t, "500", resp.Subtotal)
}

func TestQuoteServiceExpireQuotes(t *testing.T) {
	ctx := context.Background()
	fx := newQuoteFixture(t)

	// One quote expiring in 5 days, one with no expiry
	_, err := fx.quotes.ConvertToQuote(ctx, fx.companyID, fx.draftID, ConvertToQuoteRequest{ValidDays: 5})
	require.NoError(t, err)

	second := createDraft(t, fx.bookingFixture, defaultCreateRequest())
	// Reuse the seeded asset from the first draft's line
	stored, err := fx.repo.FindByIDForCompany(ctx, fx.companyID, fx.draftID)
	require.NoError(t, err)
	_, err = fx.service.AddLineItem(ctx, fx.companyID, second.ID, AddLineItemRequest{
		BookableID: stored.LineItems[0].BookableID,
		Quantity:   1,
	})
	require.NoError(t, err)
	_, err = fx.quotes.ConvertToQuote(ctx, fx.companyID, second.ID, ConvertToQuoteRequest{})
	require.NoError(t, err)

	// Before the expiry instant nothing happens
	expired, err := fx.quotes.ExpireQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	late := fx.quotesAt(testNow.AddDate(0, 0, 6))
	expired, err = late.ExpireQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Contains(t, fx.publisher.eventTypes(), booking.EventTypeQuoteExpired)

	first, err := fx.repo.FindByIDForCompany(ctx, fx.companyID, fx.draftID)
	require.NoError(t, err)
	assert.Equal(t, booking.QuoteStatusExpired, first.QuoteStatus)

	open, err := fx.repo.FindByIDForCompany(ctx, fx.companyID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.QuoteStatusDraft, open.QuoteStatus)

	// Re-running the sweep is harmless
	expired, err = late.ExpireQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}
