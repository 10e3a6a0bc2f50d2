package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/booking"
	"github.com/rentworks/backend/internal/domain/catalog"
	"github.com/rentworks/backend/internal/domain/shared"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/rentworks/backend/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBookingStore is a map-backed stub of the booking repository port
type fakeBookingStore struct {
	mu        sync.Mutex
	bookings  map[uuid.UUID]*booking.Booking
	agingRows []booking.AgingSummaryRow
	saveCount int
}

func newFakeBookingStore(bookings ...*booking.Booking) *fakeBookingStore {
	m := make(map[uuid.UUID]*booking.Booking, len(bookings))
	for _, b := range bookings {
		m[b.ID] = b
	}
	return &fakeBookingStore{bookings: m}
}

func (s *fakeBookingStore) FindByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		return b, nil
	}
	return nil, shared.ErrNotFound
}

func (s *fakeBookingStore) FindByIDForCompany(_ context.Context, companyID, id uuid.UUID) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.CompanyID != companyID {
		return nil, shared.ErrNotFound
	}
	return b, nil
}

func (s *fakeBookingStore) Save(_ context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
	s.saveCount++
	return nil
}

func (s *fakeBookingStore) SaveWithVersion(_ context.Context, b *booking.Booking, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
	s.saveCount++
	return nil
}

func (s *fakeBookingStore) ConfirmWithReservation(_ context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
	return nil
}

func (s *fakeBookingStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bookings, id)
	return nil
}

func (s *fakeBookingStore) GenerateBookingNumber(context.Context, uuid.UUID) (string, error) {
	return "BK-20250601-0001", nil
}

func (s *fakeBookingStore) GenerateQuoteNumber(context.Context, uuid.UUID) (string, error) {
	return "Q-20250601-0001", nil
}

func (s *fakeBookingStore) FindByNumber(context.Context, uuid.UUID, string) (*booking.Booking, error) {
	return nil, shared.ErrNotFound
}

func (s *fakeBookingStore) FindByCompany(context.Context, uuid.UUID, shared.Filter) (shared.Paginated[booking.Booking], error) {
	return shared.Paginated[booking.Booking]{}, nil
}

func (s *fakeBookingStore) FindActiveReservations(context.Context, uuid.UUID, uuid.UUID, valueobject.DateRange) ([]booking.ReservationUsage, error) {
	return nil, nil
}

func (s *fakeBookingStore) FindQuotesToExpire(context.Context, time.Time, int) ([]booking.Booking, error) {
	return nil, nil
}

func (s *fakeBookingStore) FindOutstandingForCompany(_ context.Context, companyID uuid.UUID) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]booking.Booking, 0)
	for _, b := range s.bookings {
		if b.CompanyID != companyID {
			continue
		}
		switch b.Status {
		case booking.BookingStatusDraft, booking.BookingStatusPending, booking.BookingStatusCancelled:
			continue
		}
		if b.BalanceDue().IsPositive() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) AgingSummary(context.Context, uuid.UUID) ([]booking.AgingSummaryRow, error) {
	return s.agingRows, nil
}

// recordingNotifier captures dunning sends
type recordingNotifier struct {
	mu   sync.Mutex
	sent []shared.Notification
}

func (n *recordingNotifier) Send(_ context.Context, notification shared.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// overdueBooking builds a confirmed $1000 booking whose rental ended June 5
// 2025. With 30-day default terms it falls due July 5.
func overdueBooking(t *testing.T, companyID uuid.UUID) *booking.Booking {
	t.Helper()
	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	period, err := valueobject.NewDateRange(
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	b, err := booking.NewBooking(companyID, "BK-20250501-0001", uuid.New(), "Meridian Events",
		period, booking.PolicyModerate, created)
	require.NoError(t, err)

	asset, err := catalog.NewRentalAsset(companyID, "PA Speaker", "SPK-001",
		catalog.BookableKindEquipment, 3, valueobject.NewMoneyUSDFromCents(10000))
	require.NoError(t, err)

	_, err = b.AddLineItem(asset, 2, false, created)
	require.NoError(t, err)
	require.NoError(t, b.Confirm(created))
	b.ClearDomainEvents()
	return b
}

type collectionsFixture struct {
	store     *fakeBookingStore
	notifier  *recordingNotifier
	publisher *recordingPublisher
	service   *CollectionsService
	companyID uuid.UUID
	bookingID uuid.UUID
}

func newCollectionsFixture(t *testing.T, now time.Time) *collectionsFixture {
	t.Helper()
	companyID := uuid.New()
	b := overdueBooking(t, companyID)
	store := newFakeBookingStore(b)
	idempotency := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idempotency.Close() })

	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	svc := NewCollectionsService(store, idempotency, shared.FixedClock{Time: now}, zap.NewNop())
	svc.SetNotifier(notifier)
	svc.SetEventPublisher(publisher)

	return &collectionsFixture{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		service:   svc,
		companyID: companyID,
		bookingID: b.ID,
	}
}

func TestUpdateARMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("computes due date and bucket from the rental end", func(t *testing.T) {
		// August 20 is 46 days past the July 5 due date
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

		resp, err := fx.service.UpdateARMetrics(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)

		require.NotNil(t, resp.PaymentDueDate)
		assert.Equal(t, time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC), *resp.PaymentDueDate)
		assert.Equal(t, 46, resp.DaysPastDue)
		assert.Equal(t, "DAYS_31_60", resp.AgingBucket)
		assert.True(t, resp.BalanceDue.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("not yet due stays current", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC))

		resp, err := fx.service.UpdateARMetrics(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.DaysPastDue)
		assert.Equal(t, "CURRENT", resp.AgingBucket)
	})

	t.Run("a paid booking is always current", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))
		paidAt := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
		stored, err := fx.store.FindByIDForCompany(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		require.NoError(t, stored.RecordPayment(booking.PaymentTypeReceived,
			valueobject.NewMoneyUSD(decimal.NewFromInt(1000)), "wire-1", paidAt))

		resp, err := fx.service.UpdateARMetrics(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.DaysPastDue)
		assert.Equal(t, "CURRENT", resp.AgingBucket)
	})
}

func TestEscalateCollectionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("escalation follows the overdue ladder", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

		resp, err := fx.service.EscalateCollectionStatus(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, "SECOND_NOTICE", resp.CollectionStatus)
		assert.Contains(t, fx.publisher.types(), booking.EventTypeCollectionEscalated)
	})

	t.Run("escalation never regresses", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC))

		// 119 days past due lands straight in collections
		resp, err := fx.service.EscalateCollectionStatus(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, "IN_COLLECTIONS", resp.CollectionStatus)

		// Terminal statuses stay put
		resp, err = fx.service.EscalateCollectionStatus(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, "IN_COLLECTIONS", resp.CollectionStatus)
	})
}

func TestSendPaymentReminder(t *testing.T) {
	ctx := context.Background()

	t.Run("sends once per day", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))
		_, err := fx.service.UpdateARMetrics(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)

		resp, err := fx.service.SendPaymentReminder(ctx, fx.companyID, fx.bookingID,
			SendReminderRequest{ReminderType: "overdue_notice"})
		require.NoError(t, err)
		assert.Equal(t, 46, resp.DaysPastDue)
		assert.Equal(t, 1, fx.notifier.count())
		assert.Contains(t, fx.publisher.types(), booking.EventTypePaymentReminderSent)

		// Re-running within the TTL window is swallowed by the guard
		_, err = fx.service.SendPaymentReminder(ctx, fx.companyID, fx.bookingID,
			SendReminderRequest{ReminderType: "overdue_notice"})
		require.NoError(t, err)
		assert.Equal(t, 1, fx.notifier.count())

		stored, err := fx.store.FindByIDForCompany(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.ReminderCount)
	})

	t.Run("settled bookings are skipped", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))
		stored, err := fx.store.FindByIDForCompany(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		require.NoError(t, stored.RecordPayment(booking.PaymentTypeReceived,
			valueobject.NewMoneyUSD(decimal.NewFromInt(1000)), "wire-1", time.Date(2025, 8, 19, 0, 0, 0, 0, time.UTC)))

		_, err = fx.service.SendPaymentReminder(ctx, fx.companyID, fx.bookingID,
			SendReminderRequest{ReminderType: "overdue_notice"})
		require.NoError(t, err)
		assert.Equal(t, 0, fx.notifier.count())
	})

	t.Run("rejects unknown reminder types", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))
		_, err := fx.service.SendPaymentReminder(ctx, fx.companyID, fx.bookingID,
			SendReminderRequest{ReminderType: "carrier_pigeon"})
		require.Error(t, err)
	})
}

func TestAssignAndWriteOff(t *testing.T) {
	ctx := context.Background()

	t.Run("assignment marks the receivable in collections", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

		resp, err := fx.service.AssignToCollections(ctx, fx.companyID, fx.bookingID,
			AssignToCollectionsRequest{Actor: "ops@rentworks.test", Notes: "agency ACME"})
		require.NoError(t, err)
		assert.Equal(t, "IN_COLLECTIONS", resp.CollectionStatus)
	})

	t.Run("write-off is terminal and audited", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

		resp, err := fx.service.WriteOffBadDebt(ctx, fx.companyID, fx.bookingID,
			WriteOffRequest{Reason: "client insolvent", Actor: "ops@rentworks.test"})
		require.NoError(t, err)
		assert.Equal(t, "WRITTEN_OFF", resp.CollectionStatus)
		assert.Contains(t, fx.publisher.types(), booking.EventTypeBadDebtWrittenOff)

		stored, err := fx.store.FindByIDForCompany(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		require.NotEmpty(t, stored.Notes)

		// No second write-off, no assignment afterwards
		_, err = fx.service.WriteOffBadDebt(ctx, fx.companyID, fx.bookingID,
			WriteOffRequest{Reason: "again", Actor: "ops"})
		require.Error(t, err)
		_, err = fx.service.AssignToCollections(ctx, fx.companyID, fx.bookingID,
			AssignToCollectionsRequest{Actor: "ops"})
		require.Error(t, err)
	})
}

func TestARAgingSummary(t *testing.T) {
	fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))
	fx.store.agingRows = []booking.AgingSummaryRow{
		{Bucket: booking.AgingBucketCurrent, Count: 2, Balance: decimal.NewFromInt(2000)},
		{Bucket: booking.AgingBucket0To30, Count: 1, Balance: decimal.NewFromInt(1000)},
		{Bucket: booking.AgingBucket90Plus, Count: 1, Balance: decimal.NewFromInt(400)},
	}

	resp, err := fx.service.ARAgingSummary(context.Background(), fx.companyID)
	require.NoError(t, err)

	require.Len(t, resp.Buckets, 3)
	assert.True(t, resp.TotalBalance.Equal(decimal.NewFromInt(3400)))
	// 2000*1.00 + 1000*0.90 + 400*0.25
	assert.True(t, resp.ExpectedCollectible.Equal(decimal.NewFromInt(3000)),
		"expected 3000, got %s", resp.ExpectedCollectible)
	assert.True(t, resp.Buckets[1].ExpectedCollectible.Equal(decimal.NewFromInt(900)))
}

func TestRunCollectionsSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("sweep updates, escalates and reminds", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

		result, err := fx.service.RunCollectionsSweep(ctx, fx.companyID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Examined)
		assert.Equal(t, 1, result.Escalated)
		assert.Equal(t, 1, result.Reminded)
		assert.Equal(t, 1, fx.notifier.count())

		stored, err := fx.store.FindByIDForCompany(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, booking.CollectionStatusSecondNotice, stored.CollectionStatus)
		assert.Equal(t, 46, stored.DaysPastDue)
	})

	t.Run("re-running the sweep does not double remind", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

		_, err := fx.service.RunCollectionsSweep(ctx, fx.companyID)
		require.NoError(t, err)

		result, err := fx.service.RunCollectionsSweep(ctx, fx.companyID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Examined)
		assert.Equal(t, 0, result.Escalated)
		assert.Equal(t, 1, fx.notifier.count())

		stored, err := fx.store.FindByIDForCompany(ctx, fx.companyID, fx.bookingID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.ReminderCount)
	})

	t.Run("current receivables are examined but untouched", func(t *testing.T) {
		fx := newCollectionsFixture(t, time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC))

		result, err := fx.service.RunCollectionsSweep(ctx, fx.companyID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Examined)
		assert.Equal(t, 0, result.Escalated)
		assert.Equal(t, 0, result.Reminded)
		assert.Equal(t, 0, fx.notifier.count())
	})
}
