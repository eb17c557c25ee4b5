package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/payment"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) CreateHold(ctx context.Context, userID, showtimeID uint64, selections []model.SeatSelection, types map[uint64]model.TicketType, ttl time.Duration) (*model.Reservation, error) {
	args := m.Called(ctx, userID, showtimeID, selections, types, ttl)
	res, _ := args.Get(0).(*model.Reservation)
	return res, args.Error(1)
}

func (m *mockStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*model.Reservation)
	return res, args.Error(1)
}

func (m *mockStore) ConfirmReservation(ctx context.Context, reservationID uint64, pay *model.PaymentRecord) (*model.Booking, error) {
	args := m.Called(ctx, reservationID, pay)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *mockStore) CancelHold(ctx context.Context, reservationID uint64) error {
	return m.Called(ctx, reservationID).Error(0)
}

func (m *mockStore) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *mockStore) GetPayment(ctx context.Context, id uint64) (*model.PaymentRecord, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*model.PaymentRecord)
	return p, args.Error(1)
}

func (m *mockStore) CancelBooking(ctx context.Context, bookingID uint64, cancelledAt time.Time) error {
	return m.Called(ctx, bookingID, cancelledAt).Error(0)
}

func (m *mockStore) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	args := m.Called(ctx, id)
	st, _ := args.Get(0).(*model.Showtime)
	return st, args.Error(1)
}

func (m *mockStore) ActiveTicketTypes(ctx context.Context, ids []uint64) (map[uint64]model.TicketType, error) {
	args := m.Called(ctx, ids)
	t, _ := args.Get(0).(map[uint64]model.TicketType)
	return t, args.Error(1)
}

func (m *mockStore) Availability(ctx context.Context, showtimeID uint64) (*model.Availability, error) {
	args := m.Called(ctx, showtimeID)
	av, _ := args.Get(0).(*model.Availability)
	return av, args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Charge(ctx context.Context, amountCents uint32, method, instrument string) (*payment.ChargeResult, error) {
	args := m.Called(ctx, amountCents, method, instrument)
	r, _ := args.Get(0).(*payment.ChargeResult)
	return r, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, transactionID string) (*payment.RefundResult, error) {
	args := m.Called(ctx, transactionID)
	r, _ := args.Get(0).(*payment.RefundResult)
	return r, args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) AddStamp(ctx context.Context, userID uint64, bookingNumber string) error {
	return m.Called(ctx, userID, bookingNumber).Error(0)
}

func (m *mockLedger) RemoveStamp(ctx context.Context, userID uint64, bookingNumber string) error {
	return m.Called(ctx, userID, bookingNumber).Error(0)
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(store *mockStore, gw *mockGateway, ledger *mockLedger) *Coordinator {
	c := NewCoordinator(store, gw, ledger, 5*time.Minute)
	c.now = func() time.Time { return testNow }
	return c
}

func futureShowtime(id uint64) *model.Showtime {
	return &model.Showtime{ID: id, HallID: 1, Title: "Evening Show", StartsAt: testNow.Add(3 * time.Hour)}
}

func pendingReservation(id, userID uint64) *model.Reservation {
	return &model.Reservation{
		ID:               id,
		UserID:           userID,
		ShowtimeID:       7,
		Status:           model.ReservationPending,
		TotalAmountCents: 2500,
		Lines: []model.LineItem{
			{SeatNumber: "A1", TicketTypeID: 1, UnitPriceCents: 1000},
			{SeatNumber: "A2", TicketTypeID: 2, UnitPriceCents: 1500},
		},
		CreatedAt: testNow.Add(-time.Minute),
		ExpiresAt: testNow.Add(4 * time.Minute),
	}
}

func TestHoldSeatsRejectsInvalidSelections(t *testing.T) {
	cases := []struct {
		name       string
		selections []model.SeatSelection
	}{
		{"empty", nil},
		{"missing seat number", []model.SeatSelection{{TicketTypeID: 1}}},
		{"missing ticket type", []model.SeatSelection{{SeatNumber: "A1"}}},
		{"duplicate seat", []model.SeatSelection{
			{SeatNumber: "A1", TicketTypeID: 1},
			{SeatNumber: "A1", TicketTypeID: 2},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockStore)
			c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

			_, err := c.HoldSeats(context.Background(), 1, 7, tc.selections)

			assert.ErrorIs(t, err, ErrInvalidSelection)
			store.AssertNotCalled(t, "CreateHold", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHoldSeatsRejectsStartedShowtime(t *testing.T) {
	store := new(mockStore)
	store.On("GetShowtime", mock.Anything, uint64(7)).
		Return(&model.Showtime{ID: 7, StartsAt: testNow.Add(-time.Minute)}, nil)
	c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

	_, err := c.HoldSeats(context.Background(), 1, 7, []model.SeatSelection{{SeatNumber: "A1", TicketTypeID: 1}})

	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestHoldSeatsRejectsInactiveTicketType(t *testing.T) {
	store := new(mockStore)
	store.On("GetShowtime", mock.Anything, uint64(7)).Return(futureShowtime(7), nil)
	store.On("ActiveTicketTypes", mock.Anything, []uint64{1, 9}).
		Return(map[uint64]model.TicketType{1: {ID: 1, PriceModifier: 1.0, IsActive: true}}, nil)
	c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

	_, err := c.HoldSeats(context.Background(), 1, 7, []model.SeatSelection{
		{SeatNumber: "A1", TicketTypeID: 1},
		{SeatNumber: "A2", TicketTypeID: 9},
	})

	assert.ErrorIs(t, err, repository.ErrNotFound)
	store.AssertNotCalled(t, "CreateHold", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHoldSeatsCreatesPendingHold(t *testing.T) {
	selections := []model.SeatSelection{
		{SeatNumber: "A1", TicketTypeID: 1},
		{SeatNumber: "A2", TicketTypeID: 2},
	}
	types := map[uint64]model.TicketType{
		1: {ID: 1, Name: "ADULT", PriceModifier: 1.0, IsActive: true},
		2: {ID: 2, Name: "VIP", PriceModifier: 1.5, IsActive: true},
	}
	want := pendingReservation(42, 1)

	store := new(mockStore)
	store.On("GetShowtime", mock.Anything, uint64(7)).Return(futureShowtime(7), nil)
	store.On("ActiveTicketTypes", mock.Anything, []uint64{1, 2}).Return(types, nil)
	store.On("CreateHold", mock.Anything, uint64(1), uint64(7), selections, types, 5*time.Minute).Return(want, nil)
	c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

	got, err := c.HoldSeats(context.Background(), 1, 7, selections)

	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, got.Status)
	assert.Equal(t, uint32(2500), got.TotalAmountCents)
	store.AssertExpectations(t)
}

func TestConfirmBookingRejectsNonOwner(t *testing.T) {
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(pendingReservation(42, 1), nil)
	gw := new(mockGateway)
	c := newTestCoordinator(store, gw, new(mockLedger))

	_, err := c.ConfirmBooking(context.Background(), 2, 42, PaymentInfo{Method: "card"})

	assert.ErrorIs(t, err, repository.ErrUnauthorized)
	gw.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmBookingRejectsNonPending(t *testing.T) {
	res := pendingReservation(42, 1)
	res.Status = model.ReservationCancelled
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(res, nil)
	c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

	_, err := c.ConfirmBooking(context.Background(), 1, 42, PaymentInfo{Method: "card"})

	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestConfirmBookingRejectsElapsedTTL(t *testing.T) {
	res := pendingReservation(42, 1)
	res.ExpiresAt = testNow // boundary: expiry is inclusive
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(res, nil)
	gw := new(mockGateway)
	c := newTestCoordinator(store, gw, new(mockLedger))

	_, err := c.ConfirmBooking(context.Background(), 1, 42, PaymentInfo{Method: "card"})

	assert.ErrorIs(t, err, repository.ErrExpired)
	gw.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmBookingDeclinedLeavesReservationPending(t *testing.T) {
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(pendingReservation(42, 1), nil)
	gw := new(mockGateway)
	gw.On("Charge", mock.Anything, uint32(2500), "card", "tok_declined").Return(nil, payment.ErrDeclined)
	c := newTestCoordinator(store, gw, new(mockLedger))

	_, err := c.ConfirmBooking(context.Background(), 1, 42, PaymentInfo{Method: "card", Instrument: "tok_declined"})

	assert.ErrorIs(t, err, payment.ErrDeclined)
	store.AssertNotCalled(t, "ConfirmReservation", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

func TestConfirmBookingChargesExactTotalAndStamps(t *testing.T) {
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(pendingReservation(42, 1), nil)
	booking := &model.Booking{ID: 9, BookingNumber: "BK-AB12CD34EF", UserID: 1, ShowtimeID: 7, Status: model.BookingConfirmed, TotalAmountCents: 2500}
	store.On("ConfirmReservation", mock.Anything, uint64(42), mock.MatchedBy(func(p *model.PaymentRecord) bool {
		return p.TransactionID == "tx-1" && p.AmountCents == 2500 && p.Method == "card"
	})).Return(booking, nil)

	gw := new(mockGateway)
	gw.On("Charge", mock.Anything, uint32(2500), "card", "tok_ok").
		Return(&payment.ChargeResult{TransactionID: "tx-1", ProcessedAt: testNow}, nil)

	ledger := new(mockLedger)
	ledger.On("AddStamp", mock.Anything, uint64(1), "BK-AB12CD34EF").Return(nil)

	c := newTestCoordinator(store, gw, ledger)
	got, err := c.ConfirmBooking(context.Background(), 1, 42, PaymentInfo{Method: "card", Instrument: "tok_ok"})

	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	store.AssertExpectations(t)
	gw.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestConfirmBookingRefundsWhenFinalizeLosesRace(t *testing.T) {
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(pendingReservation(42, 1), nil)
	// The sweeper won the race between charge and finalize.
	store.On("ConfirmReservation", mock.Anything, uint64(42), mock.Anything).Return(nil, repository.ErrInvalidState)

	gw := new(mockGateway)
	gw.On("Charge", mock.Anything, uint32(2500), "card", "tok_ok").
		Return(&payment.ChargeResult{TransactionID: "tx-2", ProcessedAt: testNow}, nil)
	gw.On("Refund", mock.Anything, "tx-2").Return(&payment.RefundResult{TransactionID: "tx-2"}, nil)

	c := newTestCoordinator(store, gw, new(mockLedger))
	_, err := c.ConfirmBooking(context.Background(), 1, 42, PaymentInfo{Method: "card", Instrument: "tok_ok"})

	assert.ErrorIs(t, err, repository.ErrInvalidState)
	gw.AssertExpectations(t)
}

func TestConfirmBookingLoyaltyFailureIsNonFatal(t *testing.T) {
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(pendingReservation(42, 1), nil)
	booking := &model.Booking{ID: 9, BookingNumber: "BK-AB12CD34EF", UserID: 1, Status: model.BookingConfirmed}
	store.On("ConfirmReservation", mock.Anything, uint64(42), mock.Anything).Return(booking, nil)

	gw := new(mockGateway)
	gw.On("Charge", mock.Anything, uint32(2500), "card", "tok_ok").
		Return(&payment.ChargeResult{TransactionID: "tx-3", ProcessedAt: testNow}, nil)

	ledger := new(mockLedger)
	ledger.On("AddStamp", mock.Anything, uint64(1), "BK-AB12CD34EF").Return(errors.New("broker down"))

	c := newTestCoordinator(store, gw, ledger)
	got, err := c.ConfirmBooking(context.Background(), 1, 42, PaymentInfo{Method: "card", Instrument: "tok_ok"})

	require.NoError(t, err)
	assert.Equal(t, booking, got)
}

func TestCancelHoldRejectsNonOwner(t *testing.T) {
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(pendingReservation(42, 1), nil)
	c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

	err := c.CancelHold(context.Background(), 2, 42)

	assert.ErrorIs(t, err, repository.ErrUnauthorized)
	store.AssertNotCalled(t, "CancelHold", mock.Anything, mock.Anything)
}

func TestCancelHoldReleasesOwnReservation(t *testing.T) {
	store := new(mockStore)
	store.On("GetReservation", mock.Anything, uint64(42)).Return(pendingReservation(42, 1), nil)
	store.On("CancelHold", mock.Anything, uint64(42)).Return(nil)
	c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

	require.NoError(t, c.CancelHold(context.Background(), 1, 42))
	store.AssertExpectations(t)
}

func confirmedBooking(id, userID uint64) *model.Booking {
	return &model.Booking{
		ID:               id,
		BookingNumber:    "BK-AB12CD34EF",
		UserID:           userID,
		ShowtimeID:       7,
		ReservationID:    42,
		Status:           model.BookingConfirmed,
		TotalAmountCents: 2500,
		PaymentID:        5,
		BookedAt:         testNow.Add(-time.Hour),
	}
}

func TestCancelBookingGuards(t *testing.T) {
	t.Run("non-owner", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", mock.Anything, uint64(9)).Return(confirmedBooking(9, 1), nil)
		c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

		_, err := c.CancelBooking(context.Background(), 2, 9)
		assert.ErrorIs(t, err, repository.ErrUnauthorized)
	})

	t.Run("already cancelled", func(t *testing.T) {
		b := confirmedBooking(9, 1)
		b.Status = model.BookingCancelled
		store := new(mockStore)
		store.On("GetBooking", mock.Anything, uint64(9)).Return(b, nil)
		c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

		_, err := c.CancelBooking(context.Background(), 1, 9)
		assert.ErrorIs(t, err, repository.ErrInvalidState)
	})

	t.Run("showtime started", func(t *testing.T) {
		store := new(mockStore)
		store.On("GetBooking", mock.Anything, uint64(9)).Return(confirmedBooking(9, 1), nil)
		store.On("GetShowtime", mock.Anything, uint64(7)).
			Return(&model.Showtime{ID: 7, StartsAt: testNow.Add(-time.Minute)}, nil)
		c := newTestCoordinator(store, new(mockGateway), new(mockLedger))

		_, err := c.CancelBooking(context.Background(), 1, 9)
		assert.ErrorIs(t, err, repository.ErrInvalidState)
		store.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelBookingFreesSeatsDespiteRefundFailure(t *testing.T) {
	store := new(mockStore)
	store.On("GetBooking", mock.Anything, uint64(9)).Return(confirmedBooking(9, 1), nil)
	store.On("GetShowtime", mock.Anything, uint64(7)).Return(futureShowtime(7), nil)
	store.On("GetPayment", mock.Anything, uint64(5)).
		Return(&model.PaymentRecord{ID: 5, TransactionID: "tx-1", AmountCents: 2500}, nil)
	store.On("CancelBooking", mock.Anything, uint64(9), testNow).Return(nil)

	gw := new(mockGateway)
	gw.On("Refund", mock.Anything, "tx-1").Return(nil, errors.New("gateway timeout"))

	ledger := new(mockLedger)
	ledger.On("RemoveStamp", mock.Anything, uint64(1), "BK-AB12CD34EF").Return(nil)

	c := newTestCoordinator(store, gw, ledger)
	got, err := c.CancelBooking(context.Background(), 1, 9)

	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, testNow, *got.CancelledAt)
	store.AssertExpectations(t)
	ledger.AssertExpectations(t)
}
