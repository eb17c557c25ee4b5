package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/payment"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/service"
)

type mockBookingService struct{ mock.Mock }

func (m *mockBookingService) HoldSeats(ctx context.Context, userID, showtimeID uint64, selections []model.SeatSelection) (*model.Reservation, error) {
	args := m.Called(ctx, userID, showtimeID, selections)
	r, _ := args.Get(0).(*model.Reservation)
	return r, args.Error(1)
}

func (m *mockBookingService) ConfirmBooking(ctx context.Context, userID, reservationID uint64, info service.PaymentInfo) (*model.Booking, error) {
	args := m.Called(ctx, userID, reservationID, info)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *mockBookingService) CancelHold(ctx context.Context, userID, reservationID uint64) error {
	return m.Called(ctx, userID, reservationID).Error(0)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
	args := m.Called(ctx, userID, bookingID)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *mockBookingService) Availability(ctx context.Context, showtimeID uint64) (*model.Availability, error) {
	args := m.Called(ctx, showtimeID)
	av, _ := args.Get(0).(*model.Availability)
	return av, args.Error(1)
}

// newRequest builds an authenticated echo context for a route with one
// :id path parameter.  userID 0 leaves the context unauthenticated.
func newRequest(method, body string, userID uint64, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	if userID != 0 {
		// The JWT middleware stores the sub claim as it came out of the
		// token; a numeric claim decodes to float64.
		c.Set("user_id", float64(userID))
	}
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHoldSeatsReturnsPendingReservation(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("HoldSeats", mock.Anything, uint64(1), uint64(7), []model.SeatSelection{
		{SeatNumber: "A1", TicketTypeID: 1},
		{SeatNumber: "A2", TicketTypeID: 2},
	}).Return(&model.Reservation{
		ID:               42,
		UserID:           1,
		ShowtimeID:       7,
		Status:           model.ReservationPending,
		TotalAmountCents: 2500,
		Lines: []model.LineItem{
			{SeatNumber: "A1", TicketTypeID: 1, UnitPriceCents: 1000},
			{SeatNumber: "A2", TicketTypeID: 2, UnitPriceCents: 1500},
		},
		ExpiresAt: time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
	}, nil)
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodPost,
		`{"selections":[{"seat_number":"A1","ticket_type_id":1},{"seat_number":"A2","ticket_type_id":2}]}`, 1, "7")
	require.NoError(t, h.HoldSeats(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, float64(2500), body["total_amount_cents"])
	assert.Len(t, body["lines"], 2)
	svc.AssertExpectations(t)
}

func TestHoldSeatsRequiresAuth(t *testing.T) {
	h := NewBookingHandler(new(mockBookingService))
	c, rec := newRequest(http.MethodPost, `{"selections":[]}`, 0, "7")

	require.NoError(t, h.HoldSeats(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHoldSeatsRejectsBadShowtimeID(t *testing.T) {
	h := NewBookingHandler(new(mockBookingService))
	c, rec := newRequest(http.MethodPost, `{"selections":[]}`, 1, "abc")

	require.NoError(t, h.HoldSeats(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHoldSeatsMapsSeatConflicts(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("HoldSeats", mock.Anything, uint64(1), uint64(7), mock.Anything).
		Return(nil, &repository.SeatsUnavailableError{Seats: []string{"A2"}})
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodPost, `{"selections":[{"seat_number":"A2","ticket_type_id":1}]}`, 1, "7")
	require.NoError(t, h.HoldSeats(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []interface{}{"A2"}, body["seats"])
}

func TestHoldSeatsMapsUnknownSeats(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("HoldSeats", mock.Anything, uint64(1), uint64(7), mock.Anything).
		Return(nil, &repository.SeatsNotFoundError{Missing: []string{"Z9"}})
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodPost, `{"selections":[{"seat_number":"Z9","ticket_type_id":1}]}`, 1, "7")
	require.NoError(t, h.HoldSeats(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []interface{}{"Z9"}, body["seats"])
}

func TestConfirmBookingStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"declined", payment.ErrDeclined, http.StatusPaymentRequired},
		{"expired", repository.ErrExpired, http.StatusGone},
		{"not owner", repository.ErrUnauthorized, http.StatusForbidden},
		{"already confirmed", repository.ErrInvalidState, http.StatusConflict},
		{"unknown reservation", repository.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockBookingService)
			svc.On("ConfirmBooking", mock.Anything, uint64(1), uint64(42), mock.Anything).Return(nil, tc.err)
			h := NewBookingHandler(svc)

			c, rec := newRequest(http.MethodPost, `{"method":"card","instrument":"tok"}`, 1, "42")
			require.NoError(t, h.ConfirmBooking(c))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestConfirmBookingRequiresPaymentMethod(t *testing.T) {
	svc := new(mockBookingService)
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodPost, `{"instrument":"tok"}`, 1, "42")
	require.NoError(t, h.ConfirmBooking(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "ConfirmBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmBookingReturnsBooking(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("ConfirmBooking", mock.Anything, uint64(1), uint64(42), service.PaymentInfo{Method: "card", Instrument: "tok"}).
		Return(&model.Booking{
			ID:               9,
			BookingNumber:    "BK-AB12CD34EF",
			UserID:           1,
			ShowtimeID:       7,
			Status:           model.BookingConfirmed,
			TotalAmountCents: 2500,
			BookedAt:         time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
		}, nil)
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodPost, `{"method":"card","instrument":"tok"}`, 1, "42")
	require.NoError(t, h.ConfirmBooking(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "BK-AB12CD34EF", body["booking_number"])
	assert.Equal(t, "CONFIRMED", body["status"])
}

func TestCancelHoldForbiddenForNonOwner(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("CancelHold", mock.Anything, uint64(2), uint64(42)).Return(repository.ErrUnauthorized)
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodDelete, "", 2, "42")
	require.NoError(t, h.CancelHold(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancelBookingReturnsCancelled(t *testing.T) {
	cancelledAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	svc := new(mockBookingService)
	svc.On("CancelBooking", mock.Anything, uint64(1), uint64(9)).Return(&model.Booking{
		ID:            9,
		BookingNumber: "BK-AB12CD34EF",
		UserID:        1,
		Status:        model.BookingCancelled,
		CancelledAt:   &cancelledAt,
	}, nil)
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodDelete, "", 1, "9")
	require.NoError(t, h.CancelBooking(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "CANCELLED", body["status"])
	assert.Equal(t, cancelledAt.Format(time.RFC3339), body["cancelled_at"])
}

func TestAvailabilityGroupsByStatus(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("Availability", mock.Anything, uint64(7)).Return(&model.Availability{
		ShowtimeID: 7,
		Available:  []string{"A1", "A3"},
		Reserved:   []string{"A2"},
		Booked:     []string{"B1"},
	}, nil)
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodGet, "", 0, "7")
	require.NoError(t, h.Availability(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []interface{}{"A1", "A3"}, body["available"])
	assert.Equal(t, []interface{}{"A2"}, body["reserved"])
	assert.Equal(t, []interface{}{"B1"}, body["booked"])
}

func TestAvailabilityUnknownShowtime(t *testing.T) {
	svc := new(mockBookingService)
	svc.On("Availability", mock.Anything, uint64(7)).Return(nil, repository.ErrNotFound)
	h := NewBookingHandler(svc)

	c, rec := newRequest(http.MethodGet, "", 0, "7")
	require.NoError(t, h.Availability(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
