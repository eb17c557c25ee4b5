package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/payment"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/service"
)

// BookingService is the slice of the coordinator the HTTP layer calls.
// *service.Coordinator is the production implementation.
type BookingService interface {
	HoldSeats(ctx context.Context, userID, showtimeID uint64, selections []model.SeatSelection) (*model.Reservation, error)
	ConfirmBooking(ctx context.Context, userID, reservationID uint64, info service.PaymentInfo) (*model.Booking, error)
	CancelHold(ctx context.Context, userID, reservationID uint64) error
	CancelBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error)
	Availability(ctx context.Context, showtimeID uint64) (*model.Availability, error)
}

// BookingHandler exposes the booking flow over HTTP.  It assumes JWT
// authentication has already run, translates the coordinator's typed
// errors into status codes and keeps no state of its own.
type BookingHandler struct {
	svc BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc}
}

// getUserID extracts the authenticated user id injected by the JWT
// middleware.  The sub claim arrives as a JSON number or string
// depending on the issuer.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), nil
	case string:
		return strconv.ParseUint(v, 10, 64)
	case json.Number:
		n, err := v.Int64()
		return uint64(n), err
	default:
		return 0, errors.New("no user in context")
	}
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// writeError maps the typed error taxonomy onto HTTP responses.  Guard
// failures are expected results: the client sees the typed message,
// while internal failures surface as a generic 500 (the detail has
// already been logged with context).
func writeError(c echo.Context, err error) error {
	var unavailable *repository.SeatsUnavailableError
	if errors.As(err, &unavailable) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "some seats are unavailable", "seats": unavailable.Seats})
	}
	var missing *repository.SeatsNotFoundError
	if errors.As(err, &missing) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "some seats do not exist", "seats": missing.Missing})
	}
	switch {
	case errors.Is(err, service.ErrInvalidSelection):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner"})
	case errors.Is(err, repository.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "reservation expired"})
	case errors.Is(err, repository.ErrInvalidState), errors.Is(err, repository.ErrUnavailable), errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, payment.ErrDeclined):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment declined"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func reservationJSON(r *model.Reservation) echo.Map {
	lines := make([]echo.Map, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, echo.Map{
			"seat_number":      l.SeatNumber,
			"ticket_type_id":   l.TicketTypeID,
			"unit_price_cents": l.UnitPriceCents,
		})
	}
	return echo.Map{
		"id":                 r.ID,
		"showtime_id":        r.ShowtimeID,
		"status":             r.Status,
		"total_amount_cents": r.TotalAmountCents,
		"lines":              lines,
		"expires_at":         r.ExpiresAt.Format(time.RFC3339),
	}
}

func bookingJSON(b *model.Booking) echo.Map {
	lines := make([]echo.Map, 0, len(b.Lines))
	for _, l := range b.Lines {
		lines = append(lines, echo.Map{
			"seat_number":      l.SeatNumber,
			"ticket_type_id":   l.TicketTypeID,
			"unit_price_cents": l.UnitPriceCents,
		})
	}
	out := echo.Map{
		"id":                 b.ID,
		"booking_number":     b.BookingNumber,
		"showtime_id":        b.ShowtimeID,
		"status":             b.Status,
		"total_amount_cents": b.TotalAmountCents,
		"lines":              lines,
		"booked_at":          b.BookedAt.Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		out["cancelled_at"] = b.CancelledAt.Format(time.RFC3339)
	}
	return out
}

// HoldSeats handles POST /v1/showtimes/:id/hold.  The body carries the
// seat selections; on success the pending reservation is returned with
// its priced line items and expiry.
func (h *BookingHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body struct {
		Selections []model.SeatSelection `json:"selections"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.svc.HoldSeats(c.Request().Context(), userID, showtimeID, body.Selections)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, reservationJSON(res))
}

// ConfirmBooking handles POST /v1/reservations/:id/confirm.  The body
// carries the payment method and instrument; on success the confirmed
// booking is returned.
func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var info service.PaymentInfo
	if err := c.Bind(&info); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if info.Method == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment method is required"})
	}
	booking, err := h.svc.ConfirmBooking(c.Request().Context(), userID, reservationID, info)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, bookingJSON(booking))
}

// CancelHold handles DELETE /v1/reservations/:id, releasing a pending
// hold on behalf of its owner.
func (h *BookingHandler) CancelHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.svc.CancelHold(c.Request().Context(), userID, reservationID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": reservationID})
}

// CancelBooking handles DELETE /v1/bookings/:id.  Cancellation is
// allowed while the showtime is in the future; the refund is
// best-effort and the seats free regardless of its outcome.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	booking, err := h.svc.CancelBooking(c.Request().Context(), userID, bookingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bookingJSON(booking))
}

// Availability handles GET /v1/showtimes/:id/seats.  The response is a
// snapshot and may be served from the response cache for a few seconds.
func (h *BookingHandler) Availability(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	av, err := h.svc.Availability(c.Request().Context(), showtimeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}
