package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// AdminHandler covers the scheduling side: creating a showtime together
// with its seat inventory, and defining ticket types.  Both write
// reference data the booking flow reads; day-to-day catalogue CRUD
// lives in an external management layer.
type AdminHandler struct {
	store *repository.Store
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(store *repository.Store) *AdminHandler {
	if store == nil {
		panic("nil store passed to NewAdminHandler")
	}
	return &AdminHandler{store: store}
}

// ScheduleShowtime handles POST /v1/admin/showtimes.  The body carries
// the showtime and the full seat inventory, created atomically; seat
// rows start AVAILABLE and are never deleted afterwards.
func (h *AdminHandler) ScheduleShowtime(c echo.Context) error {
	var body struct {
		HallID   uint64 `json:"hall_id"`
		Title    string `json:"title"`
		StartsAt string `json:"starts_at"`
		Seats    []struct {
			SeatNumber string `json:"seat_number"`
			SeatType   string `json:"seat_type"`
			PriceCents uint32 `json:"price_cents"`
		} `json:"seats"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.HallID == 0 || len(body.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hall_id and seats are required"})
	}
	startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	st := &model.Showtime{HallID: body.HallID, Title: body.Title, StartsAt: startsAt.UTC()}
	seats := make([]model.ShowtimeSeat, 0, len(body.Seats))
	for _, s := range body.Seats {
		if s.SeatNumber == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_number is required"})
		}
		seatType := s.SeatType
		if seatType == "" {
			seatType = "REGULAR"
		}
		seats = append(seats, model.ShowtimeSeat{
			SeatNumber: s.SeatNumber,
			SeatType:   seatType,
			PriceCents: s.PriceCents,
			Status:     model.SeatAvailable,
		})
	}
	if err := h.store.ScheduleShowtime(c.Request().Context(), st, seats); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": st.ID, "seats": len(seats)})
}

// CreateTicketType handles POST /v1/admin/ticket-types.
func (h *AdminHandler) CreateTicketType(c echo.Context) error {
	var body struct {
		Name          string  `json:"name"`
		PriceModifier float64 `json:"price_modifier"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" || body.PriceModifier <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and a positive price_modifier are required"})
	}
	t := &model.TicketType{Name: body.Name, PriceModifier: body.PriceModifier, IsActive: true}
	if err := h.store.TicketTypes.Create(c.Request().Context(), t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": t.ID})
}
