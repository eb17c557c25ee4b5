// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the booking flow.  Mutating endpoints live
// behind JWT authentication; the hold endpoint additionally carries the
// rate limiter (it is the contended one) and the availability endpoint
// the short-TTL response cache.  Either middleware may be nil when its
// backing Redis is unavailable, in which case the route runs bare.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, rateLimit, cache echo.MiddlewareFunc) {
	if cache != nil {
		e.GET("/v1/showtimes/:id/seats", h.Availability, cache)
	} else {
		e.GET("/v1/showtimes/:id/seats", h.Availability)
	}

	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	if rateLimit != nil {
		g.POST("/showtimes/:id/hold", h.HoldSeats, rateLimit)
	} else {
		g.POST("/showtimes/:id/hold", h.HoldSeats)
	}
	g.POST("/reservations/:id/confirm", h.ConfirmBooking)
	g.DELETE("/reservations/:id", h.CancelHold)
	g.DELETE("/bookings/:id", h.CancelBooking)
}

// RegisterAdmin registers the scheduling endpoints used to seed
// showtimes, seat inventory and ticket types.  They share the same JWT
// protection as the booking flow.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.POST("/showtimes", a.ScheduleShowtime)
	g.POST("/ticket-types", a.CreateTicketType)
}
