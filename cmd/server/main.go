package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/loyalty"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/payment"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/router"
	"github.com/iliyamo/showtime-booking/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	store := repository.NewStore(db)
	gateway := payment.NewHTTPGateway(cfg.PaymentGatewayURL)
	ledger := loyalty.NewAMQPLedger(cfg.AMQPURL)
	coordinator := service.NewCoordinator(store, gateway, ledger, cfg.HoldTTL)

	// Redis is optional: when unavailable the middlewares degrade to
	// pass-through and the service keeps running without cache or limits.
	rdb := config.NewRedisClient()
	var rateLimit, cache echo.MiddlewareFunc
	if rdb != nil {
		rateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	} else {
		log.Printf("redis unavailable; rate limiting and response cache disabled")
	}

	// Root context cancelled on SIGINT/SIGTERM drives the shutdown of
	// the sweeper and the HTTP server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewSweeper(store, cfg.SweepInterval, cfg.SweepBatch)
	go sweeper.Run(ctx)

	// Loyalty stamp consumer; reconnects on its own and never returns
	// under normal operation.
	go func() {
		if err := queue.StartStampConsumer(); err != nil {
			log.Printf("stamp consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterBooking(e, handler.NewBookingHandler(coordinator), cfg.JWTSecret, rateLimit, cache)
	router.RegisterAdmin(e, handler.NewAdminHandler(store), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
