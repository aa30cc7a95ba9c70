package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/iliyamo/study-room-booking/internal/booking"
	"github.com/iliyamo/study-room-booking/internal/clock"
	"github.com/iliyamo/study-room-booking/internal/config"
	"github.com/iliyamo/study-room-booking/internal/database"
	"github.com/iliyamo/study-room-booking/internal/handler"
	"github.com/iliyamo/study-room-booking/internal/logging"
	"github.com/iliyamo/study-room-booking/internal/middleware"
	"github.com/iliyamo/study-room-booking/internal/payment"
	"github.com/iliyamo/study-room-booking/internal/queue"
	"github.com/iliyamo/study-room-booking/internal/realtime"
	"github.com/iliyamo/study-room-booking/internal/repository"
	"github.com/iliyamo/study-room-booking/internal/router"
	"github.com/iliyamo/study-room-booking/internal/scheduler"
	"github.com/iliyamo/study-room-booking/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, closer, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Directory: cfg.Logging.Directory,
	})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		logger.Error("database open failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}

	catalog, err := booking.LoadCatalog(cfg.SlotCatalog)
	if err != nil {
		logger.Error("slot catalog", slog.Any("error", err))
		os.Exit(1)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and response cache disabled", slog.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}

	hub := realtime.NewHub(logger)
	events := queue.Logged(queue.Fanout{brokerPublisher(cfg.Events), hub}, logger)
	defer events.Close()
	go consumeAudit(ctx, cfg.Events, logger)

	clk := clock.NewSystem()
	txm := repository.NewTxManager(db)
	rooms := repository.NewRoomRepo(db)
	reservations := repository.NewReservationRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	gateway := payment.NewRazorpayGateway(cfg.Payment.KeyID, cfg.Payment.KeySecret)
	cache := middleware.NewResponseCache(cfg.Cache, rdb, logger)

	bookings := service.NewBookingService(txm, rooms, reservations, events, clk, logger,
		service.WithCatalog(catalog),
		service.WithLocation(cfg.Lifecycle.Location),
		service.WithFallbackCapacity(cfg.Lifecycle.DefaultCapacity),
		service.WithCheckoutSecret(cfg.Payment.KeySecret),
	)
	payments := service.NewPaymentService(reservations, gateway, events, clk, logger, service.PaymentConfig{
		KeySecret:     cfg.Payment.KeySecret,
		WebhookSecret: cfg.Payment.WebhookSecret,
		Currency:      cfg.Payment.Currency,
	})
	accounts := service.NewAccountService(users, tokens, events, clk, logger, service.AuthConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		AccessTTL:  time.Duration(cfg.Auth.AccessTTLMin) * time.Minute,
		RefreshTTL: time.Duration(cfg.Auth.RefreshTTLDays) * 24 * time.Hour,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	roomSvc := service.NewRoomService(rooms, cache, logger)
	lifecycle := service.NewLifecycleService(reservations, users, events, clk, logger,
		cfg.Lifecycle.ApprovalWindow, cfg.Lifecycle.CancelWindow)

	sweeper := scheduler.New("sweep", cfg.Lifecycle.SweepInterval, lifecycle.Sweep, logger)
	go sweeper.Start(ctx)

	e := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(accounts),
		Bookings: handler.NewBookingHandler(bookings, accounts),
		Rooms:    handler.NewRoomHandler(roomSvc),
		Admin:    handler.NewAdminHandler(bookings, payments, accounts, sweeper),
		Payments: handler.NewPaymentHandler(payments),
		Live:     handler.NewWSHandler(hub, cfg.Auth.JWTSecret, cfg.AllowedOrigins, logger),
	}, router.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      middleware.NewTokenBucket(cfg.RateLimit, rdb, logger),
		Cache:          cache,
		Logger:         logger,
	})

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}

// brokerPublisher picks the event backend named by EVENTS_BACKEND.
func brokerPublisher(cfg config.EventsConfig) queue.Publisher {
	switch cfg.Backend {
	case "amqp":
		return queue.NewAMQPPublisher(cfg.RabbitMQURL, cfg.Exchange)
	case "kafka":
		return queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return queue.Nop{}
	}
}

// consumeAudit mirrors the broker into the booking audit log.
func consumeAudit(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) {
	audit := queue.NewAuditLog(cfg.AuditLog)
	switch cfg.Backend {
	case "amqp":
		queue.ConsumeAMQP(ctx, cfg.RabbitMQURL, cfg.Exchange, audit, logger)
	case "kafka":
		queue.ConsumeKafka(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, "booking-audit", audit, logger)
	}
}
