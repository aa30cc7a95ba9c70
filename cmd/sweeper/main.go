// Command sweeper runs the booking lifecycle sweep outside the API
// server, either once or on an interval.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/iliyamo/study-room-booking/internal/clock"
	"github.com/iliyamo/study-room-booking/internal/config"
	"github.com/iliyamo/study-room-booking/internal/database"
	"github.com/iliyamo/study-room-booking/internal/logging"
	"github.com/iliyamo/study-room-booking/internal/queue"
	"github.com/iliyamo/study-room-booking/internal/repository"
	"github.com/iliyamo/study-room-booking/internal/scheduler"
	"github.com/iliyamo/study-room-booking/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadWorker()

	once := flag.Bool("once", false, "run a single sweep and exit")
	interval := flag.Duration("interval", cfg.Lifecycle.SweepInterval, "time between sweeps")
	flag.Parse()

	logger, closer, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Directory: cfg.Logging.Directory,
	})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()
	logger = logger.With(slog.String("component", "sweeper"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		logger.Error("database open failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	var events queue.Publisher = queue.Nop{}
	switch cfg.Events.Backend {
	case "amqp":
		events = queue.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange)
	case "kafka":
		events = queue.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	}
	events = queue.Logged(events, logger)
	defer events.Close()

	lifecycle := service.NewLifecycleService(
		repository.NewReservationRepo(db),
		repository.NewUserRepo(db),
		events, clock.NewSystem(), logger,
		cfg.Lifecycle.ApprovalWindow, cfg.Lifecycle.CancelWindow,
	)

	if *once {
		if err := lifecycle.Sweep(ctx); err != nil {
			logger.Error("sweep failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if *interval <= 0 {
		logger.Error("interval must be positive", slog.Duration("interval", *interval))
		os.Exit(2)
	}
	logger.Info("sweeping", slog.Duration("interval", *interval))
	scheduler.New("sweep", *interval, lifecycle.Sweep, logger).Start(ctx)
}
