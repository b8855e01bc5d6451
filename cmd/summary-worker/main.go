// Entry point for the check-out summary worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"attendance.tracker/internal/adapters/postgres"
	"attendance.tracker/internal/adapters/rest"
	"attendance.tracker/internal/config"
	"attendance.tracker/internal/notify"
	"attendance.tracker/internal/ports/backend"
	"attendance.tracker/internal/queue"
	"attendance.tracker/internal/worker"
	"attendance.tracker/internal/worker/summary"
	pkgaws "attendance.tracker/pkg/aws"
	"attendance.tracker/pkg/database"
	"attendance.tracker/pkg/logger"
	"attendance.tracker/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	logger.Setup("summary-worker", cfg.IsLocalDev)

	shutdownTracer, err := telemetry.InitTracer("summary-worker", cfg.IsLocalDev)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	if cfg.EventsSQSQueueURL == "" {
		log.Fatal().Msg("EVENTS_SQS_QUEUE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := pkgaws.NewAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}
	sqsClient := sqs.NewFromConfig(awsCfg)
	sesClient := ses.NewFromConfig(awsCfg)

	var docBackend backend.DocumentBackend
	if cfg.BackendKind == "rest" {
		docBackend = rest.NewClient(cfg.BackendURL)
	} else {
		db, err := database.NewConnection(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening database")
		}
		defer db.Close()
		docBackend = postgres.NewStore(db)
	}

	emailService := notify.NewSESEmailService(sesClient, cfg.SummarySenderEmail)
	marker := summary.NewRedisMarker(queue.NewRedisClient(cfg.RedisAddr))
	processor := summary.NewProcessor(emailService, docBackend, marker, cfg.Location())

	w := worker.NewWorker(sqsClient, cfg.EventsSQSQueueURL, processor)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down worker...")
		cancel()
	}()

	w.Start(ctx)
	log.Info().Msg("Worker exiting")
}
