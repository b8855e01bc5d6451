// Entry point for the employee-facing station agent.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance.tracker/internal/adapters/postgres"
	"attendance.tracker/internal/adapters/rest"
	"attendance.tracker/internal/capture"
	"attendance.tracker/internal/config"
	"attendance.tracker/internal/core"
	"attendance.tracker/internal/core/model"
	"attendance.tracker/internal/identity"
	"attendance.tracker/internal/ports/backend"
	"attendance.tracker/internal/ports/messaging"
	"attendance.tracker/internal/queue"
	"attendance.tracker/internal/station"
	pkgaws "attendance.tracker/pkg/aws"
	"attendance.tracker/pkg/database"
	"attendance.tracker/pkg/logger"
	"attendance.tracker/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	logger.Setup("attendance-station", cfg.IsLocalDev)

	shutdownTracer, err := telemetry.InitTracer("attendance-station", cfg.IsLocalDev)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document backend
	docBackend := newBackend(ctx, cfg)

	// Offline queue on the local redis instance
	redisClient := queue.NewRedisClient(cfg.RedisAddr)
	offlineQueue := queue.NewRedis(redisClient, cfg.QueueKey)

	// Evidence capture devices
	var sources []capture.CameraSource
	for _, u := range cfg.CameraSources() {
		sources = append(sources, capture.NewHTTPSource(u))
	}
	camera := capture.NewCamera(sources...)

	var locator capture.Locator
	switch {
	case cfg.LocatorURL != "":
		locator = capture.NewHTTPLocator(cfg.LocatorURL)
	case cfg.StationLat != 0 || cfg.StationLon != 0:
		locator = capture.StaticLocator{Lat: cfg.StationLat, Lon: cfg.StationLon}
	}

	var geocoder capture.ReverseGeocoder
	if cfg.GeocoderURL != "" {
		geocoder = capture.NewGeocoder(cfg.GeocoderURL)
	}
	capturer := capture.NewCapturer(camera, locator, geocoder, cfg.LocationTimeout)

	// Identity bound to this station
	ident := identity.NewStaticProvider(cfg.UserID, cfg.UserEmail)

	// Record-persisted events (optional)
	var producer messaging.Producer = messaging.NoopProducer{}
	if cfg.EventsSQSQueueURL != "" {
		awsCfg, err := pkgaws.NewAWSConfig(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load SDK config")
		}
		producer = messaging.NewSQSProducer(sqs.NewFromConfig(awsCfg), cfg.EventsSQSQueueURL)
	}

	machine := core.NewStateMachine(docBackend, cfg.Location())
	hostname, _ := os.Hostname()
	deviceInfo := map[string]string{
		"agent":    "attendance-station",
		"hostname": hostname,
	}
	orchestrator := core.NewOrchestrator(docBackend, offlineQueue, capturer, ident, producer, machine, deviceInfo)
	go orchestrator.Start(ctx)

	// Offline queue drainer: periodic timer plus reconnect trigger
	drainer := queue.NewDrainer(offlineQueue, docBackend)
	drainer.OnReplayed = func(ctx context.Context, rec model.AttendanceRecord) {
		if err := producer.PublishRecordPersisted(ctx, messaging.EventFromRecord(rec, true)); err != nil {
			log.Warn().Err(err).Str("record_id", rec.ID).Msg("Could not publish replay event")
		}
	}
	go drainer.Run(ctx, cfg.DrainInterval)

	watcher := station.NewConnectivityWatcher(docBackend, drainer, 15*time.Second)
	go watcher.Run(ctx)

	// Local HTTP surface for the kiosk UI
	router := station.NewRouter(&station.Server{
		Workflow: orchestrator,
		Identity: ident,
		Queue:    offlineQueue,
	})

	loggerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.EnrichContextWithLogger(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	handler := otelhttp.NewHandler(loggerMiddleware(router), "station")

	srv := &http.Server{
		Addr:    ":" + cfg.StationPort,
		Handler: handler,
	}

	go func() {
		log.Info().Str("port", cfg.StationPort).Msg("Station agent starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down station agent...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Station forced to shutdown")
	}

	log.Info().Msg("Station exiting")
}

// newBackend picks the configured document backend adapter.
func newBackend(ctx context.Context, cfg config.Config) backend.DocumentBackend {
	if cfg.BackendKind == "rest" {
		return rest.NewClient(cfg.BackendURL)
	}

	db, err := database.NewInstrumentedConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening database")
	}
	log.Info().Msg("Successfully connected to the database.")

	store := postgres.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error ensuring schema")
	}
	return store
}
