package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"go.uber.org/multierr"

	"github.com/okian/lineup/internal/adapters/broadcast"
	"github.com/okian/lineup/internal/adapters/http/api"
	"github.com/okian/lineup/internal/adapters/http/site"
	"github.com/okian/lineup/internal/adapters/http/swagger"
	"github.com/okian/lineup/internal/adapters/objectstore"
	"github.com/okian/lineup/internal/adapters/ocr"
	"github.com/okian/lineup/internal/adapters/ocr/tesseract"
	"github.com/okian/lineup/internal/adapters/repository"
	"github.com/okian/lineup/internal/adapters/video"
	app "github.com/okian/lineup/internal/app"
	"github.com/okian/lineup/internal/config"
	"github.com/okian/lineup/internal/domain/dedupe"
	"github.com/okian/lineup/internal/domain/enhance"
	"github.com/okian/lineup/internal/domain/match"
	"github.com/okian/lineup/internal/domain/roster"
	"github.com/okian/lineup/internal/domain/scan"
	"github.com/okian/lineup/pkg/logger"
	"github.com/okian/lineup/pkg/metrics"
	"github.com/okian/lineup/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	serviceName               = "lineup"
)

func main() {
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "lineup scanner exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) (err error) {
	shutdownTracing, err := tracing.Init(ctx, cfg.TracingEndpoint, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, shutdownTracing(context.WithoutCancel(ctx)))
	}()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	fetcher, err := newFetcher(cfg)
	if err != nil {
		_ = store.Close(ctx)
		return err
	}

	hub := broadcast.NewHub(broadcast.WithOriginPatterns(originPatterns(cfg.CORSOrigins)...))
	defer hub.Close()
	sink, closeSinks := newSink(ctx, cfg, hub, log)
	defer closeSinks()

	log.Info(ctx, "ocr engine",
		logger.String("tesseract", tesseract.Version()),
		logger.Any("languages", cfg.OCRLanguages))

	var svc *app.Service
	pipeline, err := newPipeline(cfg, store, sink, func(id string, st scan.State) {
		svc.ObserveState(id, st)
	})
	if err != nil {
		_ = store.Close(ctx)
		return err
	}

	svc = app.New(pipeline, fetcher, store,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithScanTimeout(cfg.ScanTimeout),
		app.WithDefaultPrefix(cfg.S3Prefix),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, svc.Stop(stopCtx))
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	// Scans and event streams hold responses open, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, hub),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.MongoURI == "" {
		logger.Get().Warn(ctx, "mongo_uri not set; rosters are kept in memory")
		return repository.NewMemoryStore(), nil
	}
	return repository.NewMongoStore(ctx, cfg.MongoURI,
		repository.WithDatabase(cfg.MongoDatabase),
		repository.WithCollection(cfg.MongoCollection),
		repository.WithTimeout(cfg.MongoTimeout),
	)
}

func newFetcher(cfg *config.Config) (objectstore.Fetcher, error) {
	if cfg.StorageBackend == config.StorageLocal {
		return objectstore.NewLocalFetcher(cfg.LocalVideoDir), nil
	}
	return objectstore.NewMinioFetcher(objectstore.MinioConfig{
		Endpoint:    cfg.S3Endpoint,
		Region:      cfg.S3Region,
		AccessKey:   cfg.S3AccessKey,
		SecretKey:   cfg.S3SecretKey,
		Bucket:      cfg.S3Bucket,
		UseSSL:      cfg.S3UseSSL,
		DownloadDir: cfg.DownloadDir,
	})
}

// newSink fans events out to the hub, the log and, when configured, MQTT.
// An unreachable broker is logged and skipped.
func newSink(ctx context.Context, cfg *config.Config, hub *broadcast.Hub, log logger.Logger) (scan.Sink, func()) {
	sinks := broadcast.Fanout{hub, broadcast.NewLogSink(log.Named("events"))}
	if cfg.MQTTBroker == "" {
		return sinks, func() {}
	}

	emitter := broadcast.NewMQTTEmitter(broadcast.MQTTConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Topic:    cfg.MQTTTopic,
		QoS:      1,
	})
	if err := emitter.Connect(ctx); err != nil {
		log.Warn(ctx, "mqtt disabled", logger.String("broker", cfg.MQTTBroker), logger.Error(err))
		return sinks, func() {}
	}
	return append(sinks, emitter), emitter.Disconnect
}

func newPipeline(cfg *config.Config, store dedupe.Store, sink scan.Sink, observe func(string, scan.State)) (*scan.Pipeline, error) {
	policy, err := roster.ParseSizePolicy(cfg.RosterSizePolicy)
	if err != nil {
		return nil, err
	}

	recognizer := ocr.NewRecognizer(tesseract.New(cfg.OCRLanguages...), enhance.Options{
		Scale:  cfg.OCRScale,
		Cutoff: uint8(cfg.OCRBinaryCutoff),
		Gain:   cfg.OCRGain,
	})

	return scan.New(scan.Deps{
		Decoder:    video.NewDecoder(),
		Extractor:  video.NewExtractor(cfg.CaptureDir),
		Recognizer: recognizer,
		Store:      store,
	},
		scan.WithTemplatePath(cfg.TemplatePath),
		scan.WithMatchOptions(
			match.WithThreshold(cfg.MatchThreshold),
			match.WithRegion(match.Region{Top: cfg.ROITop, Bottom: cfg.ROIBottom, Left: cfg.ROILeft, Right: cfg.ROIRight}),
		),
		scan.WithFrameSkip(cfg.FrameSkip),
		scan.WithParser(roster.NewParser(
			roster.WithSize(cfg.RosterSize),
			roster.WithPolicy(policy),
			roster.WithNoiseToken(cfg.NoiseToken),
		)),
		scan.WithControllerOptions(
			dedupe.WithConfirmThreshold(cfg.ConfirmThreshold),
			dedupe.WithTargetRosters(cfg.TargetRosters),
			dedupe.WithProcessSkip(cfg.ProcessSkip),
			dedupe.WithCounterSize(cfg.CounterSize),
		),
		scan.WithSink(sink),
		scan.WithStateObserver(observe),
	)
}

func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, hub *broadcast.Hub) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(svc, hub).Register(ctx, mux)

	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// originPatterns converts CORS origins to WebSocket origin patterns, which
// match on host only.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.GetStats(ctx)
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
