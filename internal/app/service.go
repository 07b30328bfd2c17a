// Package service runs lineup scans off the request path and serves the
// stored rosters to the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/okian/lineup/internal/adapters/mq/queue"
	"github.com/okian/lineup/internal/adapters/mq/worker"
	"github.com/okian/lineup/internal/adapters/objectstore"
	"github.com/okian/lineup/internal/adapters/repository"
	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/internal/domain/scan"
	"github.com/okian/lineup/pkg/logger"
	"github.com/okian/lineup/pkg/metrics"
	"github.com/okian/lineup/pkg/tracing"
)

// Scanner runs one scan over a local video file.
type Scanner interface {
	Run(ctx context.Context, scanID, path string) (scan.Result, error)
}

// Service owns the scan queue, the worker pool and the job registry.
type Service struct {
	mu sync.RWMutex

	scanner Scanner
	fetcher objectstore.Fetcher
	store   repository.Store

	queue *queue.InMemoryQueue
	pool  *worker.Pool
	jobs  *jobs

	workerCount   int
	queueSize     int
	retention     int
	scanTimeout   time.Duration
	defaultPrefix string

	started   bool
	runCancel context.CancelFunc

	logger logger.Logger
	tracer trace.Tracer
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets how many scans run at once.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets how many scans may wait for a worker.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithJobRetention sets how many jobs are remembered before finished ones are evicted.
func WithJobRetention(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithScanTimeout caps a single scan. Zero disables the cap.
func WithScanTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.scanTimeout = d
		}
	}
}

// WithDefaultPrefix sets the object prefix used when a request names none.
func WithDefaultPrefix(prefix string) Option {
	return func(s *Service) {
		s.defaultPrefix = prefix
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service. Call Start before submitting scans.
func New(scanner Scanner, fetcher objectstore.Fetcher, store repository.Store, opts ...Option) *Service {
	s := &Service{
		scanner:     scanner,
		fetcher:     fetcher,
		store:       store,
		workerCount: 1,
		queueSize:   16,
		retention:   256,
		scanTimeout: 30 * time.Minute,
		tracer:      tracing.Tracer("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.jobs = newJobs(s.retention)
	return s
}

// Start creates the queue and starts the workers. Scans outlive ctx and
// are cancelled by Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.runCancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "scan service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("scan_timeout", s.scanTimeout),
	)
	return nil
}

// Stop cancels running scans, drains the workers and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scan service...")

	s.jobs.cancelAll()
	var err error
	err = multierr.Append(err, s.pool.Shutdown(ctx))
	s.runCancel()
	s.jobs.abandon(ErrNotStarted)
	if s.store != nil {
		err = multierr.Append(err, s.store.Close(ctx))
	}

	s.started = false
	s.logger.Info(ctx, "scan service stopped")
	return err
}

// SubmitScan queues a scan of the newest video under prefix. An empty
// prefix uses the configured default.
func (s *Service) SubmitScan(ctx context.Context, prefix string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return Job{}, ErrNotStarted
	}
	if prefix == "" {
		prefix = s.defaultPrefix
	}

	req := model.ScanRequest{ID: uuid.NewString(), Prefix: prefix, SubmittedAt: time.Now().UTC()}
	job := Job{
		ID:          req.ID,
		Prefix:      req.Prefix,
		Status:      StatusQueued,
		Stage:       scan.StateScanning,
		SubmittedAt: req.SubmittedAt,
	}
	s.jobs.add(job)
	if !s.queue.Enqueue(ctx, req) {
		s.jobs.remove(req.ID)
		s.logger.Warn(ctx, "scan rejected", logger.Int("queue_length", s.queue.Len(ctx)))
		return Job{}, ErrQueueFull
	}

	s.logger.Info(ctx, "scan queued", logger.String("scan_id", req.ID), logger.String("prefix", prefix))
	return job, nil
}

// Job returns the current snapshot of a scan.
func (s *Service) Job(_ context.Context, id string) (Job, error) {
	j, ok := s.jobs.get(id)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j, nil
}

// Jobs returns known scans, newest first.
func (s *Service) Jobs(_ context.Context) []Job {
	return s.jobs.list()
}

// Wait blocks until the scan finishes or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (Job, error) {
	done, ok := s.jobs.done(id)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	select {
	case <-done:
		return s.Job(ctx, id)
	case <-ctx.Done():
		j, _ := s.jobs.get(id)
		return j, ctx.Err()
	}
}

// Cancel stops a queued or running scan.
func (s *Service) Cancel(ctx context.Context, id string) (Job, error) {
	j, err := s.jobs.cancel(id)
	if err == nil {
		s.logger.Info(ctx, "scan cancel requested", logger.String("scan_id", id))
	}
	return j, err
}

// Process submits a scan and waits for it. If ctx ends first the scan is
// cancelled.
func (s *Service) Process(ctx context.Context, prefix string) (Job, error) {
	j, err := s.SubmitScan(ctx, prefix)
	if err != nil {
		return Job{}, err
	}
	j, err = s.Wait(ctx, j.ID)
	if err != nil {
		_, _ = s.Cancel(context.WithoutCancel(ctx), j.ID)
		return j, err
	}
	return j, nil
}

// ObserveState records the live stage of a running scan.
func (s *Service) ObserveState(scanID string, st scan.State) {
	s.jobs.update(scanID, func(j *Job) { j.Stage = st })
}

// RunJob fetches the video and runs the scan. It implements worker.Runner.
func (s *Service) RunJob(ctx context.Context, req queue.Job) error {
	var (
		jobCtx context.Context
		cancel context.CancelFunc
	)
	if s.scanTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, s.scanTimeout)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if !s.jobs.start(req.ID, cancel) {
		s.logger.Debug(ctx, "skipping scan that is no longer queued", logger.String("scan_id", req.ID))
		return nil
	}

	obj, err := s.fetch(jobCtx, req)
	if err != nil {
		s.jobs.finish(req.ID, statusFor(jobCtx, nil, err), nil, err)
		return err
	}
	defer func() {
		if cerr := obj.Cleanup(); cerr != nil {
			s.logger.Warn(ctx, "failed to remove downloaded video",
				logger.String("path", obj.LocalPath), logger.Error(cerr))
		}
	}()
	s.jobs.update(req.ID, func(j *Job) { j.Video = obj.Key })

	res, err := s.scanner.Run(jobCtx, req.ID, obj.LocalPath)
	res.Video = obj.Key
	s.jobs.finish(req.ID, statusFor(jobCtx, &res, err), &res, err)
	return err
}

func (s *Service) fetch(ctx context.Context, req queue.Job) (objectstore.Object, error) {
	ctx, span := s.tracer.Start(ctx, "service.fetch_video", trace.WithAttributes(
		attribute.String("scan.id", req.ID),
		attribute.String("scan.prefix", req.Prefix),
	))
	defer span.End()

	start := time.Now()
	obj, err := s.fetcher.FetchLatest(ctx, req.Prefix)
	metrics.RecordVideoFetchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		metrics.RecordErrorByComponent("service", "fetch")
		return objectstore.Object{}, fmt.Errorf("fetch video: %w", err)
	}
	span.SetAttributes(attribute.String("scan.video", obj.Key))
	s.logger.Info(ctx, "video fetched",
		logger.String("scan_id", req.ID),
		logger.String("key", obj.Key),
		logger.Any("size", obj.Size),
	)
	return obj, nil
}

// statusFor maps a scan outcome to a job status. Hitting the scan timeout
// is a failure; any other cancellation is a cancel.
func statusFor(ctx context.Context, res *scan.Result, err error) Status {
	switch {
	case err == nil && res != nil && res.Complete():
		return StatusSucceeded
	case err == nil:
		return StatusPartial
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return StatusFailed
	case errors.Is(err, scan.ErrCancelled), errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Teams returns the distinct team names with a stored roster.
func (s *Service) Teams(ctx context.Context) ([]string, error) {
	return s.store.Teams(ctx)
}

// Roster returns the newest stored roster for team.
func (s *Service) Roster(ctx context.Context, team string) (model.Roster, error) {
	return s.store.Find(ctx, team)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	counts := s.jobs.counts()
	jobs := make(map[string]int, len(counts))
	for st, n := range counts {
		jobs[string(st)] = n
	}
	stats["jobs"] = jobs

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["rosters"] = n
	} else {
		stats["rostersError"] = err.Error()
	}
	return stats
}
