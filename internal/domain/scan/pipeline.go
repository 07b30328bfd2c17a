package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/okian/lineup/internal/domain/dedupe"
	"github.com/okian/lineup/internal/domain/match"
	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/internal/domain/roster"
	"github.com/okian/lineup/pkg/logger"
	"github.com/okian/lineup/pkg/metrics"
	"github.com/okian/lineup/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFrameSkip samples every 80th frame.
const DefaultFrameSkip = 80

// Deps are the collaborators a pipeline cannot work without.
type Deps struct {
	Decoder    Decoder
	Extractor  Extractor
	Recognizer Recognizer
	Store      dedupe.Store
}

// Result summarizes one scan.
type Result struct {
	ScanID          string         `json:"scan_id"`
	Video           string         `json:"video"`
	State           State          `json:"state"`
	FramesRead      int            `json:"frames_read"`
	FramesSampled   int            `json:"frames_sampled"`
	FramesSkipped   int            `json:"frames_skipped"`
	Candidates      int            `json:"candidates"`
	ExtractFailures int            `json:"extract_failures"`
	OCRFailures     int            `json:"ocr_failures"`
	Rejected        int            `json:"rejected"`
	Unique          int            `json:"unique"`
	Persisted       int            `json:"persisted"`
	Rosters         []model.Roster `json:"rosters"`
	Duration        time.Duration  `json:"duration"`
}

// Complete reports whether the scan found every roster it was looking for.
func (r Result) Complete() bool { return r.State == StateStoppedSuccess }

// Pipeline runs scans. It holds no per-scan state, so one Pipeline may run
// several scans concurrently.
type Pipeline struct {
	deps         Deps
	templatePath string
	matcher      *match.Matcher
	matchOpts    []match.Option
	frameSkip    int
	parser       *roster.Parser
	ctrlOpts     []dedupe.Option
	sink         Sink
	log          logger.Logger
	tracer       trace.Tracer
	observe      func(scanID string, s State)
}

// New creates a pipeline. A template path or a matcher must be configured.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		deps:      deps,
		frameSkip: DefaultFrameSkip,
		sink:      nopSink{},
	}
	for _, opt := range opts {
		opt(p)
	}

	switch {
	case deps.Decoder == nil:
		return nil, fmt.Errorf("%w: decoder is required", ErrConfig)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: extractor is required", ErrConfig)
	case deps.Recognizer == nil:
		return nil, fmt.Errorf("%w: recognizer is required", ErrConfig)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: store is required", ErrConfig)
	case p.matcher == nil && p.templatePath == "":
		return nil, fmt.Errorf("%w: template path or matcher is required", ErrConfig)
	case p.frameSkip <= 0:
		return nil, fmt.Errorf("%w: frame skip must be positive", ErrConfig)
	}

	if p.parser == nil {
		p.parser = roster.NewParser()
	}
	if p.log == nil {
		p.log = logger.Get().Named("scan")
	}
	p.tracer = tracing.Tracer("scan")
	return p, nil
}

// run holds the state of one scan invocation.
type run struct {
	*Pipeline
	id      string
	video   string
	matcher *match.Matcher
	ctrl    *dedupe.Controller
	res     Result
}

// Run scans the video at path until two unique rosters are confirmed, the
// stream ends, a fatal error occurs or ctx is done. The returned Result is
// valid in every case; err is non-nil only for failed and cancelled scans.
func (p *Pipeline) Run(ctx context.Context, scanID, path string) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "scan.Run", trace.WithAttributes(
		attribute.String("scan.id", scanID),
		attribute.String("scan.video", path),
	))
	defer span.End()

	started := time.Now()
	metrics.ScanStarted()

	r := &run{Pipeline: p, id: scanID, video: path}
	r.res = Result{ScanID: scanID, Video: path, State: StateScanning, Rosters: []model.Roster{}}

	err := r.loop(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	r.res.Duration = time.Since(started)
	if r.ctrl != nil {
		r.res.Unique = r.ctrl.Unique()
	}
	span.SetAttributes(
		attribute.String("scan.state", r.res.State.String()),
		attribute.Int("scan.unique", r.res.Unique),
	)
	metrics.ScanFinished(r.res.State.String(), r.res.Duration.Seconds())

	r.emit(ctx, model.Event{Kind: model.EventScanStopped, Message: stopMessage(r.res, err)})
	p.log.Info(ctx, "scan finished",
		logger.String("scan_id", scanID),
		logger.String("state", r.res.State.String()),
		logger.Int("frames", r.res.FramesRead),
		logger.Int("unique", r.res.Unique),
		logger.Duration("duration", r.res.Duration))
	return r.res, err
}

func (r *run) loop(ctx context.Context) error {
	m, err := r.loadMatcher()
	if err != nil {
		return r.fail(ctx, err)
	}
	r.matcher = m

	src, err := r.deps.Decoder.Open(ctx, r.video)
	if err != nil {
		return r.fail(ctx, err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			r.log.Warn(ctx, "close frame source", logger.Error(cerr))
		}
	}()

	r.ctrl = dedupe.NewController(r.deps.Store,
		append([]dedupe.Option{dedupe.WithLogger(r.log.Named("dedupe"))}, r.ctrlOpts...)...)

	r.transition(StateScanning)
	r.emit(ctx, model.Event{Kind: model.EventScanStarted, Message: "scan started"})

	for {
		if ctx.Err() != nil {
			return r.cancel(ctx)
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			r.transition(StateStoppedEndOfStream)
			return nil
		}
		if err != nil {
			return r.fail(ctx, err)
		}
		r.res.FramesRead++
		metrics.RecordFrameDecoded()

		if frame.Index%r.frameSkip != 0 {
			continue
		}
		r.res.FramesSampled++

		score, ok := r.matcher.Match(frame.Image)
		metrics.RecordFrameSampled(score)
		if !ok {
			continue
		}

		out, err := r.candidate(ctx, frame.Index, score)
		if err != nil {
			return r.fail(ctx, err)
		}

		switch out.Decision {
		case dedupe.DecisionStop:
			r.transition(StateStoppedSuccess)
			return nil
		case dedupe.DecisionConfirmed:
			if out.Skip > 0 {
				if err := src.Skip(ctx, out.Skip); err != nil {
					return r.fail(ctx, err)
				}
				r.res.FramesSkipped += out.Skip
				metrics.RecordFramesSkipped(out.Skip)
			}
		}
		r.transition(StateScanning)
	}
}

// candidate resolves one matching frame completely. Recoverable failures
// return a pending outcome so scanning continues.
func (r *run) candidate(ctx context.Context, index int, score float64) (dedupe.Outcome, error) {
	pending := dedupe.Outcome{Decision: dedupe.DecisionPending}

	r.transition(StateCandidateHit)
	r.res.Candidates++
	metrics.RecordCandidate()
	r.emit(ctx, model.Event{Kind: model.EventCandidateFound, Frame: index, Score: score,
		Message: fmt.Sprintf("candidate at frame %d (score %.3f)", index, score)})

	r.transition(StateExtracting)
	still, err := r.extract(ctx, index)
	if err != nil {
		if ctx.Err() != nil {
			return pending, err
		}
		r.res.ExtractFailures++
		metrics.RecordExtractFailure()
		r.log.Warn(ctx, "candidate abandoned", logger.Int("frame", index), logger.Error(err))
		r.emit(ctx, model.Event{Kind: model.EventExtractFailed, Frame: index, Message: err.Error()})
		return pending, nil
	}

	r.transition(StateOCRRunning)
	tokens, err := r.recognize(ctx, still)
	if err != nil {
		if ctx.Err() != nil {
			return pending, err
		}
		r.res.OCRFailures++
		metrics.RecordRosterRejected("ocr")
		r.log.Warn(ctx, "ocr failed", logger.Int("frame", index), logger.Error(err))
		r.emit(ctx, model.Event{Kind: model.EventRosterRejected, Frame: index, Message: err.Error()})
		return pending, nil
	}
	r.emit(ctx, model.Event{Kind: model.EventOCRComplete, Frame: index,
		Message: fmt.Sprintf("%d tokens", len(tokens))})

	r.transition(StateParsed)
	parsed, err := r.parser.Parse(tokens)
	if err != nil {
		r.res.Rejected++
		metrics.RecordRosterRejected(rejectReason(err))
		r.log.Info(ctx, "roster rejected", logger.Int("frame", index), logger.Error(err))
		r.emit(ctx, model.Event{Kind: model.EventRosterRejected, Frame: index, Message: err.Error()})
		return pending, nil
	}
	parsed.Video = r.video
	parsed.ScanID = r.id

	r.transition(StateDedupCheck)
	out, err := r.dedup(ctx, parsed, index)
	if err != nil {
		return out, err
	}

	if out.Decision == dedupe.DecisionPending {
		r.emit(ctx, model.Event{Kind: model.EventRosterPending, Frame: index, Team: parsed.TeamName,
			Message: fmt.Sprintf("%s seen %d time(s)", parsed.TeamName, out.Count)})
		return out, nil
	}

	r.res.Rosters = append(r.res.Rosters, out.Roster)
	r.res.Unique = out.Unique
	metrics.RecordRosterConfirmed()
	if out.Persisted {
		r.res.Persisted++
		metrics.RecordRosterPersisted()
	} else {
		metrics.RecordDuplicateInsert()
	}
	r.emit(ctx, model.Event{Kind: model.EventRosterConfirmed, Frame: index, Team: parsed.TeamName,
		Message: fmt.Sprintf("%s confirmed (%d unique)", parsed.TeamName, out.Unique)})
	return out, nil
}

func (r *run) extract(ctx context.Context, index int) (image.Image, error) {
	ctx, span := r.tracer.Start(ctx, "scan.extract", trace.WithAttributes(attribute.Int("frame", index)))
	defer span.End()

	started := time.Now()
	path, err := r.deps.Extractor.Extract(ctx, r.video, index)
	metrics.RecordExtractLatency(float64(time.Since(started).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	img, err := loadStill(path)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return img, nil
}

func (r *run) recognize(ctx context.Context, still image.Image) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "scan.ocr")
	defer span.End()

	started := time.Now()
	tokens, err := r.deps.Recognizer.Recognize(ctx, r.matcher.Region().Crop(still))
	metrics.RecordOCRLatency(float64(time.Since(started).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrRecognize, err)
	}
	span.SetAttributes(attribute.Int("ocr.tokens", len(tokens)))
	return tokens, nil
}

func (r *run) dedup(ctx context.Context, parsed model.Roster, index int) (dedupe.Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "scan.persist", trace.WithAttributes(
		attribute.String("roster.team", parsed.TeamName),
		attribute.Int("frame", index),
	))
	defer span.End()

	out, err := r.ctrl.Observe(ctx, parsed, index)
	if err != nil {
		span.RecordError(err)
		return out, err
	}
	span.SetAttributes(attribute.String("dedupe.decision", out.Decision.String()))
	return out, nil
}

func (r *run) loadMatcher() (*match.Matcher, error) {
	if r.Pipeline.matcher != nil {
		return r.Pipeline.matcher, nil
	}
	return match.LoadTemplate(r.templatePath, r.matchOpts...)
}

// fail moves to a terminal error state. A done context wins over the cause.
func (r *run) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return r.cancel(ctx)
	}
	r.transition(StateFailed)
	r.log.Error(ctx, "scan failed", logger.String("scan_id", r.id), logger.Error(err))
	return err
}

func (r *run) cancel(ctx context.Context) error {
	r.transition(StateCancelled)
	return fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
}

func (r *run) transition(s State) {
	if r.res.State == s {
		return
	}
	r.res.State = s
	if r.observe != nil {
		r.observe(r.id, s)
	}
}

func (r *run) emit(ctx context.Context, ev model.Event) {
	ev.ScanID = r.id
	ev.Time = time.Now().UTC()
	r.sink.Publish(context.WithoutCancel(ctx), ev)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, roster.ErrTooFewTokens):
		return "too_few_tokens"
	case errors.Is(err, roster.ErrRosterSize):
		return "size"
	default:
		return "other"
	}
}

func stopMessage(res Result, err error) string {
	if err != nil {
		return fmt.Sprintf("scan %s: %v", res.State, err)
	}
	return fmt.Sprintf("scan %s with %d unique roster(s)", res.State, res.Unique)
}
