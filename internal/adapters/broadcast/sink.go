package broadcast

import (
	"context"

	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/internal/domain/scan"
	"github.com/okian/lineup/pkg/logger"
	"github.com/okian/lineup/pkg/metrics"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, ev model.Event) {
	fields := []logger.Field{
		logger.String("scan_id", ev.ScanID),
		logger.String("kind", string(ev.Kind)),
	}
	if ev.Frame > 0 {
		fields = append(fields, logger.Int("frame", ev.Frame))
	}
	if ev.Team != "" {
		fields = append(fields, logger.String("team", ev.Team))
	}
	if ev.Score != 0 {
		fields = append(fields, logger.Float64("score", ev.Score))
	}
	s.log.Info(ctx, ev.Message, fields...)
	metrics.RecordEventPublished("log")
}

// Fanout publishes to several sinks in order.
type Fanout []scan.Sink

func (f Fanout) Publish(ctx context.Context, ev model.Event) {
	for _, s := range f {
		s.Publish(ctx, ev)
	}
}
