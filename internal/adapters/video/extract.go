package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/lineup/pkg/logger"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Extractor writes single frames of a video as PNG stills.
type Extractor struct {
	dir string
	log logger.Logger
}

// NewExtractor creates an Extractor writing under dir.
func NewExtractor(dir string, opts ...Option) *Extractor {
	e := &Extractor{dir: dir}
	for _, opt := range opts {
		opt(&e.log)
	}
	if e.log == nil {
		e.log = logger.Get().Named("video")
	}
	return e
}

// StillPath returns where the still for index of video is written.
// Stills are grouped per video so concurrent scans do not overwrite each other.
func (e *Extractor) StillPath(video string, index int) string {
	base := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	return filepath.Join(e.dir, base, fmt.Sprintf("capture_%d.png", index))
}

// Extract re-decodes the frame at the 1-based index through a separate ffmpeg
// run. It fails with ErrExtract when ffmpeg exits non-zero or writes nothing.
func (e *Extractor) Extract(ctx context.Context, video string, index int) (string, error) {
	if index < 1 {
		return "", fmt.Errorf("%w: frame index %d out of range", ErrExtract, index)
	}

	out := e.StillPath(video, index)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtract, err)
	}
	if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: clear stale still: %v", ErrExtract, err)
	}

	stderr := &lockedBuffer{}
	stream := ffmpeg.Input(video).
		Output(out, ffmpeg.KwArgs{
			"vf":      fmt.Sprintf(`select=eq(n\,%d)`, index-1),
			"vframes": 1,
		}).
		OverWriteOutput()
	stream.Context = ctx
	if err := stream.WithErrorOutput(stderr).Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: frame %d: %v %s", ErrExtract, index, err, stderr.tail(256))
	}

	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%w: frame %d: no output written", ErrExtract, index)
	}
	e.log.Debug(ctx, "still extracted", logger.Int("frame", index), logger.String("path", out))
	return out, nil
}
