// Package scan drives a single lineup scan over one video: sampling frames,
// matching them against the template, extracting and reading candidates, and
// feeding parsed rosters to the dedup controller until the scan stops.
package scan

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/okian/lineup/internal/domain/model"
)

// FrameSource yields decoded frames in increasing index order starting at 1.
type FrameSource interface {
	// Next returns the next frame or io.EOF at end of stream. The frame image
	// is only valid until the following call.
	Next(ctx context.Context) (model.Frame, error)
	// Skip discards the next n frames. Reaching end of stream is not an error.
	Skip(ctx context.Context, n int) error
	Close() error
}

// Decoder opens a video for sequential decoding.
type Decoder interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}

// Extractor writes the frame at a 1-based index of a video as a still image
// and returns the still's path.
type Extractor interface {
	Extract(ctx context.Context, path string, index int) (string, error)
}

// Recognizer reads the text tokens of an image region in reading order.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]string, error)
}

// Sink receives progress events. Publish must not block the scan.
type Sink interface {
	Publish(ctx context.Context, ev model.Event)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, model.Event) {}

// loadStill decodes a still written by an Extractor.
func loadStill(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStill, path, err)
	}
	return img, nil
}
