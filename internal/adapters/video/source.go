package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/internal/domain/scan"
	"github.com/okian/lineup/pkg/logger"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Decoder opens videos as raw RGBA frame streams piped out of ffmpeg.
type Decoder struct {
	log logger.Logger
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(&d.log)
	}
	if d.log == nil {
		d.log = logger.Get().Named("video")
	}
	return d
}

// Open probes path and starts decoding it. The ffmpeg process lives until the
// stream ends, ctx is done, or the source is closed.
func (d *Decoder) Open(ctx context.Context, path string) (scan.FrameSource, error) {
	info, err := Probe(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	stderr := &lockedBuffer{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		stream := ffmpeg.Input(path).
			Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgba"})
		stream.Context = ctx
		err := stream.WithOutput(pw).WithErrorOutput(stderr).Run()
		// nil closes the pipe with io.EOF.
		_ = pw.CloseWithError(err)
	}()

	d.log.Debug(ctx, "decoding video",
		logger.String("path", path),
		logger.Int("width", info.Width),
		logger.Int("height", info.Height),
		logger.Int("frames", info.Frames))

	src := newSource(pr, info.Width, info.Height)
	src.stderr = stderr
	src.stop = func() {
		cancel()
		_ = pr.Close()
		<-done
	}
	return src, nil
}

// Source reads fixed-size RGBA frames from a reader.
type Source struct {
	r      io.Reader
	rect   image.Rectangle
	buf    []byte
	index  int
	eof    bool
	stderr *lockedBuffer
	stop   func()
	once   sync.Once
}

func newSource(r io.Reader, width, height int) *Source {
	return &Source{
		r:    r,
		rect: image.Rect(0, 0, width, height),
		buf:  make([]byte, width*height*4),
	}
}

func (s *Source) frameSize() int64 { return int64(len(s.buf)) }

// Next returns the next frame. The returned image shares a buffer that the
// following call overwrites. A truncated final frame counts as end of stream.
func (s *Source) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}
	if s.eof {
		return model.Frame{}, io.EOF
	}

	if _, err := io.ReadFull(s.r, s.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.eof = true
			return model.Frame{}, io.EOF
		}
		return model.Frame{}, s.decodeErr(ctx, err)
	}

	s.index++
	img := &image.NRGBA{Pix: s.buf, Stride: 4 * s.rect.Dx(), Rect: s.rect}
	return model.Frame{Index: s.index, Image: img}, nil
}

// Skip discards up to n frames without converting them.
func (s *Source) Skip(ctx context.Context, n int) error {
	if n <= 0 || s.eof {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	copied, err := io.CopyN(io.Discard, s.r, int64(n)*s.frameSize())
	s.index += int(copied / s.frameSize())
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.eof = true
			return nil
		}
		return s.decodeErr(ctx, err)
	}
	return nil
}

// Index returns the index of the last frame read or skipped.
func (s *Source) Index() int { return s.index }

// Close stops the decoder process.
func (s *Source) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
	return nil
}

func (s *Source) decodeErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := ""
	if s.stderr != nil {
		msg = s.stderr.tail(512)
	}
	return fmt.Errorf("%w: frame %d: %v %s", ErrDecode, s.index+1, err, msg)
}

// lockedBuffer collects ffmpeg's stderr while it is being written.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.buf.Bytes()
	if len(data) > n {
		data = data[len(data)-n:]
	}
	return string(bytes.TrimSpace(data))
}
