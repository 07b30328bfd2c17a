// Package ocr turns lineup card regions into text tokens.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/okian/lineup/internal/domain/enhance"
)

// ErrEngine wraps failures of the underlying text engine.
var ErrEngine = errors.New("ocr engine failure")

// LineReader is a text engine reading an encoded image line by line.
type LineReader interface {
	ReadLines(ctx context.Context, png []byte) ([]string, error)
}

// Recognizer enhances an image region and reads its tokens.
type Recognizer struct {
	reader LineReader
	opts   enhance.Options
}

// NewRecognizer wraps reader with the given preprocessing options.
func NewRecognizer(reader LineReader, opts enhance.Options) *Recognizer {
	return &Recognizer{reader: reader, opts: opts}
}

// Recognize preprocesses img and returns its tokens in reading order.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	prepared := enhance.Preprocess(img, r.opts)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrEngine, err)
	}

	lines, err := r.reader.ReadLines(ctx, buf.Bytes())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return Tokens(lines), nil
}

// jersey matches a line starting with a shirt number followed by a name.
var jersey = regexp.MustCompile(`^(\d{1,3})[.\s]+(\S.*)$`)

// Tokens flattens engine lines into tokens. Blank lines are dropped,
// whitespace is collapsed, and a leading shirt number is split from the
// name that follows it on the same line. The first line is the team name
// and is never split.
func Tokens(lines []string) []string {
	tokens := make([]string, 0, len(lines)*2)
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if len(tokens) == 0 {
			tokens = append(tokens, line)
			continue
		}
		if m := jersey.FindStringSubmatch(line); m != nil {
			tokens = append(tokens, m[1], m[2])
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens
}
