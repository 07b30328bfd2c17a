// Package tesseract reads text with the Tesseract engine through gosseract.
// It requires libtesseract and the configured language data at build and run time.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine implements ocr.LineReader. Each call uses its own client, so an
// Engine is safe for concurrent use.
type Engine struct {
	languages []string
}

// New creates an Engine for the given languages, e.g. "kor", "eng".
func New(languages ...string) *Engine {
	return &Engine{languages: languages}
}

// Version reports the linked Tesseract version.
func Version() string {
	return gosseract.Version()
}

type result struct {
	lines []string
	err   error
}

// ReadLines runs recognition on an encoded image. If ctx ends first the call
// returns immediately and the engine run is left to finish in the background.
func (e *Engine) ReadLines(ctx context.Context, png []byte) ([]string, error) {
	done := make(chan result, 1)
	go func() {
		lines, err := e.read(png)
		done <- result{lines: lines, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.lines, r.err
	}
}

func (e *Engine) read(png []byte) ([]string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	return strings.Split(text, "\n"), nil
}
