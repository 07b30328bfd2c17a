package match

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultThreshold is the correlation a frame must exceed to become a candidate.
const DefaultThreshold = 0.90

// Matcher compares frame regions with a fixed template signature.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	template  Signature
	threshold float64
	region    Region
}

// NewMatcher computes the template signature over the whole template image.
func NewMatcher(template image.Image, opts ...Option) (*Matcher, error) {
	if template == nil || template.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrTemplate)
	}
	m := &Matcher{
		threshold: DefaultThreshold,
		region:    DefaultRegion,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.region.Validate(); err != nil {
		return nil, err
	}
	m.template = Compute(template)
	return m, nil
}

// LoadTemplate reads the template image at path and builds a Matcher from it.
func LoadTemplate(path string, opts ...Option) (*Matcher, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplate, path, err)
	}
	return NewMatcher(img, opts...)
}

// Score crops the region of img and correlates its signature with the template.
func (m *Matcher) Score(img image.Image) float64 {
	return Correlate(Compute(m.region.Crop(img)), m.template)
}

// Match scores img and reports whether the score is strictly above the threshold.
func (m *Matcher) Match(img image.Image) (float64, bool) {
	score := m.Score(img)
	return score, m.Accept(score)
}

// Accept reports whether score counts as a match.
func (m *Matcher) Accept(score float64) bool {
	return score > m.threshold
}

// Region returns the configured region of interest.
func (m *Matcher) Region() Region { return m.region }

// Threshold returns the configured match threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }
