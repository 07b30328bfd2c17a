// Package roster turns OCR token sequences into team rosters.
package roster

import (
	"fmt"

	"github.com/okian/lineup/internal/domain/model"
)

// SizePolicy decides whether a parsed name count is acceptable.
type SizePolicy string

// Supported size policies.
const (
	PolicyExact   SizePolicy = "exact"
	PolicyAtLeast SizePolicy = "at_least"
)

// Defaults for a broadcast lineup card.
const (
	DefaultSize       = 11
	DefaultNoiseToken = "SUBSTITUTES"
)

// ParseSizePolicy validates a policy name.
func ParseSizePolicy(s string) (SizePolicy, error) {
	switch p := SizePolicy(s); p {
	case PolicyExact, PolicyAtLeast:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrSizePolicy, s)
	}
}

func (p SizePolicy) accepts(got, want int) bool {
	if p == PolicyAtLeast {
		return got >= want
	}
	return got == want
}

// Parser is stateless and safe for concurrent use.
type Parser struct {
	size   int
	policy SizePolicy
	noise  string
}

// NewParser creates a Parser expecting DefaultSize names exactly.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		size:   DefaultSize,
		policy: PolicyExact,
		noise:  DefaultNoiseToken,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Split removes the noise token and assigns the rest by position: the first
// token is the team, then odd positions are numbers and even positions names.
// It performs no size validation.
func (p *Parser) Split(tokens []string) (team string, numbers, names []string, err error) {
	seq := p.denoise(tokens)
	if len(seq) < 2 {
		return "", nil, nil, fmt.Errorf("%w: %d tokens", ErrTooFewTokens, len(seq))
	}

	team = seq[0]
	for i := 1; i < len(seq); i++ {
		if i%2 == 1 {
			numbers = append(numbers, seq[i])
		} else {
			names = append(names, seq[i])
		}
	}
	return team, numbers, names, nil
}

// Parse builds a roster from tokens. The returned roster has no frame or
// scan metadata; the caller stamps it.
func (p *Parser) Parse(tokens []string) (model.Roster, error) {
	team, numbers, names, err := p.Split(tokens)
	if err != nil {
		return model.Roster{}, err
	}
	if !p.policy.accepts(len(names), p.size) {
		return model.Roster{}, fmt.Errorf("%w: team %q has %d names, want %s %d",
			ErrRosterSize, team, len(names), p.policy, p.size)
	}
	return model.Roster{TeamName: team, Names: names, Numbers: numbers}, nil
}

// denoise returns tokens without the first occurrence of the noise token.
// The input slice is left untouched.
func (p *Parser) denoise(tokens []string) []string {
	if p.noise == "" {
		return tokens
	}
	for i, t := range tokens {
		if t == p.noise {
			out := make([]string, 0, len(tokens)-1)
			out = append(out, tokens[:i]...)
			return append(out, tokens[i+1:]...)
		}
	}
	return tokens
}
