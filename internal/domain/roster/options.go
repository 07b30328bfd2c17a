package roster

// Option applies a configuration option to the Parser.
type Option func(*Parser)

// WithSize sets the expected number of player names.
func WithSize(n int) Option {
	return func(p *Parser) {
		p.size = n
	}
}

// WithPolicy sets how the name count is compared with the expected size.
func WithPolicy(policy SizePolicy) Option {
	return func(p *Parser) {
		p.policy = policy
	}
}

// WithNoiseToken sets the header token dropped before parsing. Empty disables removal.
func WithNoiseToken(token string) Option {
	return func(p *Parser) {
		p.noise = token
	}
}
