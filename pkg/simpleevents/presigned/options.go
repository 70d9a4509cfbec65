package presigned

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithDefaultExpiration sets the expiration used when SignURL gets a zero duration.
// Default is 1 hour.
func WithDefaultExpiration(duration time.Duration) Option {
	return func(s *Signer) {
		s.defaultExpiration = duration
	}
}

// WithURLPattern sets the path pattern that maps object keys to URLs.
// The pattern must contain a {key} placeholder. Default is "/files/{key}".
func WithURLPattern(pattern string) Option {
	return func(s *Signer) {
		s.urlPattern = pattern
	}
}

// WithBaseURL sets the scheme and host prepended by SignKey, e.g. "https://events.example.com"
func WithBaseURL(baseURL string) Option {
	return func(s *Signer) {
		s.baseURL = baseURL
	}
}

// withClock replaces time.Now in tests
func withClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
