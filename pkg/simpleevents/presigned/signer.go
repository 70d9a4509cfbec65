package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const keyPlaceholder = "{key}"

// Signer generates and validates HMAC-signed URLs
type Signer struct {
	secretKey         []byte
	defaultExpiration time.Duration
	urlPattern        string
	baseURL           string
	now               func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		defaultExpiration: time.Hour,
		urlPattern:        "/files/" + keyPlaceholder,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	s.baseURL = strings.TrimRight(s.baseURL, "/")

	return s
}

// IsEnabled returns true if signing is possible (secret key is set)
func (s *Signer) IsEnabled() bool {
	return len(s.secretKey) > 0
}

// PathForKey returns the unsigned path at which the object is served
func (s *Signer) PathForKey(key string) string {
	return strings.Replace(s.urlPattern, keyPlaceholder, escapeKey(key), 1)
}

// PublicURL returns the unsigned absolute URL of the object
func (s *Signer) PublicURL(key string) string {
	return s.baseURL + s.PathForKey(key)
}

// SignKey returns an absolute GET link for the object, valid for expiresIn
func (s *Signer) SignKey(key string, expiresIn time.Duration) (string, error) {
	signed, err := s.SignURL(http.MethodGet, s.PathForKey(key), expiresIn)
	if err != nil {
		return "", err
	}
	return s.baseURL + signed, nil
}

// SignURL generates a signed URL for the given HTTP method and path.
//
// Example:
//
//	url, err := signer.SignURL("GET", "/files/banner.png", time.Hour)
//	// Returns: /files/banner.png?expires=1696789012&signature=abc123...
func (s *Signer) SignURL(method, path string, expiresIn time.Duration) (string, error) {
	if !s.IsEnabled() {
		return "", ErrNoSecretKey
	}

	if expiresIn <= 0 {
		expiresIn = s.defaultExpiration
	}

	expiresAt := s.now().Add(expiresIn).Unix()
	signature := s.generateSignature(s.createPayload(method, path, expiresAt))

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	return fmt.Sprintf("%s%sexpires=%d&signature=%s", path, separator, expiresAt, signature), nil
}

// HasSignature reports whether the request carries signature parameters
func HasSignature(r *http.Request) bool {
	q := r.URL.Query()
	return q.Has("signature") || q.Has("expires")
}

// ValidateRequest validates the signature and expiration of an HTTP request
func (s *Signer) ValidateRequest(r *http.Request) error {
	if !s.IsEnabled() {
		return ErrNoSecretKey
	}

	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return ErrMissingSignature
	}
	if expiresStr == "" {
		return ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	// Other query params were part of the signed path
	path := r.URL.EscapedPath()
	cleanQuery := url.Values{}
	for k, v := range query {
		if k != "signature" && k != "expires" {
			cleanQuery[k] = v
		}
	}
	if len(cleanQuery) > 0 {
		path = path + "?" + cleanQuery.Encode()
	}

	return s.Validate(r.Method, path, signature, expiresAt)
}

// Validate validates the signature and expiration for a method and path
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.generateSignature(s.createPayload(method, path, expiresAt))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

// ExtractObjectKey extracts the object key from a URL path based on the configured URL pattern
func (s *Signer) ExtractObjectKey(path string) (string, error) {
	idx := strings.Index(s.urlPattern, keyPlaceholder)
	if idx == -1 {
		return "", fmt.Errorf("URL pattern does not contain %s placeholder", keyPlaceholder)
	}

	prefix := s.urlPattern[:idx]
	suffix := s.urlPattern[idx+len(keyPlaceholder):]

	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("path does not match URL pattern prefix")
	}

	key := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if key == "" {
		return "", fmt.Errorf("path has an empty object key")
	}

	return key, nil
}

// createPayload builds METHOD|PATH|EXPIRES
func (s *Signer) createPayload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// escapeKey escapes each key segment and keeps the slashes
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
