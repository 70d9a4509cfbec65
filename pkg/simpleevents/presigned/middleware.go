package presigned

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type contextKey string

const (
	// ObjectKeyContextKey is the context key for storing the validated object key
	ObjectKeyContextKey contextKey = "presigned:object_key"
)

// RequireSignature returns middleware that rejects requests without a valid signature.
// On success the object key is stored in the request context.
func RequireSignature(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			validateAndServe(signer, next, w, r)
		})
	}
}

// OptionalSignature returns middleware that validates the signature only when
// the request carries one. Unsigned requests pass through; a signed request with
// a bad or expired signature is rejected.
func OptionalSignature(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasSignature(r) {
				next.ServeHTTP(w, r)
				return
			}
			validateAndServe(signer, next, w, r)
		})
	}
}

func validateAndServe(signer *Signer, next http.Handler, w http.ResponseWriter, r *http.Request) {
	if err := signer.ValidateRequest(r); err != nil {
		handleValidationError(w, err)
		return
	}

	objectKey, err := signer.ExtractObjectKey(r.URL.Path)
	if err != nil {
		slog.Warn("presigned: failed to extract object key", "path", r.URL.Path, "error", err)
		http.Error(w, "Invalid file URL", http.StatusBadRequest)
		return
	}

	ctx := context.WithValue(r.Context(), ObjectKeyContextKey, objectKey)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// ObjectKeyFromContext extracts the validated object key from the request context.
// Returns empty string if not found.
func ObjectKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(ObjectKeyContextKey).(string); ok {
		return key
	}
	return ""
}

// handleValidationError writes an HTTP error response for a validation failure
func handleValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingSignature):
		http.Error(w, "Missing signature parameter", http.StatusUnauthorized)
	case errors.Is(err, ErrMissingExpiration):
		http.Error(w, "Missing expires parameter", http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidExpiration):
		http.Error(w, "Invalid expires parameter", http.StatusBadRequest)
	case errors.Is(err, ErrExpired):
		http.Error(w, "Signed URL has expired", http.StatusForbidden)
	case errors.Is(err, ErrInvalidSignature):
		http.Error(w, "Invalid signature", http.StatusForbidden)
	default:
		slog.Error("presigned: validation error", "error", err)
		http.Error(w, "Authentication failed", http.StatusForbidden)
	}
}
