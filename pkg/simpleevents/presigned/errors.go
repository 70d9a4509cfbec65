package presigned

import "errors"

var (
	ErrNoSecretKey       = errors.New("presigned: no secret key configured")
	ErrMissingSignature  = errors.New("presigned: missing signature parameter")
	ErrMissingExpiration = errors.New("presigned: missing expires parameter")
	ErrInvalidExpiration = errors.New("presigned: invalid expires parameter")
	ErrExpired           = errors.New("presigned: link expired")
	ErrInvalidSignature  = errors.New("presigned: invalid signature")
)

// IsAuthError reports whether err rejects a request's signature, as opposed
// to a signer that cannot sign at all
func IsAuthError(err error) bool {
	switch {
	case errors.Is(err, ErrMissingSignature),
		errors.Is(err, ErrMissingExpiration),
		errors.Is(err, ErrInvalidExpiration),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrInvalidSignature):
		return true
	}
	return false
}
