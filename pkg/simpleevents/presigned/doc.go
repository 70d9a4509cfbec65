// Package presigned signs and validates time-limited read links for blobs
// served by this process, such as the filesystem banner store.
//
// A signed link carries two query parameters:
//
//	/files/event-banners/0f8c...-poster.png?expires=1696789012&signature=ab12...
//
// The signature is an HMAC-SHA256 over "METHOD|PATH|EXPIRES" keyed by a
// shared secret. The link stops validating once expires has passed.
//
// Usage:
//
//	signer := presigned.New(
//	    presigned.WithSecretKey(os.Getenv("SIGNING_SECRET")),
//	    presigned.WithURLPattern("/files/{key}"),
//	)
//	link, err := signer.SignKey(key, 15*time.Minute)
//
//	r.With(presigned.OptionalSignature(signer)).Get("/files/*", serveFile)
package presigned
