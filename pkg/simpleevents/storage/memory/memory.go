package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/objectkey"
	"github.com/tendant/simple-events/pkg/simpleevents/presigned"
)

const backendName = "memory"

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the simpleevents.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	keys    objectkey.Generator
	signer  *presigned.Signer
}

// Option configures the memory backend
type Option func(*Backend)

// WithKeyGenerator sets the object key generator
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(b *Backend) {
		b.keys = g
	}
}

// WithSigner makes the backend hand out /files URLs served by this process
// instead of memory:// pseudo-URLs
func WithSigner(s *presigned.Signer) Option {
	return func(b *Backend) {
		b.signer = s
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{
		objects: make(map[string]object),
		keys:    objectkey.NewDefaultGenerator(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upload stores the content under a fresh key
func (b *Backend) Upload(ctx context.Context, params simpleevents.UploadParams) (*simpleevents.UploadResult, error) {
	key := objectkey.NewKey(b.keys, &objectkey.KeyMetadata{
		Folder:      params.Folder,
		FileName:    params.FileName,
		ContentType: params.ContentType,
	})

	if params.Body == nil {
		return nil, &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpUpload, Err: fmt.Errorf("empty body")}
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpUpload, Err: err}
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	b.objects[key] = object{data: data, contentType: contentType, updatedAt: time.Now().UTC()}
	b.mu.Unlock()

	return &simpleevents.UploadResult{URL: b.publicURL(key), Key: key}, nil
}

// Delete removes the object; a missing key is not an error
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	return nil
}

// SignedURL returns a time-limited URL for the object
func (b *Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !b.Exists(key) {
		return "", &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpSignedURL, Err: simpleevents.ErrBlobNotFound}
	}
	if ttl <= 0 {
		ttl = simpleevents.DefaultSignedURLTTL
	}

	if b.signer != nil && b.signer.IsEnabled() {
		link, err := b.signer.SignKey(key, ttl)
		if err != nil {
			return "", &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpSignedURL, Err: err}
		}
		return link, nil
	}

	q := url.Values{}
	q.Set("expires", fmt.Sprint(time.Now().Add(ttl).Unix()))
	return b.publicURL(key) + "?" + q.Encode(), nil
}

// Open returns the stored content
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, *simpleevents.BlobInfo, error) {
	b.mu.RLock()
	obj, exists := b.objects[key]
	b.mu.RUnlock()

	if !exists {
		return nil, nil, simpleevents.ErrBlobNotFound
	}

	info := &simpleevents.BlobInfo{
		Key:         key,
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		UpdatedAt:   obj.updatedAt,
	}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

// Exists reports whether an object is stored at key
func (b *Backend) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[key]
	return exists
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.objects)
}

func (b *Backend) publicURL(key string) string {
	if b.signer != nil {
		return b.signer.PublicURL(key)
	}
	return "memory://" + key
}
