package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/objectkey"
	"github.com/tendant/simple-events/pkg/simpleevents/presigned"
)

const backendName = "fs"

// Backend is a filesystem implementation of the simpleevents.BlobStore interface.
// Objects are served by the process itself through the signer's URL pattern.
type Backend struct {
	baseDir string
	keys    objectkey.Generator
	signer  *presigned.Signer
}

// Config options for the filesystem backend
type Config struct {
	BaseDir      string              // Base directory for storing files
	Signer       *presigned.Signer   // Builds public and signed URLs; required
	KeyGenerator objectkey.Generator // Optional; defaults to objectkey.NewDefaultGenerator
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.Signer == nil {
		return nil, errors.New("signer is required")
	}

	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	keys := config.KeyGenerator
	if keys == nil {
		keys = objectkey.NewDefaultGenerator()
	}

	return &Backend{
		baseDir: baseDir,
		keys:    keys,
		signer:  config.Signer,
	}, nil
}

// Upload writes the content to a fresh key below the base directory
func (b *Backend) Upload(ctx context.Context, params simpleevents.UploadParams) (*simpleevents.UploadResult, error) {
	key := objectkey.NewKey(b.keys, &objectkey.KeyMetadata{
		Folder:      params.Folder,
		FileName:    params.FileName,
		ContentType: params.ContentType,
	})

	if err := b.write(ctx, key, params.Body); err != nil {
		return nil, &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpUpload, Err: err}
	}

	return &simpleevents.UploadResult{URL: b.signer.PublicURL(key), Key: key}, nil
}

func (b *Backend) write(ctx context.Context, key string, body io.Reader) error {
	if body == nil {
		return errors.New("empty body")
	}

	filePath, err := b.pathFor(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial object
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, body)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Delete removes the object from disk; a missing key is not an error
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.pathFor(key)
	if err != nil {
		return &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpDelete, Err: err}
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpDelete, Err: err}
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// SignedURL returns an HMAC-signed link to the object
func (b *Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return "", &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpSignedURL, Err: err}
	}
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = simpleevents.ErrBlobNotFound
		}
		return "", &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpSignedURL, Err: err}
	}

	if ttl <= 0 {
		ttl = simpleevents.DefaultSignedURLTTL
	}
	link, err := b.signer.SignKey(key, ttl)
	if err != nil {
		return "", &simpleevents.StorageError{Backend: backendName, Key: key, Op: simpleevents.StorageOpSignedURL, Err: err}
	}
	return link, nil
}

// Open opens the object for reading
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, *simpleevents.BlobInfo, error) {
	filePath, err := b.pathFor(key)
	if err != nil {
		return nil, nil, simpleevents.ErrBlobNotFound
	}

	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, simpleevents.ErrBlobNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, nil, simpleevents.ErrBlobNotFound
	}

	info := &simpleevents.BlobInfo{
		Key:         key,
		ContentType: detectContentType(file, key),
		Size:        stat.Size(),
		UpdatedAt:   stat.ModTime(),
	}
	return file, info, nil
}

// pathFor maps a key to a path and rejects keys that escape the base directory
func (b *Backend) pathFor(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty object key")
	}
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(filePath, b.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("object key %q escapes base directory", key)
	}
	return filePath, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir || !strings.HasPrefix(dir, b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

func detectContentType(file *os.File, key string) string {
	if byExt := mime.TypeByExtension(filepath.Ext(key)); byExt != "" {
		return byExt
	}

	buffer := make([]byte, 512)
	n, _ := file.Read(buffer)
	_, _ = file.Seek(0, io.SeekStart)
	if n == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(buffer[:n])
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
