package memory

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/presigned"
)

func TestMemoryBackend_BasicOps(t *testing.T) {
	ctx := context.Background()
	backend := New()

	result, err := backend.Upload(ctx, simpleevents.UploadParams{
		Folder:      "event-banners",
		FileName:    "poster.png",
		ContentType: "image/png",
		Body:        strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Key, "event-banners/"))
	assert.True(t, strings.HasSuffix(result.Key, "-poster.png"))
	assert.Equal(t, "memory://"+result.Key, result.URL)
	assert.True(t, backend.Exists(result.Key))

	rc, info, err := backend.Open(ctx, result.Key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, int64(9), info.Size)

	link, err := backend.SignedURL(ctx, result.Key, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, link, "expires=")

	require.NoError(t, backend.Delete(ctx, result.Key))
	assert.False(t, backend.Exists(result.Key))

	// Deleting again is not an error
	assert.NoError(t, backend.Delete(ctx, result.Key))

	_, _, err = backend.Open(ctx, result.Key)
	assert.ErrorIs(t, err, simpleevents.ErrBlobNotFound)
}

func TestMemoryBackend_UniqueKeys(t *testing.T) {
	ctx := context.Background()
	backend := New()

	first, err := backend.Upload(ctx, simpleevents.UploadParams{Folder: "f", FileName: "same.png", Body: strings.NewReader("a")})
	require.NoError(t, err)
	second, err := backend.Upload(ctx, simpleevents.UploadParams{Folder: "f", FileName: "same.png", Body: strings.NewReader("b")})
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, 2, backend.Len())
}

func TestMemoryBackend_WithSigner(t *testing.T) {
	ctx := context.Background()
	signer := presigned.New(presigned.WithSecretKey("secret"), presigned.WithBaseURL("http://localhost:8080"))
	backend := New(WithSigner(signer))

	result, err := backend.Upload(ctx, simpleevents.UploadParams{Folder: "event-banners", FileName: "a.png", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/"+result.Key, result.URL)

	link, err := backend.SignedURL(ctx, result.Key, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, link, "signature=")
}

func TestMemoryBackend_SignedURLMissingKey(t *testing.T) {
	_, err := New().SignedURL(context.Background(), "missing", time.Minute)
	assert.ErrorIs(t, err, simpleevents.ErrBlobNotFound)
}
