package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-events/pkg/simpleevents"
	"github.com/tendant/simple-events/pkg/simpleevents/presigned"
)

// FilesHandler serves blobs held by stores that do not serve their own
// objects, such as the filesystem backend. Signatures are checked when the
// request carries one.
type FilesHandler struct {
	reader simpleevents.BlobReader
	signer *presigned.Signer
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(reader simpleevents.BlobReader, signer *presigned.Signer) *FilesHandler {
	return &FilesHandler{reader: reader, signer: signer}
}

// Routes returns the routes for files
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.signer != nil && h.signer.IsEnabled() {
		r.Use(presigned.OptionalSignature(h.signer))
	}
	r.Get("/*", h.ServeFile)
	r.Head("/*", h.ServeFile)
	return r
}

// ServeFile streams the object named by the wildcard path
func (h *FilesHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := presigned.ObjectKeyFromContext(r.Context())
	if key == "" {
		key = chi.URLParam(r, "*")
	}
	if key == "" {
		http.Error(w, "Invalid file URL", http.StatusBadRequest)
		return
	}

	body, info, err := h.reader.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, simpleevents.ErrBlobNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to open file", "key", key, "error", err)
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if !info.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", info.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("Failed to stream file", "key", key, "error", err)
	}
}
