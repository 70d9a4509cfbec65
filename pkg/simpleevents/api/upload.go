package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-events/pkg/simpleevents"
)

const bannerField = "banner"

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 1 << 20

// maxJSONBody bounds JSON request bodies
const maxJSONBody = 1 << 20

// UploadPolicy limits banner uploads
type UploadPolicy struct {
	MaxFileSize  int64
	AllowedTypes []string
}

// DefaultUploadPolicy accepts JPEG, PNG, GIF and WEBP images up to 5 MiB
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxFileSize:  5 << 20,
		AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
	}
}

func (p UploadPolicy) allows(contentType string) bool {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return slices.Contains(p.AllowedTypes, strings.TrimSpace(strings.ToLower(contentType)))
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// decodeJSON decodes a JSON body of at most maxJSONBody bytes into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &simpleevents.ValidationError{Fields: []simpleevents.FieldError{
				{Field: "body", Rule: "max", Param: fmt.Sprintf("%d", maxJSONBody)},
			}}
		}
		return invalidField("body", "json")
	}
	return nil
}

// parseMultipart reads a multipart form whose total size is bounded by the
// policy's file limit plus room for the text fields.
func (p UploadPolicy) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, p.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return p.tooLarge()
		}
		return &simpleevents.ValidationError{Fields: []simpleevents.FieldError{{Field: "body", Rule: "multipart"}}}
	}
	return nil
}

// banner returns the uploaded banner, or nil when the form has none.
// The caller closes the returned file.
func (p UploadPolicy) banner(r *http.Request) (*simpleevents.BannerFile, multipart.File, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[bannerField]) == 0 {
		return nil, nil, nil
	}

	header := r.MultipartForm.File[bannerField][0]
	contentType := header.Header.Get("Content-Type")
	if !p.allows(contentType) {
		return nil, nil, &simpleevents.ValidationError{Fields: []simpleevents.FieldError{
			{Field: bannerField, Rule: "mimetype", Param: strings.Join(p.AllowedTypes, " ")},
		}}
	}
	if header.Size > p.MaxFileSize {
		return nil, nil, p.tooLarge()
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open uploaded banner: %w", err)
	}

	return &simpleevents.BannerFile{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, file, nil
}

func (p UploadPolicy) tooLarge() error {
	return &simpleevents.ValidationError{Fields: []simpleevents.FieldError{
		{Field: bannerField, Rule: "max", Param: fmt.Sprintf("%d", p.MaxFileSize)},
	}}
}
