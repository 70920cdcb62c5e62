/*
Package req provides helper functions for HTTP request parsing and data binding.

It parses JSON bodies and multipart audio uploads, validates bound structs and
enforces size limits before the business logic sees any data.
*/
package req

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator"

	"speechquest/internal/pkg/errs"
)

const (
	// MaxFormMemory is the memory ParseMultipartForm may use before spilling files to disk.
	MaxFormMemory int64 = 8 << 20 // 8 MB

	// MaxRequestFileSize caps the whole request body, audio included.
	MaxRequestFileSize int64 = 20 << 20 // 20 MB
)

var validate = validator.New()

// allowedAudioExt lists the containers the speech service accepts.
var allowedAudioExt = map[string]string{
	".m4a":  "audio/m4a",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
}

// BindJSON decodes the request body into dst and runs struct validation.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	if err := validate.Struct(dst); err != nil {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}

// SetupMultipart parses multipart or URL-encoded form data under the size cap.
func SetupMultipart(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestFileSize)

	err := r.ParseMultipartForm(MaxFormMemory)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}

		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}

// AudioUpload is a recording received over multipart.
type AudioUpload struct {
	File        multipart.File
	Filename    string
	ContentType string
	Size        int64
}

// Close releases the underlying form file.
func (a *AudioUpload) Close() error {
	if a == nil || a.File == nil {
		return nil
	}
	return a.File.Close()
}

// Reader exposes the upload as a plain reader.
func (a *AudioUpload) Reader() io.Reader { return a.File }

// FormAudio extracts the audio part named field after SetupMultipart has run.
// The caller owns the returned upload and must Close it.
func FormAudio(r *http.Request, field string) (*AudioUpload, *errs.CustomError) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errs.NewError(errs.ErrRecordingUnavailable)
		}
		return nil, errs.NewError(errs.ErrFormParseFailed)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mimeType, ok := allowedAudioExt[ext]
	if !ok {
		_ = file.Close()
		return nil, errs.NewError(errs.ErrUnsupportedAudio)
	}

	if header.Size == 0 {
		_ = file.Close()
		return nil, errs.NewError(errs.ErrRecordingUnavailable)
	}

	return &AudioUpload{
		File:        file,
		Filename:    header.Filename,
		ContentType: mimeType,
		Size:        header.Size,
	}, nil
}

// AudioExtAllowed reports whether name has an accepted audio extension.
func AudioExtAllowed(name string) bool {
	_, ok := allowedAudioExt[strings.ToLower(filepath.Ext(name))]
	return ok
}
