/*
Package resp provides helper functions for constructing and sending standardized HTTP responses.

Every JSON reply carries a business code, a message and optional data. Synthesized
speech is streamed back as raw audio.
*/
package resp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
)

// JSONResponse defines the standardized JSON response structure returned to clients.
type JSONResponse struct {
	// Code is the business status code (0 for success, see errs package otherwise).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the Content-Type and sends the JSON payload.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.FromContext(r.Context()).Error().
			Err(err).
			Int("http_status", httpStatus).
			Msg("Error encoding JSON response")

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	_, _ = w.Write(response)
}

// RespondSuccess sends a successful HTTP response (HTTP 200 OK).
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondError sends an HTTP response containing custom error information.
// Server-side failures log their cause; the client only sees the message.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if cause := customErr.Cause(); cause != nil && customErr.Status >= http.StatusInternalServerError {
		logx.FromContext(r.Context()).Error().
			Err(cause).
			Int("code", customErr.Code).
			Msg("Request failed")
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

// RespondErr maps err onto the envelope: custom errors pass through, anything else
// becomes ErrUnknown and is logged.
func RespondErr(w http.ResponseWriter, r *http.Request, err error) {
	if customErr, ok := errs.AsCustom(err); ok {
		RespondError(w, r, customErr)
		return
	}
	RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
}

// RespondAudio streams a synthesized clip back to the client.
func RespondAudio(w http.ResponseWriter, r *http.Request, contentType string, audio []byte) {
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(audio); err != nil {
		logx.FromContext(r.Context()).Warn().Err(err).Msg("Client went away while streaming audio")
	}
}
