/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its user message and HTTP status.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Shop and Avatar Errors
	ErrItemNotFound:         {Code: ErrItemNotFound, Message: "Item not found.", Status: http.StatusNotFound},
	ErrItemAlreadyPurchased: {Code: ErrItemAlreadyPurchased, Message: "You have already purchased this item!"},
	ErrInsufficientPoints:   {Code: ErrInsufficientPoints, Message: "You need %d more points to buy %s."},
	ErrItemNotOwned:         {Code: ErrItemNotOwned, Message: "Buy this item in the shop first."},

	// 3xxx: Profile, Session, and Security Errors
	ErrPowChallengeRequired: {Code: ErrPowChallengeRequired, Message: "Verification required. Please try again."},
	ErrPowChallengeInvalid:  {Code: ErrPowChallengeInvalid, Message: "Verification failed. Please try again."},
	ErrSessionKicked:        {Code: ErrSessionKicked, Message: "This mission was opened on another screen."},
	ErrUnauthorized:         {Code: ErrUnauthorized, Message: "Please register this device to continue.", Status: http.StatusUnauthorized},
	ErrProfileNotFound:      {Code: ErrProfileNotFound, Message: "Profile not found.", Status: http.StatusNotFound},

	// 4xxx: Recording and Speech Errors
	ErrPermissionDenied:        {Code: ErrPermissionDenied, Message: "Permission to access microphone was denied."},
	ErrRecordingUnavailable:    {Code: ErrRecordingUnavailable, Message: "No audio was recorded. Please try again."},
	ErrRecordingInProgress:     {Code: ErrRecordingInProgress, Message: "A recording is already in progress.", Status: http.StatusConflict},
	ErrInvalidSessionState:     {Code: ErrInvalidSessionState, Message: "That action is not available right now.", Status: http.StatusConflict},
	ErrSpeechServiceFailed:     {Code: ErrSpeechServiceFailed, Message: "Failed to analyze recording. Please try again.", Status: http.StatusBadGateway},
	ErrSpeechMalformedResponse: {Code: ErrSpeechMalformedResponse, Message: "Failed to analyze recording. Please try again.", Status: http.StatusBadGateway},
	ErrUnsupportedAudio:        {Code: ErrUnsupportedAudio, Message: "Unsupported audio format.", Status: http.StatusBadRequest},
	ErrPlanetNotFound:          {Code: ErrPlanetNotFound, Message: "This planet is not available yet.", Status: http.StatusNotFound},
	ErrMissionNotReady:         {Code: ErrMissionNotReady, Message: "Finish a recording before completing the mission.", Status: http.StatusConflict},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
