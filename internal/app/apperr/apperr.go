/*
Package apperr translates domain errors into business error codes for the HTTP and
WebSocket surfaces.
*/
package apperr

import (
	"context"
	"errors"

	"speechquest/internal/app/mission"
	"speechquest/internal/app/profile"
	"speechquest/internal/app/recorder"
	"speechquest/internal/app/shop"
	"speechquest/internal/app/speech"
	"speechquest/internal/pkg/errs"
)

var sentinels = []struct {
	err  error
	code int
}{
	{shop.ErrItemNotFound, errs.ErrItemNotFound},
	{shop.ErrAlreadyPurchased, errs.ErrItemAlreadyPurchased},
	{profile.ErrNotFound, errs.ErrProfileNotFound},
	{recorder.ErrPermissionDenied, errs.ErrPermissionDenied},
	{recorder.ErrRecordingUnavailable, errs.ErrRecordingUnavailable},
	{recorder.ErrCaptureTooLarge, errs.ErrRequestEntityTooLarge},
	{mission.ErrSessionBusy, errs.ErrRecordingInProgress},
	{mission.ErrInvalidTransition, errs.ErrInvalidSessionState},
	{mission.ErrSessionClosed, errs.ErrInvalidSessionState},
	{mission.ErrNoReference, errs.ErrInvalidSessionState},
	{mission.ErrUnknownPlanet, errs.ErrPlanetNotFound},
	{mission.ErrNotAnalyzed, errs.ErrMissionNotReady},
	{speech.ErrMalformedResponse, errs.ErrSpeechMalformedResponse},
	{context.DeadlineExceeded, errs.ErrSpeechServiceFailed},
}

// ToCustom maps err onto a *errs.CustomError carrying err as its cause. Unrecognized
// errors become ErrUnknown.
func ToCustom(err error) *errs.CustomError {
	if err == nil {
		return nil
	}
	if customErr, ok := errs.AsCustom(err); ok {
		return customErr
	}

	var short *shop.InsufficientPointsError
	if errors.As(err, &short) {
		return errs.NewError(errs.ErrInsufficientPoints, short.Shortfall, short.Item.Name).WithCause(err)
	}
	if shop.IsNotOwned(err) {
		return errs.NewError(errs.ErrItemNotOwned).WithCause(err)
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return errs.NewError(s.code).WithCause(err)
		}
	}

	var svcErr *speech.ServiceError
	if errors.As(err, &svcErr) {
		return errs.NewError(errs.ErrSpeechServiceFailed).WithCause(err)
	}

	return errs.NewError(errs.ErrUnknown, err)
}
