/*
Package handler provides HTTP handler functions for anonymous device registration.

A device proves work on a server-issued nonce, then presents its install id. The first
registration creates a profile with the starting balance; later ones return the same
profile with a fresh token.
*/
package handler

import (
	"errors"
	"net/http"

	"speechquest/internal/app/profile"
	"speechquest/internal/pkg/auth/jwt"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/pow"
	"speechquest/internal/pkg/randx"
	"speechquest/internal/pkg/req"
	"speechquest/internal/pkg/resp"
)

// HandleChallenge issues a Proof-of-Work challenge for registration.
func HandleChallenge(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challenge, err := deps.Pow.Issue(r.Context())
		if err != nil {
			logx.Error(err, "failed to issue pow challenge")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		resp.RespondSuccess(w, r, challenge)
	}
}

type RegisterDeviceInput struct {
	DeviceID string `json:"deviceId" validate:"required"`
	Nonce    string `json:"nonce"`
	Counter  string `json:"counter"`
}

type RegisterDeviceOutput struct {
	Token   string       `json:"token"`
	Created bool         `json:"created"`
	Profile profile.View `json:"profile"`
}

// HandleRegisterDevice binds a device to a profile and returns its identity token.
func HandleRegisterDevice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterDeviceInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidDeviceID(input.DeviceID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if input.Nonce == "" || input.Counter == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}

		if err := deps.Pow.Verify(r.Context(), input.Nonce, input.Counter); err != nil {
			if errors.Is(err, pow.ErrNonceInvalid) || errors.Is(err, pow.ErrProofTooWeak) {
				logx.Warn("registration rejected: pow verification failed", "reason", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeInvalid))
				return
			}
			logx.Error(err, "pow verification error")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		p, created, err := deps.Profiles.Register(r.Context(), input.DeviceID)
		if err != nil {
			logx.Error(err, "failed to register device")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		payload := &jwt.Payload{
			ProfileID: p.ID,
			DeviceID:  p.DeviceID,
		}

		tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.DeviceIdentityExpiration)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, RegisterDeviceOutput{
			Token:   tokenString,
			Created: created,
			Profile: p.View(),
		})
	}
}
