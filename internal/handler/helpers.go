package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"speechquest/internal/app/apperr"
	"speechquest/internal/app/profile"
	"speechquest/internal/pkg/auth/jwt"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/resp"
)

// respondDomainErr translates a domain error and writes it.
func respondDomainErr(w http.ResponseWriter, r *http.Request, err error) {
	resp.RespondError(w, r, apperr.ToCustom(err))
}

// currentProfile resolves the profile of the authenticated device. It writes the error
// response itself and returns nil when there is none.
func currentProfile(deps *AppDeps, w http.ResponseWriter, r *http.Request) *profile.Profile {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return nil
	}

	p, err := deps.Profiles.Get(r.Context(), payload.ProfileID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			logx.FromContext(r.Context()).Warn().Str("profile_id", payload.ProfileID).Msg("Token refers to unknown profile")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return nil
		}
		respondDomainErr(w, r, err)
		return nil
	}
	return p
}

// uploadFormat derives the recorder format from an uploaded filename.
func uploadFormat(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
