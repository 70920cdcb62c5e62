package handler

import (
	"errors"
	"net/http"

	"speechquest/internal/app/storage"
	"speechquest/internal/pkg/auth/jwt"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/resp"
)

// HandleDownloadRecording redirects to a time-limited URL for an archived clip,
// scoped to the caller's own recordings.
func HandleDownloadRecording(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.Archive == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !storage.OwnedBy(payload.ProfileID, fileKey) {
			logx.Warn("recording download rejected: key outside caller prefix", "profile_id", payload.ProfileID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if _, err := deps.Archive.Stat(r.Context(), fileKey); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrRecordingUnavailable))
				return
			}
			logx.Error(err, "failed to stat archived recording", "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		url, err := deps.Archive.PresignDownload(r.Context(), fileKey, storage.DownloadURLDuration)
		if err != nil {
			logx.Error(err, "failed to presign recording download", "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
