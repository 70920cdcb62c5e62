package handler

import (
	"net/http"

	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/resp"
)

// HandleHealth reports that the server is up.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logx.Debug("Health check endpoint hit")

		data := map[string]string{
			"status":  "ok",
			"service": "SpeechQuest Server",
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleSpeechHealth proxies the speech service liveness probe.
func HandleSpeechHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := deps.Speech.Health(r.Context())
		if err != nil {
			logx.FromContext(r.Context()).Warn().Err(err).Msg("Speech service health check failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrSpeechServiceFailed))
			return
		}
		resp.RespondSuccess(w, r, status)
	}
}
