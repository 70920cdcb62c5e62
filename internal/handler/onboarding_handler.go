package handler

import (
	"net/http"

	"speechquest/internal/app/onboarding"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/req"
	"speechquest/internal/pkg/resp"
)

// VoiceSampleField is the multipart part carrying the onboarding voice sample.
const VoiceSampleField = "audio_file"

type OnboardingOutput struct {
	onboarding.State
	InitialRoute onboarding.Route `json:"initialRoute"`
}

// HandleGetOnboarding returns the onboarding flag and cloned voice id.
func HandleGetOnboarding(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		state, err := deps.Onboarding.Load(r.Context(), p.ID)
		if err != nil {
			logx.Error(err, "failed to load onboarding state", "profile_id", p.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, OnboardingOutput{State: state, InitialRoute: onboarding.InitialRoute(state)})
	}
}

// HandleResetOnboarding clears the onboarding state. Mounted in development only.
func HandleResetOnboarding(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		if err := deps.Onboarding.Clear(r.Context(), p.ID); err != nil {
			logx.Error(err, "failed to clear onboarding state", "profile_id", p.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Onboarding state cleared", "profile_id", p.ID)
		resp.RespondSuccess(w, r, OnboardingOutput{InitialRoute: onboarding.RouteOnboarding})
	}
}

// HandleVoiceSample clones the learner's voice from an uploaded sample.
// Optional form fields name and description label the clone.
func HandleVoiceSample(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		upload, customErr := req.FormAudio(r, VoiceSampleField)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		defer upload.Close()

		snap, err := deps.Missions.RegisterVoiceSample(
			r.Context(), p,
			upload.Reader(), uploadFormat(upload.Filename),
			r.FormValue("name"), r.FormValue("description"),
		)
		if err != nil {
			respondDomainErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, snap)
	}
}
