package handler

import (
	"net/http"

	"speechquest/internal/app/onboarding"
	"speechquest/internal/app/profile"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/resp"
)

// Theme is the app's static palette.
type Theme struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	Button     string `json:"button"`
}

var defaultTheme = Theme{
	Background: "#160b20",
	Text:       "#fff",
	Button:     "#60359c",
}

type ProfileOutput struct {
	profile.View
	Onboarding   onboarding.State `json:"onboarding"`
	InitialRoute onboarding.Route `json:"initialRoute"`
}

// HandleGetProfile returns the learner's state and the screen the app should open on.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		state, err := deps.Onboarding.Load(r.Context(), p.ID)
		if err != nil {
			// a storage error sends the learner through onboarding again
			logx.FromContext(r.Context()).Warn().Err(err).Msg("Failed to load onboarding state")
			state = onboarding.State{}
		}

		resp.RespondSuccess(w, r, ProfileOutput{
			View:         p.View(),
			Onboarding:   state,
			InitialRoute: onboarding.InitialRoute(state),
		})
	}
}

// HandleGetTheme returns the static palette.
func HandleGetTheme() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, defaultTheme)
	}
}
