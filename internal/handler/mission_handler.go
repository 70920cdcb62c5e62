/*
Package handler provides HTTP handler functions for planet missions.

Prompt audio is synthesized per learner. Attempts are uploaded as one multipart
recording and analyzed synchronously; the live variant runs over /ws/session.
*/
package handler

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"speechquest/internal/app/mission"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/req"
	"speechquest/internal/pkg/resp"
)

// RecordingField is the multipart part carrying a mission attempt.
const RecordingField = "recorded_audio"

type PlanetOutput struct {
	mission.Planet
	Completed bool `json:"completed"`
	Ready     bool `json:"ready"`
}

func planetParam(r *http.Request) (int, *errs.CustomError) {
	n, err := strconv.Atoi(chi.URLParam(r, "planet"))
	if err != nil {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	if _, err := mission.LookupPlanet(n); err != nil {
		return 0, errs.NewError(errs.ErrPlanetNotFound)
	}
	return n, nil
}

// HandleListMissions returns the planets with the learner's progress.
func HandleListMissions(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		completed := p.CompletedPlanets()
		planets := mission.Planets()
		out := make([]PlanetOutput, 0, len(planets))
		for _, pl := range planets {
			out = append(out, PlanetOutput{
				Planet:    pl,
				Completed: slices.Contains(completed, pl.Number),
				Ready:     p.HasAnalyzed(pl.Number),
			})
		}
		resp.RespondSuccess(w, r, out)
	}
}

// HandlePrompt streams the planet's prompt audio.
func HandlePrompt(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		planet, customErr := planetParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		audio, err := deps.Missions.Prompt(r.Context(), p, planet)
		if err != nil {
			respondDomainErr(w, r, err)
			return
		}

		resp.RespondAudio(w, r, audio.ContentType, audio.Data)
	}
}

// HandleAttempt analyzes an uploaded recording against the planet's reference.
func HandleAttempt(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		planet, customErr := planetParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		upload, customErr := req.FormAudio(r, RecordingField)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		defer upload.Close()

		snap, err := deps.Missions.Attempt(r.Context(), p, planet, upload.Reader(), uploadFormat(upload.Filename))
		if err != nil {
			respondDomainErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, snap)
	}
}

// HandleComplete finishes a planet after an analyzed attempt.
func HandleComplete(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		planet, customErr := planetParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		result, err := deps.Missions.Complete(r.Context(), p, planet)
		if err != nil {
			respondDomainErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, result)
	}
}
