/*
Package handler provides the HTTP handler for live recording sessions.

HandleWebSocket validates the session parameters, upgrades the connection, binds a new
recording session to it and hands both to the live manager.
*/
package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"speechquest/internal/app/live"
	"speechquest/internal/app/mission"
	"speechquest/internal/app/recorder"
	"speechquest/internal/pkg/errs"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/resp"
)

// HandleWebSocket upgrades /ws/session?kind=mission&planet=N or ?kind=onboarding.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := currentProfile(deps, w, r)
		if p == nil {
			return
		}

		query := r.URL.Query()
		opts := mission.SessionOptions{Kind: mission.Kind(query.Get("kind"))}

		switch opts.Kind {
		case mission.KindMission:
			planet, err := strconv.Atoi(query.Get("planet"))
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			if _, err := mission.LookupPlanet(planet); err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrPlanetNotFound))
				return
			}
			opts.Planet = planet
		case mission.KindOnboarding:
		default:
			logx.Warn("WebSocket request rejected: unknown session kind", "kind", string(opts.Kind))
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		mic := recorder.NewStreamMicrophone(deps.Config.TempDir)
		client := live.NewClient(conn, p.ID, mic)

		opts.Microphone = mic
		opts.Observer = client.PushState

		session, err := deps.Missions.NewSession(p, opts)
		if err != nil {
			logx.Error(err, "Failed to create recording session", "profile_id", p.ID)
			_ = conn.Close()
			return
		}
		client.Attach(session)

		deps.Live.Register(client)

		go client.WritePump()

		logx.Info("Live session established", "profile_id", p.ID, "session_id", session.ID(), "kind", string(opts.Kind))

		client.ReadPump()
	}
}
