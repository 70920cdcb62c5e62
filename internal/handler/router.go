/*
Package handler provides the HTTP handlers and routing setup for the SpeechQuest server.

This file defines the main Router, applying logging, CORS, metrics and per-client rate
limiting before delegating requests to the API and WebSocket handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"speechquest/internal/pkg/auth/jwt"
	"speechquest/internal/pkg/limiter"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/metrics"
)

const (
	RegisterRate  = 0.2
	RegisterBurst = 5
)

// Limiters are the rate limiters the router installs. Stop them on shutdown.
type Limiters struct {
	Register *limiter.RateLimiter
	Speech   *limiter.RateLimiter
}

// NewLimiters builds the registration limiter and the speech limiter from config.
func NewLimiters(deps *AppDeps) *Limiters {
	return &Limiters{
		Register: limiter.New("register", rate.Limit(RegisterRate), RegisterBurst, nil),
		Speech:   limiter.New("speech", rate.Limit(deps.Config.RateLimitRPS), deps.Config.RateLimitBurst, nil),
	}
}

// Stop halts the limiters' sweepers.
func (l *Limiters) Stop() {
	l.Register.Stop()
	l.Speech.Stop()
}

// Router sets up the main HTTP routing table.
func Router(deps *AppDeps, limits *Limiters) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// native clients send no Origin
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth())
	r.Get("/health/speech", HandleSpeechHealth(deps))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/device", func(device chi.Router) {
			device.Use(limits.Register.Middleware)
			device.Post("/challenge", HandleChallenge(deps))
			device.Post("/register", HandleRegisterDevice(deps))
		})

		api.Get("/theme", HandleGetTheme())

		api.Group(func(authed chi.Router) {
			authed.Use(jwt.RequireIdentity)

			authed.Get("/profile", HandleGetProfile(deps))

			authed.Route("/onboarding", func(ob chi.Router) {
				ob.Get("/", HandleGetOnboarding(deps))
				ob.With(limits.Speech.Middleware).Post("/voice-sample", HandleVoiceSample(deps))
				if deps.Config.IsDevelopment() {
					ob.Delete("/", HandleResetOnboarding(deps))
				}
			})

			authed.Route("/shop", func(shop chi.Router) {
				shop.Get("/items", HandleListItems(deps))
				shop.Post("/purchase", HandlePurchase(deps))
			})

			authed.Route("/avatar", func(avatar chi.Router) {
				avatar.Get("/", HandleGetAvatar(deps))
				avatar.Post("/equip", HandleEquip(deps))
				avatar.Post("/unequip", HandleUnequip(deps))
			})

			authed.Route("/missions", func(missions chi.Router) {
				missions.Get("/", HandleListMissions(deps))
				missions.Route("/{planet}", func(m chi.Router) {
					m.With(limits.Speech.Middleware).Post("/prompt", HandlePrompt(deps))
					m.With(limits.Speech.Middleware).Post("/attempts", HandleAttempt(deps))
					m.Post("/complete", HandleComplete(deps))
				})
			})

			authed.Get("/recordings/download", HandleDownloadRecording(deps))
		})
	})

	r.Group(func(ws chi.Router) {
		ws.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))
		ws.Use(jwt.RequireIdentity)
		ws.Use(limits.Speech.Middleware)
		ws.Get("/ws/session", HandleWebSocket(wsUpgrader, deps))
	})

	return r
}
