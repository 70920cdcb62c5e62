package handler

import (
	"context"

	"speechquest/internal/app/live"
	"speechquest/internal/app/mission"
	"speechquest/internal/app/onboarding"
	"speechquest/internal/app/profile"
	"speechquest/internal/app/shop"
	"speechquest/internal/app/speech"
	"speechquest/internal/app/storage"
	"speechquest/internal/configs"
	"speechquest/internal/pkg/pow"
)

// SpeechProbe reports the remote speech service's liveness.
type SpeechProbe interface {
	Health(ctx context.Context) (speech.HealthStatus, error)
}

type AppDeps struct {
	Config     *configs.AppConfig
	Profiles   *profile.Registry
	Shop       *shop.Service
	Missions   *mission.Service
	Onboarding *onboarding.Store
	Speech     SpeechProbe
	Pow        *pow.Manager
	Live       *live.Manager

	// Archive is nil when recordings are not archived.
	Archive storage.Archive
}
