/*
Package main is the entry point for the SpeechQuest server.

It loads configuration, initializes logging, connects Postgres, Redis and the optional
recording archive, wires the speech client and the game services, serves HTTP and
WebSocket traffic, and shuts down gracefully on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speechquest/internal/app/db"
	"speechquest/internal/app/kv"
	"speechquest/internal/app/live"
	"speechquest/internal/app/mission"
	"speechquest/internal/app/onboarding"
	"speechquest/internal/app/profile"
	"speechquest/internal/app/shop"
	"speechquest/internal/app/speech"
	"speechquest/internal/app/storage"
	"speechquest/internal/configs"
	"speechquest/internal/handler"
	"speechquest/internal/pkg/logx"
	"speechquest/internal/pkg/pow"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Str("speech_base_url", cfg.SpeechBaseURL).
		Bool("archive_enabled", cfg.ArchiveEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}
	defer pool.Close()

	rdb, err := kv.Connect(ctx, kv.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logx.Fatal(err, "Failed to connect to redis")
	}
	defer rdb.Close()

	var archive storage.Archive
	if cfg.ArchiveEnabled() {
		archive, err = storage.NewArchive(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize recording archive")
		}
	}

	speechClient := speech.NewClient(speech.Config{
		BaseURL: cfg.SpeechBaseURL,
		Timeout: cfg.SpeechTimeout,
	}, logx.Component("speech"))

	repo := db.NewProfileStore(pool)
	onboardingStore := onboarding.NewStore(rdb)

	deps := &handler.AppDeps{
		Config:     cfg,
		Profiles:   profile.NewRegistry(repo, cfg.StartingPoints),
		Shop:       shop.NewService(repo),
		Onboarding: onboardingStore,
		Speech:     speechClient,
		Pow:        pow.NewManager(rdb, cfg.PowDifficulty),
		Live:       live.NewManager(),
		Archive:    archive,
		Missions: mission.NewService(mission.ServiceConfig{
			Repo:        repo,
			Speech:      speechClient,
			Prompts:     speech.NewCachedSynthesizer(speechClient, rdb, cfg.PromptCacheTTL, logx.Component("prompt_cache")),
			Reference:   speechClient,
			Voices:      onboardingStore,
			Archive:     archive,
			TempDir:     cfg.TempDir,
			MaxDuration: cfg.MaxRecordingDuration,
			Reward:      cfg.MissionReward,
			Logger:      logx.Component("mission"),
		}),
	}

	// Setup HTTP server and routes
	limits := handler.NewLimiters(deps)
	defer limits.Stop()

	router := handler.Router(deps, limits)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// an attempt synthesizes the reference clip and then waits for the analysis
		WriteTimeout: 2*cfg.SpeechTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("SpeechQuest Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	// live sockets are hijacked and invisible to Shutdown
	deps.Live.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.SpeechTimeout+5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
