package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"telehealth-calls/internal/audit"
	"telehealth-calls/internal/calls"
	"telehealth-calls/internal/config"
	"telehealth-calls/internal/video"
	"telehealth-calls/pkg/utils"

	"github.com/rs/cors"
)

// bootstrapSchema creates the call and audit tables in one transaction.
func bootstrapSchema(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := calls.EnsureSchema(ctx, tx); err != nil {
			return fmt.Errorf("calls schema: %w", err)
		}
		if err := audit.EnsureSchema(ctx, tx); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
		return nil
	})
}

func buildProvider(cfg config.VideoConfig) (video.RoomProvider, error) {
	switch cfg.Provider {
	case config.ProviderLiveKit:
		p, err := video.NewLiveKitProvider(cfg.LiveKitHost, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitJoinURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderDaily:
		p, err := video.NewDailyProvider(cfg.DailyBaseURL, cfg.DailyAPIKey, &http.Client{Timeout: cfg.CreateTimeout + 5*time.Second})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown video provider %q", cfg.Provider)
	}
}

// corsHandler lets the browser client on another origin call the API with a bearer token.
// With no configured origins every origin is allowed outside production, and
// none in production.
func corsHandler(cfg config.Config, next http.Handler) http.Handler {
	origins := cfg.HTTP.CORSOrigins
	if len(origins) == 0 {
		if cfg.IsProduction() {
			return next
		}
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         600,
	}).Handler(next)
}

// newHTTPServer closes streamsDone when Shutdown starts so long-lived
// call-event streams end instead of holding Shutdown until its deadline.
// There is no WriteTimeout for the same streams.
func newHTTPServer(addr string, h http.Handler, streamsDone chan struct{}) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	var once sync.Once
	srv.RegisterOnShutdown(func() {
		once.Do(func() { close(streamsDone) })
	})
	return srv
}
