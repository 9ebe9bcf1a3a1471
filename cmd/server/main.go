// blocknote server: block-structured notes with per-user auth, search, and
// tags over an (optionally encrypted) SQLite store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blocknote-app/blocknote/internal/api"
	"github.com/blocknote-app/blocknote/internal/auth"
	"github.com/blocknote-app/blocknote/internal/config"
	"github.com/blocknote-app/blocknote/internal/db"
	"github.com/blocknote-app/blocknote/internal/notes"
	"github.com/blocknote-app/blocknote/internal/obs"
	"github.com/blocknote-app/blocknote/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	addr := config.ParseFlags()
	obs.Init()
	log := obs.Pkg("main")

	cfg, err := config.LoadConfig(addr)
	if err != nil {
		log.Error("configuration invalid", "err", err)
		os.Exit(1)
	}
	cfg.PrintStartupSummary()

	store, err := db.Open(cfg.DatabasePath, cfg.DatabaseKey)
	if err != nil {
		log.Error("open database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	users := auth.NewUserService(store)
	sessions := auth.NewSessionService(store, cfg.SessionDuration)
	tokens := auth.NewTokenService([]byte(cfg.TokenSecret), cfg.TokenDuration)
	notesSvc := notes.NewService(store)

	authMW := auth.NewMiddleware(sessions, tokens)
	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	handler := api.NewHandler(notesSvc, users, sessions, tokens)
	handler.SetCookiePolicy(cfg.RequireSecureCookies(), cfg.SessionDuration)

	mux := http.NewServeMux()
	protected := handler.RegisterRoutes(mux)
	mux.Handle("/api/notes", authMW.RequireAuth(protected))
	mux.Handle("/api/notes/", authMW.RequireAuth(protected))
	mux.Handle("/api/tags", authMW.RequireAuth(protected))

	var root http.Handler = mux
	root = ratelimit.Middleware(limiter, authMW.UserIDFromRequest, root)
	root = obs.AccessLogMiddleware("http", root)
	root = obs.RequestContextMiddleware(root)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Expired sessions accumulate without an occasional purge.
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()
	go purgeSessionsLoop(purgeCtx, sessions)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}
}

func purgeSessionsLoop(ctx context.Context, sessions *auth.SessionService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.PurgeExpired(ctx); err != nil {
				obs.Pkg("main").Warn("purge expired sessions", "err", err)
			}
		}
	}
}
