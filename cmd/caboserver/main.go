package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/gene9831/cabo/internal/auth"
	"github.com/gene9831/cabo/internal/cache"
	"github.com/gene9831/cabo/internal/config"
	"github.com/gene9831/cabo/internal/database"
	"github.com/gene9831/cabo/internal/engine"
	"github.com/gene9831/cabo/internal/game"
	"github.com/gene9831/cabo/internal/lobby"
	"github.com/gene9831/cabo/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file, using process environment")
	}
	cfg := config.Load()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	ctx := context.Background()

	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			logrus.Fatalf("database: %v", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			logrus.Fatalf("database: %v", err)
		}
	} else {
		logrus.Warn("DATABASE_URL not set, running without snapshot persistence")
	}

	if cfg.RedisAddr != "" {
		if err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB); err != nil {
			logrus.Fatalf("cache: %v", err)
		}
		defer cache.Close()
	} else {
		logrus.Warn("REDIS_ADDR not set, running without the action historian")
	}

	authn, err := auth.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		logrus.Fatalf("auth: %v", err)
	}

	games := game.NewManager()
	lobbies := lobby.NewManager()
	server := ws.NewServer(authn, games, lobbies)
	server.GameRules = func() engine.Rules {
		rules := engine.DefaultRules()
		rules.ReadyDelay = cfg.ReadyDelay
		rules.SkillTimeout = cfg.SkillTimeout
		rules.EndScore = cfg.EndScore
		return rules
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("shutdown: %v", err)
	}
}
