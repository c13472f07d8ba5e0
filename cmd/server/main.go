package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/api"
	"github.com/tendant/image-saver/pkg/mediasaver/config"
)

type Config struct {
	ApiKeySHA256 string `env:"API_KEY_SHA256" env-default:""`
	EnvPrefix    string `env:"IMAGE_SAVER_ENV_PREFIX" env-default:""`
	LogLevel     string `env:"LOG_LEVEL" env-default:"info"`
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

const readyTimeout = 2 * time.Second

// buildHandler wires the configured service to the HTTP handler. The notice
// feed backs the notices endpoint; every notice is also logged.
func buildHandler(serverConfig *config.ServerConfig) (*api.Handler, mediasaver.Service, error) {
	feed := mediasaver.NewNoticeFeed(serverConfig.Saving.NoticeCapacity)
	svc, err := serverConfig.BuildService(
		mediasaver.WithNotifier(mediasaver.MultiNotifier{
			mediasaver.NewLogNotifier(slog.Default()),
			feed,
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	return api.NewHandler(svc, feed), svc, nil
}

// routesReady reports ready once the media index answers a query.
func routesReady(r chi.Router, svc mediasaver.Service) {
	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if _, err := svc.ListEntries(ctx, mediasaver.ListEntriesRequest{Limit: 1}); err != nil {
			slog.Warn("Media index not ready", "err", err)
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, http.StatusText(http.StatusServiceUnavailable))
			return
		}
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
}

// mountRoutes mounts the session API under /api/v1, behind auth when given.
func mountRoutes(r chi.Router, handler *api.Handler, auth func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if auth != nil {
				r.Use(auth)
			}
			r.Mount("/", handler.Routes())
		})
	})
}

func main() {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	serverConfig, err := config.Load(config.WithEnv(cfg.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	handler, svc, err := buildHandler(serverConfig)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	var auth func(http.Handler) http.Handler
	if cfg.ApiKeySHA256 != "" {
		auth, err = middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"key1": cfg.ApiKeySHA256,
			},
		})
		if err != nil {
			slog.Error("Failed initialize API Key middleware", "err", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("API_KEY_SHA256 not set, the API is unauthenticated")
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	routesReady(server.R, svc)

	mountRoutes(server.R, handler, auth)

	slog.Info("Image saver starting",
		"environment", server.Config.AppEnv,
		"port", server.Config.Port,
		"api_level", serverConfig.Platform.APILevel,
		"database", serverConfig.Database.Kind(),
		"default_backend", serverConfig.Storage.Default,
		"backends", len(serverConfig.Storage.Backends),
	)
	server.Run()
}
