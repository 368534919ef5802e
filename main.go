package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GScarabel/djvirtu/backend"
	"github.com/GScarabel/djvirtu/config"
	"github.com/GScarabel/djvirtu/content"
	"github.com/GScarabel/djvirtu/geo"
	"github.com/GScarabel/djvirtu/preload"
	"github.com/GScarabel/djvirtu/server"
	"github.com/GScarabel/djvirtu/session"
	"github.com/GScarabel/djvirtu/site"
	"github.com/GScarabel/djvirtu/templatex"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to configuration file")
	buildFlag := flag.Bool("build", false, "force static build mode")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	if *buildFlag {
		cfg.Live = false
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting", "live", cfg.Live, "backendConfigured", cfg.Backend.Configured())

	templates, err := templatex.Load(cfg.TemplateDir)
	if err != nil {
		logger.Error("templates", "error", err)
		os.Exit(1)
	}

	client := backend.NewClient(cfg, USER_AGENT)
	storage := backend.NewStorage(cfg, USER_AGENT)
	auth := backend.NewAuth(cfg, USER_AGENT)
	store := content.NewStore(client, storage, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pre := preload.New(cfg, store, logger, USER_AGENT)
	svc := site.NewService(cfg, store, pre, templates, logger)
	pre.Readiness = svc.Warm

	// not live mode, live=false or run with --build flag
	if !cfg.Live {
		if err := svc.BuildStatic(ctx); err != nil {
			logger.Error("build", "error", err)
			os.Exit(1)
		}
		logger.Info("static build completed", "output", cfg.OutputDir)
		return
	}

	sessionStore, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("session store", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(cfg, sessionStore, auth)

	go pre.Run(ctx)

	srv := server.New(cfg, server.Deps{
		Site:     svc,
		Store:    store,
		Storage:  storage,
		Sessions: sessions,
		Geo:      geo.NewClient(cfg, USER_AGENT),
		Preload:  pre,
	}, logger, SERVER_SIGNATURE)
	if err := srv.Start(ctx); err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, error) {
	if cfg.Session.UseRedis() {
		logger.Info("using redis session store", "addr", cfg.Session.RedisAddr)
		return session.NewRedisStore(ctx, cfg)
	}
	logger.Info("using in-memory session store")
	return session.NewMemoryStore(), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
