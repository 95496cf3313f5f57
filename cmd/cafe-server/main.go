package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cafe-system/internal/api"
	"cafe-system/internal/cafeinfo"
	"cafe-system/internal/catalog"
	"cafe-system/internal/config"
	"cafe-system/internal/directory"
	"cafe-system/internal/discovery"
	"cafe-system/internal/gateway"
	"cafe-system/internal/hub"
	"cafe-system/internal/lifecycle"
	"cafe-system/internal/logger"
	"cafe-system/internal/notify"
	"cafe-system/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional, defaults apply)")
	port := flag.Int("port", 0, "override the configured HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := os.MkdirAll(cfg.Data.UploadsDir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var snap store.Snapshotter
	switch cfg.Snapshot.Backend {
	case "postgres":
		pg := cfg.Snapshot.Postgres
		pgSnap, err := store.NewPGSnapshotter(ctx, pg.Host, pg.Port, pg.User, pg.Password, pg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgSnap.Close()
		snap = pgSnap
	default:
		fileSnap, err := store.NewFileSnapshotter(cfg.Data.Dir)
		if err != nil {
			return err
		}
		snap = fileSnap
	}

	orders := store.New(snap, log.Named("store"))
	if err := orders.Load(ctx); err != nil {
		return err
	}

	cat, err := catalog.Open(cfg.Data.Dir, log.Named("catalog"))
	if err != nil {
		return err
	}
	users, err := directory.Open(cfg.Data.Dir, cfg.Auth.Secret, cfg.Auth.TokenTTL, log.Named("directory"))
	if err != nil {
		return err
	}
	info, err := cafeinfo.Open(cfg.Data.Dir)
	if err != nil {
		return err
	}

	h := hub.New(cfg.Hub.Buffer, log.Named("hub"))
	core := lifecycle.New(orders, h, cat, log.Named("lifecycle"))
	gw := gateway.New(core, h, log.Named("gateway"))

	if cfg.Rabbit.Enabled {
		bridge, err := notify.Dial(cfg.Rabbit.Host, cfg.Rabbit.Port, cfg.Rabbit.User, cfg.Rabbit.Password, log.Named("notify"))
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer bridge.Close()
		go bridge.Run(ctx, h.Subscribe())
		log.Info("rabbitmq notification bridge enabled", zap.String("host", cfg.Rabbit.Host))
	}

	if cfg.Discovery.Enabled {
		resp := discovery.New(cfg.Discovery.Port, cfg.Server.Port, cfg.Server.Name, log.Named("discovery"))
		go func() {
			if err := resp.Run(ctx); err != nil {
				log.Error("discovery responder stopped", zap.Error(err))
			}
		}()
	}

	a := api.New(core, gw, cat, users, info, cfg.Data.UploadsDir, log.Named("api"))
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr), zap.String("snapshot", cfg.Snapshot.Backend))
	return api.NewServer(addr, a.Router()).Run(ctx)
}
