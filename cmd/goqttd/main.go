package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgebroker/goqttd/internal/auth"
	"github.com/edgebroker/goqttd/internal/auth/dictionary"
	"github.com/edgebroker/goqttd/internal/config"
	"github.com/edgebroker/goqttd/internal/hooks"
	"github.com/edgebroker/goqttd/internal/logger"
	"github.com/edgebroker/goqttd/internal/server"
)

func gracefulShutdown(b *server.Broker, cancel context.CancelFunc, done chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Println("graceful shutdown triggered")

	defer cancel()
	if err := b.Stop(); err != nil {
		log.Println(err)
	}
	time.Sleep(1 * time.Second)

	close(done)
}

func main() {
	configPath := flag.String("config", "config.yml", "path to the broker's YAML configuration")
	dbPath := flag.String("auth-db", "", "path to the sqlite dictionary auth database (anonymous access if empty)")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid default config: %v", err)
	}

	lg := logger.New(logger.ProductionConfig())

	var provider auth.Provider = auth.AllowAll{}
	if *dbPath != "" {
		store, err := dictionary.Open(*dbPath)
		if err != nil {
			lg.Fatal("failed to open dictionary auth store", logger.ErrorAttr(err))
		}
		defer store.Close()
		provider = store
	}

	done := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())

	b := server.New(cfg, lg, provider, hooks.Hook{})
	if err := b.Start(ctx); err != nil {
		lg.Fatal("server failed to start", logger.ErrorAttr(err))
	}
	lg.Info("broker listening", logger.String("bind_addr", cfg.BindAddr), logger.Int("port", cfg.Port))

	go gracefulShutdown(b, cancel, done)

	<-done
	lg.Info("graceful shutdown complete")
}
