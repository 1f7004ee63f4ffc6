package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"linkpage/internal/config"
	"linkpage/internal/engine"
	"linkpage/internal/event"
	"linkpage/internal/metrics"
	"linkpage/internal/relay"
	"linkpage/internal/resolver"
	"linkpage/internal/server"
	"linkpage/internal/validation"
)

func main() {
	cfg := config.Load()

	yamlCfg, err := config.LoadYAMLConfig()
	if err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	metrics.Init()

	// Assemble the relay set: RELAY_URLS entries serve both roles, config
	// file entries carry explicit read/write roles.
	poolCfg := relay.Config{
		URLs:   cfg.RelayList(),
		Logger: logger,
	}
	if yamlCfg != nil {
		validation.AddReservedSlugs(yamlCfg.ReservedSlugs...)
		for _, rc := range yamlCfg.Relays {
			read, write := rc.Roles()
			poolCfg.Relays = append(poolCfg.Relays, relay.Endpoint{URL: rc.URL, Read: read, Write: write})
		}
	}
	pool, err := relay.NewPool(poolCfg)
	if err != nil {
		log.Fatalf("Failed to build relay pool: %v", err)
	}
	defer pool.Close()

	res := resolver.New(resolver.Config{
		Gateway:          pool,
		IdentityDomain:   cfg.IdentityDomain,
		DiscoveryTimeout: cfg.DiscoveryTimeout,
		WellKnownTimeout: cfg.WellKnownTimeout,
		Logger:           logger,
	})

	var signer event.Signer
	if cfg.SecretKey != "" {
		keySigner, err := event.NewKeySigner(cfg.SecretKey)
		if err != nil {
			log.Fatalf("Failed to load signing key: %v", err)
		}
		signer = keySigner
		if npub, err := event.EncodeNpub(keySigner.PublicKey()); err == nil {
			log.Printf("Authoring as %s", npub)
		}
	}

	manager, err := engine.NewManager(engine.Config{
		Gateway:        pool,
		Signer:         signer,
		Observer:       res,
		LoadTimeout:    cfg.LoadTimeout,
		PublishTimeout: cfg.PublishTimeout,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("Failed to build page engine: %v", err)
	}
	defer manager.Close()

	srv := server.New(cfg)
	srv.RegisterRoutes(manager, res)

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
