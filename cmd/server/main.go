package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jdavenport/lockstep/pkg/api"
	authproviders "github.com/jdavenport/lockstep/pkg/auth/providers"
	"github.com/jdavenport/lockstep/pkg/config"
	"github.com/jdavenport/lockstep/pkg/dispatch"
	"github.com/jdavenport/lockstep/pkg/log"
	"github.com/jdavenport/lockstep/pkg/network"
	"github.com/jdavenport/lockstep/pkg/repositories"
	"github.com/jdavenport/lockstep/pkg/rooms"
	"github.com/jdavenport/lockstep/pkg/version"
	"github.com/jdavenport/lockstep/pkg/workers"
)

const (
	matchStatChannelSize = 256
	sweepInterval        = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to a config file")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repository repositories.Repository
	switch cfg.DB.Driver {
	case "sqlite":
		repository, err = repositories.NewSQLiteRepository(ctx, cfg.DB.Path, cfg.DB.Migrations)
	case "postgres":
		repository, err = repositories.NewPostgresRepository(ctx, cfg.DB.ConnStr)
	default:
		panic(fmt.Sprintf("Unknown database driver: %s", cfg.DB.Driver))
	}
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(ctx)

	secret := cfg.Auth.Secret
	if secret == "" {
		panic("auth.secret must be set (LOCKSTEP_AUTH_SECRET)")
	}
	authProvider := authproviders.NewHMACAuthProvider([]byte(secret), cfg.Auth.TokenTTL)

	matchStatChan := make(chan workers.SaveMatchStatsRequest, matchStatChannelSize)
	saveMatchStatsWorker := workers.NewSaveMatchStatsWorker(workers.NewSaveMatchStatsWorkerOptions{
		Repository:    repository,
		MatchStatChan: matchStatChan,
	})
	go saveMatchStatsWorker.Start(ctx)

	registry := network.NewRegistry(network.NewRegistryOptions{
		SendTimeout: cfg.WS.SendTimeout,
	})
	dispatcher := dispatch.NewDispatcher(registry)

	manager := rooms.NewManager(rooms.NewManagerOptions{
		Publisher:    dispatcher,
		StatsChan:    matchStatChan,
		Repository:   repository,
		TickInterval: cfg.TickInterval(),
		GracePeriod:  cfg.Game.GracePeriod,
	})
	// The registry authorizes attachments against the room manager and
	// the manager broadcasts through the registry, so the second link
	// is wired after construction.
	registry.SetMemberships(manager)
	go manager.Sweep(ctx, sweepInterval)

	var wsTLS *network.TLSConfig
	var apiTLS *api.TLSConfig
	if cfg.API.CertFile != "" && cfg.API.KeyFile != "" {
		wsTLS = &network.TLSConfig{CertFile: cfg.API.CertFile, KeyFile: cfg.API.KeyFile}
		apiTLS = &api.TLSConfig{CertFile: cfg.API.CertFile, KeyFile: cfg.API.KeyFile}
	}

	wsServer := network.NewWSServer(network.NewWSServerOptions{
		Port:         cfg.WS.Port,
		TLS:          wsTLS,
		Registry:     registry,
		Manager:      manager,
		AuthProvider: authProvider,
		ErrorSender:  dispatcher,
	})
	go wsServer.Start(ctx)

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:         cfg.API.Port,
		TLS:          apiTLS,
		AuthProvider: authProvider,
		Repository:   repository,
		Manager:      manager,
	})
	go apiServer.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down")
	manager.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server: %v", err)
	}
	cancel()
}
