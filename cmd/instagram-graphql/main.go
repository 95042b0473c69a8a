// Package main implements the entry point for the instagram-graphql
// service: a GraphQL gateway over a JetStream-backed feed of Instagram
// posts, with live new-post streaming over websockets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arnellebalane/instagram-graphql/config"
	"github.com/arnellebalane/instagram-graphql/feed"
	"github.com/arnellebalane/instagram-graphql/gateway/graphql"
	"github.com/arnellebalane/instagram-graphql/hub"
	"github.com/arnellebalane/instagram-graphql/metric"
	"github.com/arnellebalane/instagram-graphql/natsclient"
	"github.com/arnellebalane/instagram-graphql/store"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "instagram-graphql"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; a missing .env file is fine
	_ = godotenv.Load()

	cliCfg, exit, err := initializeCLI()
	if exit || err != nil {
		return err
	}

	cfg, logger, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, cleanup, err := setupService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ready := make(chan struct{})
	go func() {
		<-ready
		slog.Info("Service ready",
			"address", cfg.Gateway.BindAddress,
			"path", cfg.Gateway.Path)
	}()

	if err := server.Start(ctx, ready); err != nil {
		return err
	}

	return server.Stop(cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and handles the informational flags
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	return cliCfg, false, nil
}

// initializeConfiguration loads the config and builds the logger from
// it. CLI flags win over the config file's log section.
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, *slog.Logger, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	slog.Info("Starting instagram-graphql",
		"version", Version,
		"config_path", cliCfg.ConfigPath,
		"nats_url", cfg.NATS.URL,
		"bucket", cfg.Store.Bucket)

	return cfg, logger, nil
}

// setupService connects the infrastructure and wires the resolver
// graph. The returned cleanup releases everything in reverse order.
func setupService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*graphql.Server, func(), error) {
	client, err := buildNATSClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Store.Bucket,
		Description: "Instagram feed entities",
		History:     1,
	})
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, fmt.Errorf("create KV bucket: %w", err)
	}

	var storeOpts []func(*store.KVOptions)
	if timeout, _ := cfg.Store.Timeout(); timeout > 0 {
		storeOpts = append(storeOpts, store.WithTimeout(timeout))
	}
	gateway := store.NewKVGateway(bucket, storeOpts...)

	broadcast := hub.New[*feed.PostView](logger)
	resolver := feed.NewResolver(gateway, logger)
	coordinator := feed.NewCoordinator(gateway, broadcast, logger)
	metrics := metric.New()
	root := graphql.NewRootResolver(resolver, coordinator, broadcast, metrics, logger)

	server, err := graphql.NewServer(cfg.Gateway, root, metrics, logger)
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, fmt.Errorf("create GraphQL server: %w", err)
	}
	if err := server.Setup(); err != nil {
		_ = client.Close(ctx)
		return nil, nil, fmt.Errorf("setup GraphQL server: %w", err)
	}

	cleanup := func() {
		broadcast.Close()
		if err := client.Close(context.Background()); err != nil {
			slog.Warn("NATS close failed", "error", err)
		}
	}

	return server, cleanup, nil
}

func buildNATSClient(cfg *config.Config) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithClientName(cfg.NATS.ClientName),
	}
	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	return natsclient.NewClient(cfg.NATS.URL, opts...)
}
