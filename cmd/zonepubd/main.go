package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/registrykit/zonepub/internal/dns/common/clock"
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/common/retry"
	"github.com/registrykit/zonepub/internal/dns/config"
	"github.com/registrykit/zonepub/internal/dns/domain"
	"github.com/registrykit/zonepub/internal/dns/gateways/cloudflare"
	"github.com/registrykit/zonepub/internal/dns/gateways/dnsupdate"
	"github.com/registrykit/zonepub/internal/dns/gateways/provider"
	"github.com/registrykit/zonepub/internal/dns/gateways/route53"
	"github.com/registrykit/zonepub/internal/dns/repos/locks"
	"github.com/registrykit/zonepub/internal/dns/repos/queue"
	"github.com/registrykit/zonepub/internal/dns/repos/registry"
	"github.com/registrykit/zonepub/internal/dns/repos/zones"
	"github.com/registrykit/zonepub/internal/dns/services/dispatch"
	"github.com/registrykit/zonepub/internal/dns/services/publish"
	"github.com/registrykit/zonepub/internal/dns/services/writer"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "zonepubd"

	// Wait between reconcile attempts after a provider conflict
	defaultRetryDelay = 500 * time.Millisecond
)

// Application holds all the components of the publish pipeline
type Application struct {
	config     *config.AppConfig
	registry   *registry.Store
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
}

func main() {
	// Load configuration from the optional file named by ZONEPUB_CONFIG,
	// overridden by ZONEPUB_ environment variables
	cfg, err := config.Load(os.Getenv("ZONEPUB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.LogLevel,
		"dialect":   cfg.Database.Dialect,
		"queue":     cfg.Queue.Path,
	}, "Starting zonepub publisher")

	// Build application with all dependencies
	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	// Start the dispatch loop
	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Publisher failed")
	}

	log.Info(nil, "zonepub publisher stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	// Create shared clock for consistent time across all components
	clk := &clock.RealClock{}

	// Initialize logger (already configured globally)
	logger := log.GetLogger()

	// Build repository layer
	repos, err := buildRepositories(cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	// Build writer layer over the provider gateways
	writers, err := buildWriters(cfg, repos, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build writers: %w", err)
	}

	// Build service layer
	action, err := publish.New(publish.Options{
		Locker:      repos.locks,
		Writers:     writers,
		Queue:       repos.queue,
		Zones:       repos.zones,
		LockTimeout: cfg.Publish.LockTimeout,
		Logger:      logger,
		Clock:       clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build publish action: %w", err)
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Queue:         repos.queue,
		Publisher:     action,
		Zones:         repos.zones,
		PollInterval:  cfg.Queue.PollInterval,
		LeaseDuration: cfg.Queue.LeaseDuration,
		LeaseBatch:    cfg.Queue.LeaseBatch,
		PublishBatch:  cfg.Queue.PublishBatch,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}

	return &Application{
		config:     cfg,
		registry:   repos.registry,
		queue:      repos.queue,
		dispatcher: dispatcher,
	}, nil
}

// repositories holds all repository implementations
type repositories struct {
	registry *registry.Store
	queue    *queue.Queue
	zones    *zones.Resolver
	locks    *locks.Manager
}

// buildRepositories creates and configures all repository implementations
func buildRepositories(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (*repositories, error) {
	ctx := context.Background()

	// Open the registry database and run migrations
	store, err := registry.New(ctx, cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	// Load the optional seed fixture for dev and test bootstrap
	if cfg.Database.Seed != "" {
		if err := store.Seed(ctx, cfg.Database.Seed); err != nil {
			return nil, fmt.Errorf("failed to seed registry: %w", err)
		}
		log.Info(map[string]any{"seed": cfg.Database.Seed}, "Registry seeded")
	}

	// Open the durable refresh queue
	q, err := queue.New(cfg.Queue.Path, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}

	// Create the zone resolver over the registry's zone list
	zoneResolver, err := zones.New(zones.Options{
		Source: store,
		Clock:  clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build zone resolver: %w", err)
	}

	log.Info(map[string]any{
		"dialect": cfg.Database.Dialect,
		"queue":   cfg.Queue.Path,
	}, "Repositories initialized")

	return &repositories{
		registry: store,
		queue:    q,
		zones:    zoneResolver,
		locks:    locks.New(),
	}, nil
}

// buildWriters registers the provider backends and assembles the writer
// registry from the configured writer names
func buildWriters(cfg *config.AppConfig, repos *repositories, clk clock.Clock, logger log.Logger) (*writer.WriterRegistry, error) {
	route53.Register()
	cloudflare.Register()
	dnsupdate.Register()

	policy := retry.Policy{
		Attempts: cfg.Publish.RetryAttempts,
		Delay:    defaultRetryDelay,
	}

	writers := writer.NewWriterRegistry()
	for name, wcfg := range cfg.Writers {
		if wcfg.Kind == "void" {
			writers.Add(name, func(zone domain.ZoneConfig) writer.Writer {
				return writer.NewVoid(zone.Name, logger)
			})
			continue
		}

		client, err := provider.Build(wcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build writer %s: %w", name, err)
		}

		// One limiter per backend, shared by every batch that writer runs
		var limiter writer.Limiter
		if wcfg.QPS > 0 {
			limiter = rate.NewLimiter(rate.Limit(wcfg.QPS), burstFor(wcfg.QPS))
		}

		workers := wcfg.Workers
		writers.Add(name, func(zone domain.ZoneConfig) writer.Writer {
			return writer.New(writer.Options{
				Zone:     zone,
				Provider: client,
				Registry: repos.registry,
				Limiter:  limiter,
				Workers:  workers,
				Retry:    policy,
				TTLNS:    cfg.TTL.NS,
				TTLDS:    cfg.TTL.DS,
				TTLGlue:  cfg.TTL.Glue,
				Logger:   logger,
				Clock:    clk,
			})
		})
	}

	log.Info(map[string]any{
		"writers": writers.Names(),
		"kinds":   provider.Kinds(),
	}, "Writers configured")

	return writers, nil
}

// burstFor sizes the token bucket so a writer can use its full per-second
// quota in one fan-out without ever exceeding it.
func burstFor(qps float64) int {
	if qps < 1 {
		return 1
	}
	return int(qps)
}

// Run starts the dispatch loop and blocks until context is cancelled
func (app *Application) Run(ctx context.Context) error {
	log.Info(nil, "Publish pipeline started")

	err := app.dispatcher.Run(ctx)

	// Dispatcher returns nil on cancellation; close stores either way
	if cerr := app.queue.Close(); cerr != nil {
		log.Warn(map[string]any{"error": cerr}, "Error closing queue")
	}
	if cerr := app.registry.Close(); cerr != nil {
		log.Warn(map[string]any{"error": cerr}, "Error closing registry")
	}
	if err != nil {
		return err
	}

	log.Info(nil, "Graceful shutdown completed")
	return nil
}
