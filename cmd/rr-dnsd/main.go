package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hawknest/rrdns/internal/dns/common/clock"
	"github.com/hawknest/rrdns/internal/dns/common/log"
	"github.com/hawknest/rrdns/internal/dns/config"
	"github.com/hawknest/rrdns/internal/dns/domain"
	"github.com/hawknest/rrdns/internal/dns/gateways/transport"
	"github.com/hawknest/rrdns/internal/dns/gateways/upstream"
	"github.com/hawknest/rrdns/internal/dns/gateways/wire"
	"github.com/hawknest/rrdns/internal/dns/repos/blocklist"
	"github.com/hawknest/rrdns/internal/dns/repos/blocklist/bloom"
	"github.com/hawknest/rrdns/internal/dns/repos/blocklist/bolt"
	"github.com/hawknest/rrdns/internal/dns/repos/blocklist/lru"
	"github.com/hawknest/rrdns/internal/dns/repos/dnscache"
	"github.com/hawknest/rrdns/internal/dns/repos/zone"
	"github.com/hawknest/rrdns/internal/dns/services/resolver"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-dnsd"

	// Default timeouts
	defaultUpstreamTimeout = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	// Prune ticks the response cache on this interval, outside the
	// resolution path.
	cachePruneInterval = 30 * time.Second

	// bloomFalsePositiveRate targets the blocklist's Bloom prefilter.
	bloomFalsePositiveRate = 0.01
)

// Application holds all the components of the DNS server.
type Application struct {
	config     *config.AppConfig
	transports []transport.ServerTransport
	resolver   *resolver.Resolver
	cache      resolver.Cache
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.Log.Level,
		"port":      cfg.Resolver.Port,
		"zones":     cfg.Resolver.ZoneDirectory,
		"upstream":  cfg.Resolver.Upstream,
	}, "Starting "+appName)

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	codec := wire.NewUDPCodec(logger)

	repos, err := buildRepositories(cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	gw, err := buildGateways(cfg, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateways: %w", err)
	}

	protocolMode := parseProtocolMode(cfg.Resolver.ProtocolMode)

	resolverService := resolver.NewResolver(resolver.ResolverOptions{
		Blocklist:      repos.blocklist,
		Clock:          clk,
		Logger:         logger,
		Upstream:       gw.upstream,
		UpstreamCache:  repos.upstreamCache,
		ZoneCache:      repos.zoneCache,
		MaxRecursion:   cfg.Resolver.MaxRecursion,
		ProtocolMode:   protocolMode,
		UpstreamPort:   cfg.Resolver.UpstreamPort,
		ForwardAddress: cfg.Resolver.ForwardAddress,
	})

	addr := fmt.Sprintf(":%d", cfg.Resolver.Port)
	udpTransport, err := transport.NewTransport(transport.TransportUDP, addr, codec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build UDP transport: %w", err)
	}

	tcpTransport, err := transport.NewTransport(transport.TransportTCP, addr, codec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build TCP transport: %w", err)
	}

	return &Application{
		config:     cfg,
		transports: []transport.ServerTransport{udpTransport, tcpTransport},
		resolver:   resolverService,
		cache:      repos.upstreamCache,
	}, nil
}

func parseProtocolMode(s string) domain.ProtocolMode {
	switch s {
	case "only_v4":
		return domain.ProtocolOnlyV4
	case "prefer_v6":
		return domain.ProtocolPreferV6
	case "only_v6":
		return domain.ProtocolOnlyV6
	default:
		return domain.ProtocolPreferV4
	}
}

// repositories holds all repository implementations.
type repositories struct {
	blocklist     resolver.Blocklist
	upstreamCache resolver.Cache
	zoneCache     resolver.ZoneCache
}

// gateways holds all gateway implementations.
type gateways struct {
	upstream resolver.UpstreamClient
}

// buildRepositories creates and configures all repository implementations.
func buildRepositories(cfg *config.AppConfig, clk clock.Clock) (*repositories, error) {
	blocklistRepo, err := buildBlocklist(cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to build blocklist: %w", err)
	}

	var upstreamCache resolver.Cache
	if cfg.Resolver.Cache.Size > 0 {
		upstreamCache = dnscache.New(cfg.Resolver.Cache.Size, clk)
		log.Info(map[string]any{"size": cfg.Resolver.Cache.Size}, "DNS response cache configured")
	} else {
		log.Info(map[string]any{"disabled": true}, "DNS response caching disabled")
	}

	flatZones, err := zone.LoadZoneDirectory(cfg.Resolver.ZoneDirectory, 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone directory: %w", err)
	}

	zones, err := zone.BuildZones(flatZones)
	if err != nil {
		return nil, fmt.Errorf("failed to build zone trees: %w", err)
	}

	log.Info(map[string]any{
		"zone_dir": cfg.Resolver.ZoneDirectory,
		"zones":    zones.Count(),
	}, "Zone cache initialized")

	return &repositories{
		blocklist:     blocklistRepo,
		upstreamCache: upstreamCache,
		zoneCache:     zones,
	}, nil
}

// buildBlocklist wires the persistent store, bloom prefilter, and decision
// cache into a Repository, then loads every configured file and feed into
// it before returning a resolver.Blocklist adapter.
func buildBlocklist(cfg *config.AppConfig, clk clock.Clock) (resolver.Blocklist, error) {
	store, err := bolt.New(cfg.Blocklist.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist store: %w", err)
	}

	var decisionCache blocklist.DecisionCache
	if cfg.Blocklist.Cache.Size > 0 {
		decisionCache, err = lru.New(cfg.Blocklist.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to create blocklist decision cache: %w", err)
		}
	} else {
		decisionCache, err = lru.New(1)
		if err != nil {
			return nil, fmt.Errorf("failed to create blocklist decision cache: %w", err)
		}
	}

	repo := blocklist.NewRepository(store, decisionCache, bloom.NewFactory(), bloomFalsePositiveRate)

	if err := blocklist.LoadAll(repo, cfg.Blocklist.Directory, cfg.Blocklist.URLs, clk, log.GetLogger(), 1); err != nil {
		log.Warn(map[string]any{"error": err}, "Blocklist initial load failed, continuing with empty set")
	}

	return blocklist.NewQuestionBlocklist(repo), nil
}

// buildGateways creates and configures all gateway implementations.
func buildGateways(cfg *config.AppConfig, codec wire.DNSCodec) (*gateways, error) {
	servers := cfg.Resolver.Upstream
	if cfg.Resolver.ForwardAddress != "" {
		servers = []string{cfg.Resolver.ForwardAddress}
	}

	upstreamClient, err := upstream.NewResolver(upstream.Options{
		Servers: servers,
		Timeout: defaultUpstreamTimeout,
		Codec:   codec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	log.Info(map[string]any{
		"servers": servers,
		"timeout": defaultUpstreamTimeout,
	}, "Upstream DNS client configured")

	return &gateways{upstream: upstreamClient}, nil
}

// Run starts the DNS server and blocks until context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	started := make([]transport.ServerTransport, 0, len(app.transports))
	for _, t := range app.transports {
		if err := t.Start(ctx, app.resolver); err != nil {
			for _, s := range started {
				_ = s.Stop()
			}
			return fmt.Errorf("failed to start transport on %s: %w", t.Address(), err)
		}
		started = append(started, t)
		log.Info(map[string]any{
			"address": t.Address(),
		}, "DNS server started")
	}

	pruneTicker := time.NewTicker(cachePruneInterval)
	defer pruneTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pruneTicker.C:
				if app.cache == nil {
					continue
				}
				didOverflow, size, numExpired, numEvicted := app.cache.Prune()
				log.Debug(map[string]any{
					"did_overflow": didOverflow,
					"size":         size,
					"num_expired":  numExpired,
					"num_evicted":  numEvicted,
				}, "Cache pruned")
			}
		}
	}()

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	for _, t := range app.transports {
		if err := t.Stop(); err != nil {
			log.Warn(map[string]any{"error": err, "address": t.Address()}, "Error during transport shutdown")
		}
	}

	done := make(chan struct{})
	go func() {
		close(done)
	}()

	select {
	case <-done:
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
