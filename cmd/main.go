package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/batch"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/cache"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/config"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/feedback"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/httpserver"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/httpserver/middleware"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/monitor"
	notifyredis "github.com/cd3331/pm-document-intelligence-sub000/internal/notify/redis"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/prompts"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/provider/echo"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/provider/openai"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/provider/registry"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/retry"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/routing"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/store"
)

const shutdownTimeout = 15 * time.Second

// closers releases backend resources in reverse acquisition order.
type closers struct {
	mu  sync.Mutex
	fns []func()
}

func (c *closers) add(fn func()) {
	c.mu.Lock()
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
}

func (c *closers) run() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
	c.fns = nil
}

func main() {
	container := buildContainer()

	err := container.Invoke(func(
		server *httpserver.Server,
		cacheStore domain.CacheStore,
		cacheCfg *config.CacheConfig,
		processor *batch.Processor,
		resources *closers,
	) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := observability.FromContext(ctx)
		go cache.RunSweeper(ctx, cacheStore, cacheCfg.SweepInterval)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			resources.run()
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", observability.Error(err))
		}
		if processor != nil {
			processor.FlushAll()
		}
		resources.run()
		return nil
	})
	if err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	provide := func(name string, constructor any) {
		if err := container.Provide(constructor); err != nil {
			log.Fatalf("Failed to provide %s: %v", name, err)
		}
	}

	// Configuration
	provide("config", config.Load)
	provide("config dependencies", config.ParseDependenciesConfig)
	provide("closers", func() *closers { return &closers{} })

	// Observability
	provide("logger", observability.InitLogger)
	provide("event publisher", newEventPublisher)

	// Response cache
	provide("cache store", newCacheStore)
	provide("fingerprinter", func(cfg *config.CacheConfig) domain.Fingerprinter {
		return domain.Fingerprinter{
			Namespace:    cfg.Namespace,
			TenantScoped: cfg.TenantScoped,
			PrefixBytes:  cfg.PrefixBytes,
		}
	})
	provide("response cache", func(s domain.CacheStore, fp domain.Fingerprinter) domain.ResponseCache {
		if s == nil {
			return nil
		}
		return domain.NewResponseCacheService(s, fp)
	})

	// Routing
	provide("prompt assembler", func() (domain.PromptAssembler, error) {
		reg, err := prompts.LoadDefault()
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt templates: %w", err)
		}
		return prompts.NewAssembler(reg), nil
	})
	provide("tier models", tierModels)
	provide("router", func(
		rc *config.RoutingConfig,
		cc *config.ComplexityConfig,
		models routing.TierModels,
		responseCache domain.ResponseCache,
		assembler domain.PromptAssembler,
	) domain.Router {
		return routing.NewRouter(
			routing.NewComplexityAssessor(cc.SimpleMaxWords, cc.ModerateMaxWords),
			routing.DefaultTable(rc.CostPriorityThreshold),
			models,
			responseCache,
			assembler,
		)
	})

	// Durable records
	provide("record store", newRecordStore)
	provide("performance monitor", func(s store.Store, events domain.EventPublisher, cfg *config.MonitorConfig) domain.PerformanceMonitor {
		return monitor.New(s, events, monitor.Config{
			MinSamples:     cfg.MinSamples,
			DriftThreshold: cfg.DriftThreshold,
			ReportTTL:      cfg.ReportTTL,
		})
	})
	provide("feedback service", func(s store.Store, events domain.EventPublisher, cfg *config.FeedbackConfig) domain.FeedbackService {
		return feedback.NewService(s, s, events, feedback.Config{
			NegativeRateThreshold: cfg.NegativeRateThreshold,
			MinEvents:             cfg.MinEvents,
			Window:                cfg.Window,
		})
	})

	// Batching
	provide("batch processor", func(cfg *config.BatchConfig) *batch.Processor {
		if !cfg.Enabled {
			return nil
		}
		return batch.NewProcessor(batch.Config{
			MaxSize:        cfg.MaxSize,
			Window:         cfg.Window,
			LatencyCeiling: cfg.LatencyCeiling,
		})
	})
	provide("batcher", func(p *batch.Processor) domain.Batcher {
		if p == nil {
			return nil
		}
		return p
	})

	// Model clients and pricing
	provide("pricing registry", func() domain.PricingRegistry {
		return domain.NewInMemoryPricingRegistry()
	})
	provide("provider registry", newProviderRegistry)
	provide("cost calculator", func(pricing domain.PricingRegistry) domain.CostCalculator {
		return domain.NewStandardCostCalculator(pricing)
	})

	// Domain Services
	provide("task service", func(
		router domain.Router,
		providers domain.ProviderRegistry,
		costs domain.CostCalculator,
		responseCache domain.ResponseCache,
		perf domain.PerformanceMonitor,
		fb domain.FeedbackService,
		batcher domain.Batcher,
		rc *config.RoutingConfig,
		cc *config.CacheConfig,
	) *domain.TaskService {
		return domain.NewTaskService(domain.TaskServiceDeps{
			Router:         router,
			Registry:       providers,
			CostCalculator: costs,
			Cache:          responseCache,
			Monitor:        perf,
			Feedback:       fb,
			Batcher:        batcher,
		}, domain.TaskServiceConfig{
			CacheTTL:    cc.TTL,
			CallTimeout: rc.CallTimeout,
			Retry: retry.Policy{
				MaxAttempts: rc.MaxAttempts,
				BaseDelay:   rc.BackoffBase,
				MaxDelay:    rc.BackoffMax,
			},
			CoalesceMisses: cc.CoalesceMisses,
		})
	})

	// HTTP Layer
	provide("middleware chain", middleware.BuildMiddlewareChain)
	provide("HTTP handler", httpserver.NewHandler)
	provide("HTTP server", httpserver.NewServer)

	return container
}

// newEventPublisher logs every alert and, when a channel is configured, also
// publishes it on Redis.
func newEventPublisher(logger *zap.Logger, cfg *config.RedisConfig, resources *closers) domain.EventPublisher {
	bus := observability.NewEventBus(logger)
	if cfg.AlertChannel == "" {
		return bus
	}

	client := cache.NewRedisClient(cfg)
	resources.add(func() { _ = client.Close() })
	return notifyredis.NewPublisher(client, cfg.AlertChannel, bus)
}

func newCacheStore(cfg *config.CacheConfig, redisCfg *config.RedisConfig, resources *closers) (domain.CacheStore, error) {
	s, closeFn, err := cache.Open(cfg, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	resources.add(closeFn)
	return s, nil
}

func newRecordStore(cfg *config.StoreConfig, resources *closers) (store.Store, error) {
	s, closeFn, err := store.Open(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	resources.add(closeFn)
	return s, nil
}

func tierModels(cfg *config.RoutingConfig) routing.TierModels {
	return routing.TierModels{
		domain.TierEconomy:    cfg.EconomyModel,
		domain.TierReasoning:  cfg.ReasoningModel,
		domain.TierStructured: cfg.StructuredModel,
		domain.TierBalanced:   cfg.BalancedModel,
	}
}

// newProviderRegistry registers OpenAI when a key is configured. Without one,
// every tier model is served by the echo client so the service still runs.
func newProviderRegistry(
	logger *zap.Logger,
	oaiCfg *openai.Config,
	models routing.TierModels,
	pricing domain.PricingRegistry,
) (domain.ProviderRegistry, error) {
	ctx := context.Background()
	reg := registry.NewRegistry()

	if oaiCfg.APIKey != "" {
		client, err := openai.NewProvider(*oaiCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		if err := reg.Register(ctx, client); err != nil {
			return nil, fmt.Errorf("failed to register OpenAI client: %w", err)
		}
		if err := openai.RegisterPricing(ctx, pricing); err != nil {
			return nil, fmt.Errorf("failed to register OpenAI pricing: %w", err)
		}
		return reg, nil
	}

	logger.Warn("OPENAI_API_KEY not set, serving every tier with the echo client")

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m)
	}
	if len(names) == 0 {
		return nil, errors.New("no tier models configured")
	}

	client := echo.NewProvider(names...)
	if err := reg.Register(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to register echo client: %w", err)
	}
	if err := client.RegisterPricing(ctx, pricing); err != nil {
		return nil, fmt.Errorf("failed to register echo pricing: %w", err)
	}
	return reg, nil
}
