// Package bootstrap wires the replicator's components in dependency
// order: config, then logger, then the Redis-backed queue and
// publisher, then the upstream entity client, then the local OCFL
// store, then the resolver/notifier/coordinator that sit on top of
// them.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dpreserve/drreplicator/common/cache"
	"github.com/dpreserve/drreplicator/common/config"
	"github.com/dpreserve/drreplicator/common/entityclient"
	"github.com/dpreserve/drreplicator/common/events"
	"github.com/dpreserve/drreplicator/common/logger"
	"github.com/dpreserve/drreplicator/common/queue"
	redisclient "github.com/dpreserve/drreplicator/common/redis"
	"github.com/dpreserve/drreplicator/common/telemetry"
	"github.com/dpreserve/drreplicator/common/validation"
	"github.com/dpreserve/drreplicator/internal/coordinator"
	"github.com/dpreserve/drreplicator/internal/notifier"
	"github.com/dpreserve/drreplicator/internal/ocflstore"
	"github.com/dpreserve/drreplicator/internal/resolver"
	"github.com/dpreserve/drreplicator/internal/xip"
)

// Setup initializes the full component graph for the replicator
// service.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}
	log := components.Logger

	log.Info("initializing service", "service", serviceName, "environment", cfg.Service.Environment)

	components.RedisClient = redis.NewClient(&redis.Options{Addr: cfg.Queue.RedisAddr})
	components.addCleanup(func() error {
		log.Info("closing redis connection")
		return components.RedisClient.Close()
	})

	components.Redis = redisclient.NewClient(components.RedisClient, redisLoggerAdapter{log})
	components.Queue = queue.NewRedisQueue(components.Redis, serviceName, log)
	components.Publisher = events.NewRedisPublisher(components.Redis)

	upstreamSecret, err := resolveUpstreamSecret(cfg.Upstream.SecretName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upstream credential: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Upstream.RequestTimeout}
	components.EntityClient = entityclient.NewHTTPClient(
		cfg.Upstream.BaseURL,
		upstreamSecret,
		cfg.Upstream.RateLimitPerSecond,
		cfg.Upstream.RateLimitBurst,
		httpClient,
		log,
	)

	inventoryCache := cache.NewInventoryCache(cfg.OCFL.InventoryCacheTTL, log)
	components.addCleanup(func() error {
		log.Info("closing inventory cache")
		return inventoryCache.Close()
	})

	components.Store, err = ocflstore.New(cfg.OCFL.RepoDir, cfg.OCFL.WorkDir, inventoryCache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open OCFL store: %w", err)
	}

	composer := xip.New(validation.NoopValidator{})
	components.Resolver = resolver.New(components.EntityClient, composer)
	components.Notifier = notifier.New(components.Publisher, cfg.Queue.TopicArn)

	components.Coordinator = coordinator.New(coordinator.Config{
		Queue:        components.Queue,
		QueueURL:     cfg.Queue.SQSQueueURL,
		BatchSize:    cfg.Service.BatchSize,
		Resolver:     components.Resolver,
		EntityClient: components.EntityClient,
		Store:        components.Store,
		WorkDir:      cfg.OCFL.WorkDir,
		Notifier:     components.Notifier,
		Log:          log,
	})

	if !options.skipTelemetry && cfg.Telemetry.EnablePprof {
		log.Info("initializing telemetry")
		components.Telemetry = telemetry.New(cfg.Telemetry.PprofPort, log)
		if err := components.Telemetry.Start(ctx); err != nil {
			log.Warn("failed to start telemetry", "error", err)
		}
	}

	log.Info("service initialization complete", "service", serviceName)

	return components, nil
}

// MustSetup is like Setup but panics on error.
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}

// redisLoggerAdapter satisfies redisclient.Logger using *logger.Logger's
// variadic slog-style signature.
type redisLoggerAdapter struct{ log *logger.Logger }

func (a redisLoggerAdapter) Info(msg string, kv ...interface{})  { a.log.Info(msg, kv...) }
func (a redisLoggerAdapter) Error(msg string, kv ...interface{}) { a.log.Error(msg, kv...) }
func (a redisLoggerAdapter) Warn(msg string, kv ...interface{})  { a.log.Warn(msg, kv...) }
func (a redisLoggerAdapter) Debug(msg string, kv ...interface{}) { a.log.Debug(msg, kv...) }

// resolveUpstreamSecret looks up the credential named by secretName.
// Production wiring would read this from a secrets manager; here it is
// read from the environment under the same name, matching the
// preservicaSecretName configuration option.
func resolveUpstreamSecret(secretName string) (string, error) {
	if secretName == "" {
		return "", nil
	}
	return os.Getenv(secretName), nil
}
