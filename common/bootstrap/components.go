package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dpreserve/drreplicator/common/config"
	"github.com/dpreserve/drreplicator/common/entityclient"
	"github.com/dpreserve/drreplicator/common/events"
	"github.com/dpreserve/drreplicator/common/logger"
	"github.com/dpreserve/drreplicator/common/queue"
	redisclient "github.com/dpreserve/drreplicator/common/redis"
	"github.com/dpreserve/drreplicator/common/telemetry"
	"github.com/dpreserve/drreplicator/internal/coordinator"
	"github.com/dpreserve/drreplicator/internal/notifier"
	"github.com/dpreserve/drreplicator/internal/ocflstore"
	"github.com/dpreserve/drreplicator/internal/resolver"
)

// Components holds every initialized service dependency, wired
// config → logger → queue client and publisher → entity client →
// OCFL repository → resolver/notifier → coordinator.
type Components struct {
	Config       *config.Config
	Logger       *logger.Logger
	RedisClient  *redis.Client
	Redis        *redisclient.Client
	Queue        queue.Queue
	EntityClient entityclient.Client
	Store        *ocflstore.Store
	Publisher    events.Publisher
	Resolver     *resolver.Resolver
	Notifier     *notifier.Notifier
	Coordinator  *coordinator.Coordinator
	Telemetry    *telemetry.Telemetry

	cleanupFuncs []func() error
}

// Shutdown runs cleanup functions in reverse (LIFO) order.
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	c.Logger.Info("shutdown complete")
	return nil
}

// Health pings the Redis connection backing the queue and publisher.
func (c *Components) Health(ctx context.Context) error {
	if c.RedisClient == nil {
		return nil
	}
	if err := c.RedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unhealthy: %w", err)
	}
	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
