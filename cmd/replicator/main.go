// Command replicator runs the disaster-recovery reconciliation pipeline:
// it drains batches from the source queue and commits them into the
// local OCFL mirror until told to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dpreserve/drreplicator/common/bootstrap"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Setup(ctx, "dr-replicator")
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap failed:", err)
		return 1
	}
	defer components.Shutdown(context.Background())

	healthServer := newHealthServer(components)
	go func() {
		if err := healthServer.Start(":" + portString(components.Config.Telemetry.HealthPort)); err != nil && err != http.ErrServerClosed {
			components.Logger.Error("health server error", "error", err)
		}
	}()
	defer healthServer.Shutdown(context.Background())

	components.Logger.Info("replicator starting")

	pollWait := components.Config.Service.PollWait

	for {
		select {
		case <-ctx.Done():
			components.Logger.Info("shutdown signal received")
			return 0
		default:
		}

		batchStart := time.Now()
		n, err := components.Coordinator.RunOnce(ctx)
		if components.Telemetry != nil {
			components.Telemetry.RecordDuration("batch", batchStart)
		}
		if err != nil {
			components.Logger.Error("batch processing failed", "error", err)
			// Resilience comes from queue redelivery; continue polling
			// rather than exiting on a single batch failure.
		}

		if n == 0 {
			select {
			case <-ctx.Done():
				return 0
			case <-time.After(pollWait):
			}
		}
	}
}

func newHealthServer(components *bootstrap.Components) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.GET("/healthz", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	return e
}

func portString(port int) string {
	if port == 0 {
		port = 8080
	}
	return strconv.Itoa(port)
}
