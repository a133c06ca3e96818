package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		infra: infra,
	}
}

func (h *HealthChecker) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	errs := make(chan error, 3)

	go func() {
		if err := h.infra.Postgres().Ping(ctx); err != nil {
			errs <- fmt.Errorf("postgres: %w", err)
			return
		}
		errs <- nil
	}()

	go func() {
		if err := h.infra.Redis().Ping(ctx); err != nil {
			errs <- fmt.Errorf("redis: %w", err)
			return
		}
		errs <- nil
	}()

	go func() {
		kafka := h.infra.Kafka()
		if kafka == nil {
			errs <- nil
			return
		}
		if err := kafka.Ping(ctx); err != nil {
			errs <- fmt.Errorf("kafka: %w", err)
			return
		}
		errs <- nil
	}()

	return errors.Join(<-errs, <-errs, <-errs)
}

func (h *HealthChecker) Handler(c *gin.Context) {
	if err := h.check(c.Request.Context()); err != nil {
		h.infra.Logger().Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
	})
}
