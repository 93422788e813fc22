// File: internal/service/components.go
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/clipboard"
	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

// Components holds the initialized services for one process.
type Components struct {
	Config       *config.Config
	Backend      workflow.Backend
	Orchestrator *workflow.Orchestrator
	Clipboard    *clipboard.Bridge
	Metrics      *observability.Metrics

	logger       *zap.Logger
	shutdownOnce sync.Once
}

// Shutdown releases the browser. Safe to call more than once.
func (c *Components) Shutdown() {
	c.shutdownOnce.Do(func() {
		logger := c.logger
		if logger == nil {
			logger = observability.GetLogger()
		}
		logger.Debug("Beginning components shutdown sequence.")

		if c.Backend == nil {
			return
		}
		// The caller's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := c.Backend.Release(ctx); err != nil {
			logger.Warn("Error during browser shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser backend released.")
		}
	})
}
