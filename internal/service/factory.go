// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/automation"
	"github.com/xkilldash9x/remixer/internal/browser"
	"github.com/xkilldash9x/remixer/internal/clipboard"
	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/network"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/poll"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

var _ workflow.Backend = (*automation.Engine)(nil)

// DriverFactory builds the browser driver behind one backend name.
type DriverFactory func(cfg config.BrowserConfig, logger *zap.Logger) browser.Driver

// drivers is the static backend registry keyed by browser.driver.
var drivers = map[string]DriverFactory{
	config.DriverChromedp: func(cfg config.BrowserConfig, logger *zap.Logger) browser.Driver {
		return browser.NewChromedpDriver(cfg, logger)
	},
	config.DriverPlaywright: func(cfg config.BrowserConfig, logger *zap.Logger) browser.Driver {
		return browser.NewPlaywrightDriver(cfg, logger)
	},
}

// DriverNames lists the registered backends.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDriver looks up the configured backend. Nothing is launched.
func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) (browser.Driver, error) {
	build, ok := drivers[cfg.Driver]
	if !ok {
		return nil, domain.ConfigurationError(fmt.Sprintf("unknown browser driver %q (available: %v)", cfg.Driver, DriverNames()), nil)
	}
	return build(cfg, logger), nil
}

// ComponentFactory builds everything a command needs to run a job.
type ComponentFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error)
}

// FactoryOption customises the production factory.
type FactoryOption func(*concreteFactory)

// WithReporter replaces the terminal progress reporter.
func WithReporter(r workflow.Reporter) FactoryOption {
	return func(f *concreteFactory) { f.reporter = r }
}

// WithDriver bypasses the registry with a ready driver.
func WithDriver(d browser.Driver) FactoryOption {
	return func(f *concreteFactory) { f.driver = d }
}

// WithCopier replaces the OS clipboard bridge used for uploads.
func WithCopier(c automation.ImageCopier) FactoryOption {
	return func(f *concreteFactory) { f.copier = c }
}

// WithFetcher replaces the direct image fetcher.
func WithFetcher(fe automation.ImageFetcher) FactoryOption {
	return func(f *concreteFactory) { f.fetcher = fe }
}

// WithClock sets the clock shared by the engine, runner and reporter.
func WithClock(c poll.Clock) FactoryOption {
	return func(f *concreteFactory) { f.clock = c }
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct {
	reporter workflow.Reporter
	driver   browser.Driver
	copier   automation.ImageCopier
	fetcher  automation.ImageFetcher
	clock    poll.Clock
}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory(opts ...FactoryOption) ComponentFactory {
	f := &concreteFactory{clock: poll.RealClock()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create wires the engine and workflow. The browser itself starts lazily on
// the first job.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if cfg == nil || logger == nil {
		return nil, fmt.Errorf("cannot create components with nil dependencies")
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigurationError("invalid configuration", err)
	}

	components := &Components{Config: cfg, logger: logger.Named("components")}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Output directories
	for _, dir := range []string{cfg.App.OutputDir, cfg.App.DownloadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			initializationErr = domain.ConfigurationError(fmt.Sprintf("cannot create directory %s", dir), err)
			return nil, initializationErr
		}
	}

	// 2. Metrics
	if cfg.Metrics.Enabled {
		components.Metrics = observability.NewMetrics()
		logger.Debug("Metrics registry initialized.")
	}

	// 3. Clipboard and fetch client
	components.Clipboard = clipboard.NewBridge(cfg.Clipboard, logger)
	copier := f.copier
	if copier == nil {
		copier = components.Clipboard
	}
	fetcher := f.fetcher
	if fetcher == nil {
		cc, err := network.ClientConfigFrom(cfg, logger)
		if err != nil {
			initializationErr = domain.ConfigurationError("invalid fetch client configuration", err)
			return nil, initializationErr
		}
		fetcher = network.NewFetcher(network.NewClient(cc), logger)
	}

	// 4. Browser backend
	driver := f.driver
	if driver == nil {
		d, err := NewDriver(cfg.Browser, logger)
		if err != nil {
			initializationErr = err
			return nil, initializationErr
		}
		driver = d
	}
	engine := automation.NewEngine(
		browser.NewManager(driver, logger),
		cfg, copier, fetcher, logger,
		automation.WithClock(f.clock),
		automation.WithMetrics(components.Metrics),
	)
	components.Backend = engine
	logger.Debug("Browser backend registered.", zap.String("driver", engine.Name()))

	// 5. Workflow
	reporter := f.reporter
	if reporter == nil {
		reporter = workflow.NewTerminalReporter(os.Stderr, cfg.Workflow.ProgressInterval, f.clock)
	}
	runner, err := workflow.NewRunner(engine, reporter, logger,
		workflow.WithRunnerClock(f.clock),
		workflow.WithRunnerMetrics(components.Metrics),
		workflow.WithContinueOnImageError(cfg.Workflow.ContinueOnImageError),
	)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create workflow runner: %w", err)
		return nil, initializationErr
	}
	orch, err := workflow.NewOrchestrator(runner, workflow.NewTracker(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create orchestrator: %w", err)
		return nil, initializationErr
	}
	components.Orchestrator = orch
	logger.Debug("Workflow orchestrator initialized.")

	return components, nil
}
