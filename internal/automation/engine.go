package automation

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/browser"
	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// components are bound to one live page and rebuilt on every acquisition.
type components struct {
	navigator *Navigator
	uploader  *Uploader
	prompts   *PromptManager
	generator *Generator
}

// Engine drives the app through a managed browser. The zero page state is
// "not acquired"; every phase call requires a prior Acquire.
type Engine struct {
	manager  *browser.Manager
	cfg      *config.Config
	clip     ImageCopier
	fetcher  ImageFetcher
	resolver OptionResolver
	metrics  *observability.Metrics
	clock    poll.Clock
	logger   *zap.Logger

	mu sync.Mutex
	c  *components
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

func WithClock(c poll.Clock) EngineOption { return func(e *Engine) { e.clock = c } }

func WithResolver(r OptionResolver) EngineOption { return func(e *Engine) { e.resolver = r } }

func WithMetrics(m *observability.Metrics) EngineOption { return func(e *Engine) { e.metrics = m } }

func NewEngine(manager *browser.Manager, cfg *config.Config, clip ImageCopier, fetcher ImageFetcher, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		manager: manager,
		cfg:     cfg,
		clip:    clip,
		fetcher: fetcher,
		resolver: RankedResolver{
			Phrases:  cfg.Workflow.ToolPhrases,
			Fallback: cfg.Workflow.ToolFallbackIndexes,
		},
		clock:  poll.RealClock(),
		logger: logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return e.manager.DriverName() }

// Acquire starts the browser if needed and binds the components to its page.
func (e *Engine) Acquire(ctx context.Context) error {
	page, err := e.manager.Acquire(ctx)
	if err != nil {
		return domain.BrowserError("could not start the browser", err)
	}

	if dir := e.cfg.App.DownloadDir; dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			if err := page.SetDownloadDir(ctx, abs); err != nil {
				e.logger.Warn("Could not route browser downloads.", zap.String("dir", abs), zap.Error(err))
			}
		}
	}

	d := NewDeps(page, e.cfg, e.clock, e.logger)
	scanner := NewScanner(
		append([]string{e.cfg.App.DownloadDir}, e.cfg.App.ExtraDownloadDirs...),
		e.cfg.App.OutputDir, e.cfg.Timeouts.FreshnessWindow, e.clock, e.logger,
	)
	prompts := NewPromptManager(d)
	c := &components{
		navigator: NewNavigator(d),
		uploader:  NewUploader(d, e.clip),
		prompts:   prompts,
		generator: NewGenerator(d,
			NewToolSelector(d, e.resolver),
			prompts,
			NewDownloader(d, e.fetcher, scanner, e.metrics),
			e.cfg.Workflow.RequireToolSelection,
		),
	}

	e.mu.Lock()
	e.c = c
	e.mu.Unlock()
	return nil
}

// Release stops the browser. Safe to call more than once.
func (e *Engine) Release(ctx context.Context) error {
	e.mu.Lock()
	e.c = nil
	e.mu.Unlock()
	return e.manager.Release(ctx)
}

func (e *Engine) bound() (*components, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.c == nil {
		return nil, domain.BrowserError("browser not started", nil)
	}
	return e.c, nil
}

func (e *Engine) CheckSession(ctx context.Context) (bool, string) {
	c, err := e.bound()
	if err != nil {
		return false, err.Error()
	}
	return c.navigator.CheckSession(ctx)
}

func (e *Engine) NavigateToApp(ctx context.Context) error {
	c, err := e.bound()
	if err != nil {
		return err
	}
	return c.navigator.NavigateToApp(ctx)
}

func (e *Engine) NewConversation(ctx context.Context) {
	if c, err := e.bound(); err == nil {
		c.navigator.StartNewConversation(ctx)
	}
}

// Analyze uploads the image, sends the instruction prompt and returns the
// model's description.
func (e *Engine) Analyze(ctx context.Context, imagePath, instruction string, report domain.PhaseFunc) (string, error) {
	c, err := e.bound()
	if err != nil {
		return "", err
	}
	if report == nil {
		report = func(domain.Phase, string) {}
	}

	if err := c.uploader.UploadImage(ctx, imagePath); err != nil {
		return "", err
	}
	report(domain.PhaseUploaded, "")

	if err := c.prompts.SendPrompt(ctx, instruction); err != nil {
		return "", err
	}
	report(domain.PhasePromptSent, "")

	report(domain.PhaseAwaitingResponse, "")
	if err := c.prompts.WaitForResponse(ctx, e.cfg.Timeouts.ResponseWait); err != nil {
		return "", err
	}
	return c.prompts.ResponseText(ctx)
}

func (e *Engine) Generate(ctx context.Context, prompt string, report domain.PhaseFunc) (domain.ImageArtifact, error) {
	c, err := e.bound()
	if err != nil {
		return domain.ImageArtifact{}, err
	}
	return c.generator.Generate(ctx, prompt, report)
}
