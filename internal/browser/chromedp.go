// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/browser/stealth"
	"github.com/xkilldash9x/remixer/internal/config"
)

// ChromedpDriver drives a local Chrome over the DevTools protocol.
type ChromedpDriver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

var _ Driver = (*ChromedpDriver)(nil)

func NewChromedpDriver(cfg config.BrowserConfig, logger *zap.Logger) *ChromedpDriver {
	return &ChromedpDriver{cfg: cfg, logger: logger.Named("chromedp")}
}

func (d *ChromedpDriver) Name() string { return config.DriverChromedp }

// Start launches Chrome on the configured profile and applies the stealth persona.
func (d *ChromedpDriver) Start(ctx context.Context) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx != nil {
		return nil, fmt.Errorf("chromedp driver already started")
	}

	// The browser must outlive ctx, so the allocator only borrows its values.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), ExecOptions(d.cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(d.logger.Sugar().Debugf))

	// The first Run allocates the browser; it must not carry an operational deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	p := &chromedpPage{ctx: browserCtx}
	if d.cfg.Stealth {
		persona := stealth.ForLocale(d.cfg.Locale, d.cfg.Timezone)
		if err := p.run(ctx, stealth.Apply(persona, d.logger)); err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to apply stealth persona: %w", err)
		}
	}

	d.allocCancel = allocCancel
	d.browserCtx = browserCtx
	d.browserCancel = browserCancel
	d.logger.Info("Chrome started.", zap.String("profile", d.cfg.ProfileDir), zap.Bool("headless", d.cfg.Headless))
	return p, nil
}

// Stop closes the browser gracefully and releases the allocator. It is safe to call repeatedly.
func (d *ChromedpDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx == nil {
		return nil
	}

	var err error
	done := make(chan error, 1)
	go func(browserCtx context.Context) {
		done <- chromedp.Cancel(browserCtx)
	}(d.browserCtx)
	select {
	case err = <-done:
	case <-ctx.Done():
		d.logger.Warn("Timed out closing chrome gracefully; killing the allocator.", zap.Error(ctx.Err()))
	}

	d.browserCancel()
	d.allocCancel()
	d.browserCtx, d.browserCancel, d.allocCancel = nil, nil, nil
	if err != nil && err != context.Canceled {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}

type flag struct {
	name  string
	value interface{}
}

// extraFlags turns "--name", "name=value" and "--name=value" entries into allocator flags.
func extraFlags(args []string) []flag {
	flags := make([]flag, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimLeft(parts[0], "-")
		if len(parts) == 2 {
			flags = append(flags, flag{name: name, value: parts[1]})
			continue
		}
		flags = append(flags, flag{name: name, value: true})
	}
	return flags
}

// ExecOptions translates the browser config into chromedp allocator options.
func ExecOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		// Google sign-in rejects browsers that expose navigator.webdriver.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.DisableGPU {
		opts = append(opts, chromedp.DisableGPU)
	}
	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	if cfg.Binary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Binary))
	}
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}
	if cfg.Proxy.Enabled && cfg.Proxy.Address != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy.Address))
	}
	for _, f := range extraFlags(cfg.Args) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	return opts
}

// chromedpPage implements Page on a chromedp browser context.
type chromedpPage struct {
	ctx context.Context
}

func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromedpPage) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := p.Evaluate(ctx, countScript.With(selector), &n)
	return n, err
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromedpPage) PressPaste(ctx context.Context) error {
	// The "paste" editing command is what actually inserts clipboard content;
	// a bare Ctrl+V key event does nothing in headless Chrome.
	down := input.DispatchKeyEvent(input.KeyRawDown).
		WithModifiers(input.ModifierCtrl).
		WithKey("v").
		WithCode("KeyV").
		WithWindowsVirtualKeyCode(86).
		WithCommands([]string{"paste"})
	up := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(input.ModifierCtrl).
		WithKey("v").
		WithCode("KeyV").
		WithWindowsVirtualKeyCode(86)
	return p.run(ctx, down, up)
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (p *chromedpPage) Evaluate(ctx context.Context, script Script, res interface{}) error {
	expr, err := script.Expression()
	if err != nil {
		return err
	}
	if res == nil {
		var discard interface{}
		res = &discard
	}
	if err := p.run(ctx, chromedp.Evaluate(expr, res, awaitPromise)); err != nil {
		return fmt.Errorf("script %s: %w", script.Name, err)
	}
	return nil
}

func (p *chromedpPage) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out, nil
}

func (p *chromedpPage) SetDownloadDir(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return p.run(ctx, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(abs).
		WithEventsEnabled(true))
}
