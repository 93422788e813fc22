// internal/browser/playwright.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/browser/stealth"
	"github.com/xkilldash9x/remixer/internal/config"
)

const (
	playwrightInstallTimeout = 5 * time.Minute
	// defaultActionTimeout bounds playwright calls made with a context that has no deadline.
	defaultActionTimeout = 30 * time.Second
)

// PlaywrightDriver runs Chromium through a persistent Playwright context so
// that the signed-in profile survives restarts, just like the chromedp driver.
type PlaywrightDriver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	context playwright.BrowserContext
}

var _ Driver = (*PlaywrightDriver)(nil)

func NewPlaywrightDriver(cfg config.BrowserConfig, logger *zap.Logger) *PlaywrightDriver {
	return &PlaywrightDriver{cfg: cfg, logger: logger.Named("playwright")}
}

func (d *PlaywrightDriver) Name() string { return config.DriverPlaywright }

func (d *PlaywrightDriver) runOptions() *playwright.RunOptions {
	return &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
}

// ensureInstallation installs the driver and Chromium if needed. Install blocks
// without a context, so it runs in a goroutine bounded by ctx.
func (d *PlaywrightDriver) ensureInstallation(ctx context.Context) error {
	installCtx, cancel := context.WithTimeout(ctx, playwrightInstallTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- playwright.Install(d.runOptions())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for playwright installation: %w", installCtx.Err())
	}
}

func (d *PlaywrightDriver) launchOptions() playwright.BrowserTypeLaunchPersistentContextOptions {
	persona := stealth.ForLocale(d.cfg.Locale, d.cfg.Timezone)
	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:        playwright.Bool(d.cfg.Headless),
		AcceptDownloads: playwright.Bool(true),
		Locale:          playwright.String(persona.Locale),
		Timeout:         playwright.Float(60000),
		Args: append([]string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
		}, d.cfg.Args...),
		IgnoreDefaultArgs: []string{"--enable-automation"},
	}
	if d.cfg.DisableGPU {
		opts.Args = append(opts.Args, "--disable-gpu")
	}
	if d.cfg.Stealth {
		opts.UserAgent = playwright.String(persona.UserAgent)
	}
	if persona.Timezone != "" {
		opts.TimezoneId = playwright.String(persona.Timezone)
	}
	if d.cfg.Binary != "" {
		opts.ExecutablePath = playwright.String(d.cfg.Binary)
	}
	if d.cfg.Viewport.Width > 0 && d.cfg.Viewport.Height > 0 {
		opts.Viewport = &playwright.Size{Width: d.cfg.Viewport.Width, Height: d.cfg.Viewport.Height}
	}
	if d.cfg.Proxy.Enabled && d.cfg.Proxy.Address != "" {
		opts.Proxy = &playwright.Proxy{Server: d.cfg.Proxy.Address}
	}
	return opts
}

// Start installs Playwright if needed and opens the persistent profile.
func (d *PlaywrightDriver) Start(ctx context.Context) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.context != nil {
		return nil, fmt.Errorf("playwright driver already started")
	}
	if err := d.ensureInstallation(ctx); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(d.runOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(d.cfg.ProfileDir, d.launchOptions())
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch persistent context: %w", err)
	}
	if d.cfg.Stealth {
		if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealth.EvasionsJS)}); err != nil {
			d.logger.Warn("Failed to add evasions script.", zap.Error(err))
		}
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	d.pw = pw
	d.context = bctx
	d.logger.Info("Chromium started via playwright.", zap.String("profile", d.cfg.ProfileDir), zap.Bool("headless", d.cfg.Headless))
	return &playwrightPage{context: bctx, page: page, logger: d.logger}, nil
}

// Stop closes the context and the driver process. It is safe to call repeatedly.
func (d *PlaywrightDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw == nil {
		return nil
	}

	var shutdownErr error
	if err := d.context.Close(); err != nil {
		shutdownErr = fmt.Errorf("failed to close browser context: %w", err)
	}
	if err := d.pw.Stop(); err != nil && shutdownErr == nil {
		shutdownErr = fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	d.pw, d.context = nil, nil
	return shutdownErr
}

type playwrightPage struct {
	context playwright.BrowserContext
	page    playwright.Page
	logger  *zap.Logger

	downloadOnce sync.Once
	downloadMu   sync.Mutex
	downloadDir  string
}

// timeoutMillis converts the remaining time on ctx into a playwright timeout.
func timeoutMillis(ctx context.Context) *float64 {
	d := defaultActionTimeout
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
		if d <= 0 {
			d = time.Millisecond
		}
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutMillis(ctx),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *playwrightPage) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Reload(playwright.PageReloadOptions{Timeout: timeoutMillis(ctx)})
	return err
}

func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *playwrightPage) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.page.Locator(selector).Count()
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: timeoutMillis(ctx)})
}

func (p *playwrightPage) PressPaste(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard().Press("Control+V")
}

func (p *playwrightPage) Evaluate(ctx context.Context, script Script, res interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	expr, err := script.Expression()
	if err != nil {
		return err
	}
	v, err := p.page.Evaluate(expr)
	if err != nil {
		return fmt.Errorf("script %s: %w", script.Name, err)
	}
	if res == nil {
		return nil
	}
	// Round-trip through JSON so callers decode into their own types, as with chromedp.
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("script %s: encoding result: %w", script.Name, err)
	}
	if err := json.Unmarshal(b, res); err != nil {
		return fmt.Errorf("script %s: decoding result: %w", script.Name, err)
	}
	return nil
}

func (p *playwrightPage) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cookies, err := p.context.Cookies()
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
			HttpOnly: c.HttpOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out, nil
}

// SetDownloadDir saves every browser download into dir under its suggested name.
func (p *playwrightPage) SetDownloadDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	p.downloadMu.Lock()
	p.downloadDir = abs
	p.downloadMu.Unlock()

	p.downloadOnce.Do(func() {
		p.page.OnDownload(func(d playwright.Download) {
			p.downloadMu.Lock()
			target := filepath.Join(p.downloadDir, d.SuggestedFilename())
			p.downloadMu.Unlock()
			if err := d.SaveAs(target); err != nil {
				p.logger.Warn("Failed to save download.", zap.String("target", target), zap.Error(err))
				return
			}
			p.logger.Debug("Download saved.", zap.String("target", target))
		})
	})
	return nil
}
