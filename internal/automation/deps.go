package automation

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/browser"
	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// Deps bundles what every component needs to talk to the live page.
type Deps struct {
	Page      browser.Page
	Clock     poll.Clock
	Logger    *zap.Logger
	Selectors Selectors
	Timeouts  config.TimeoutsConfig
	App       config.AppConfig
}

// NewDeps builds the component dependencies for page from cfg.
func NewDeps(page browser.Page, cfg *config.Config, clock poll.Clock, logger *zap.Logger) Deps {
	if clock == nil {
		clock = poll.RealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Deps{
		Page:      page,
		Clock:     clock,
		Logger:    logger,
		Selectors: NewSelectors(cfg.Selectors),
		Timeouts:  cfg.Timeouts,
		App:       cfg.App,
	}
}

func (d Deps) settle(ctx context.Context, dur time.Duration) error {
	return poll.Settle(ctx, d.Clock, dur)
}

// waitFirst polls chain until one of its selectors matches, giving the page up
// to timeout to render it.
func (d Deps) waitFirst(ctx context.Context, chain Chain, timeout time.Duration) (string, error) {
	var found string
	err := poll.Until(ctx, d.Clock, d.Timeouts.Short, timeout, func(ctx context.Context) (bool, error) {
		sel, err := chain.First(ctx, d.Page)
		if err != nil {
			return false, err
		}
		found = sel
		return true, nil
	})
	return found, err
}

// clickScripted clicks the first match of sel through the page's own event
// dispatch, which survives overlays that swallow native clicks.
func (d Deps) clickScripted(ctx context.Context, sel string, index int) (bool, error) {
	var ok bool
	if err := d.Page.Evaluate(ctx, clickNth.With(sel, index), &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// appOrigin is the Referer presented on direct fetches.
func (d Deps) appOrigin() string {
	host := d.App.Host
	if host == "" {
		host = strings.TrimPrefix(strings.TrimPrefix(d.App.URL, "https://"), "http://")
		if i := strings.Index(host, "/"); i >= 0 {
			host = host[:i]
		}
	}
	return "https://" + host + "/"
}
