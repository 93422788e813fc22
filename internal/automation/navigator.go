package automation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
)

// Session status messages returned by CheckSession.
const (
	SessionActive   = "session active"
	SessionInactive = "session inactive: sign in required"
)

// Navigator loads the app and judges whether the browser profile is signed in.
type Navigator struct {
	Deps
	logger *zap.Logger
}

func NewNavigator(d Deps) *Navigator {
	return &Navigator{Deps: d, logger: d.Logger.Named("navigator")}
}

// NavigateToApp opens the app URL and waits for the page to settle.
func (n *Navigator) NavigateToApp(ctx context.Context) error {
	n.logger.Info("Navigating to app.", zap.String("url", n.App.URL))
	if err := n.Page.Navigate(ctx, n.App.URL); err != nil {
		return domain.NavigationError("could not open "+n.App.URL, err)
	}
	if err := n.settle(ctx, n.Timeouts.PageLoad); err != nil {
		return domain.NavigationError("interrupted while the page loaded", err)
	}
	return nil
}

// IsLoggedIn weighs the evidence in order: an input surface means signed in,
// a sign-in affordance or the auth domain means signed out. No evidence is
// treated as signed out.
func (n *Navigator) IsLoggedIn(ctx context.Context) bool {
	if sel, err := n.Selectors.InputSurface.First(ctx, n.Page); err == nil {
		n.logger.Debug("Input surface present.", zap.String("selector", sel))
		return true
	}
	if sel, err := n.Selectors.SignIn.First(ctx, n.Page); err == nil {
		n.logger.Debug("Sign-in affordance present.", zap.String("selector", sel))
		return false
	}
	url, err := n.Page.URL(ctx)
	if err != nil {
		n.logger.Warn("Could not read the current URL.", zap.Error(err))
		return false
	}
	if n.App.AuthDomain != "" && strings.Contains(url, n.App.AuthDomain) {
		n.logger.Debug("Browser is on the auth domain.", zap.String("url", url))
	}
	return false
}

// CheckSession navigates to the app when needed and reports the session state.
func (n *Navigator) CheckSession(ctx context.Context) (bool, string) {
	url, err := n.Page.URL(ctx)
	if err != nil || !strings.Contains(url, n.App.Host) {
		if err := n.NavigateToApp(ctx); err != nil {
			return false, "navigation failed: " + err.Error()
		}
	}
	if n.IsLoggedIn(ctx) {
		return true, SessionActive
	}
	return false, SessionInactive
}

// StartNewConversation resets the chat. It never fails: when no
// new-conversation control responds the app is reloaded instead.
func (n *Navigator) StartNewConversation(ctx context.Context) {
	for _, sel := range n.Selectors.NewConversation {
		ok, err := n.clickScripted(ctx, sel, 0)
		if err != nil {
			n.logger.Debug("New conversation click failed.", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if ok {
			n.logger.Info("Started a new conversation.", zap.String("selector", sel))
			_ = n.settle(ctx, n.Timeouts.Medium)
			return
		}
	}

	n.logger.Info("No new conversation control found, reloading the app.")
	if err := n.Page.Navigate(ctx, n.App.URL); err != nil {
		n.logger.Warn("Navigation during conversation reset failed.", zap.Error(err))
	}
	_ = n.settle(ctx, n.Timeouts.Medium)
	if err := n.Page.Reload(ctx); err != nil {
		n.logger.Warn("Reload during conversation reset failed.", zap.Error(err))
	}
	_ = n.settle(ctx, n.Timeouts.PageReady)
}
