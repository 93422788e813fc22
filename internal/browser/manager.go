// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager scopes a driver's lifetime. Construction starts nothing; the browser
// is launched on the first Acquire and torn down by Release.
type Manager struct {
	driver Driver
	logger *zap.Logger

	mu   sync.Mutex
	page Page
}

func NewManager(driver Driver, logger *zap.Logger) *Manager {
	m := &Manager{
		driver: driver,
		logger: logger.Named("browser_manager"),
	}
	m.logger.Debug("Browser manager created (launch deferred).", zap.String("driver", driver.Name()))
	return m
}

// Acquire returns the running page, launching the browser if necessary.
func (m *Manager) Acquire(ctx context.Context) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		return m.page, nil
	}
	page, err := m.driver.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s browser: %w", m.driver.Name(), err)
	}
	m.page = page
	return page, nil
}

// Release stops the browser. Calling it on an idle manager is a no-op.
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page == nil {
		return nil
	}
	m.page = nil
	if err := m.driver.Stop(ctx); err != nil {
		m.logger.Warn("Browser did not stop cleanly.", zap.Error(err))
		return err
	}
	m.logger.Debug("Browser released.")
	return nil
}

// Active reports whether a browser is currently running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page != nil
}

// DriverName names the underlying driver.
func (m *Manager) DriverName() string { return m.driver.Name() }
