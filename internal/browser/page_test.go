// internal/browser/page_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/remixer/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScriptExpression(t *testing.T) {
	t.Run("arguments are JSON encoded", func(t *testing.T) {
		s := Script{Name: "write-prompt", Source: " (text, n) => text.repeat(n) "}.With("a \"quoted\" line\n", 2)
		expr, err := s.Expression()
		require.NoError(t, err)
		assert.Equal(t,
			`Promise.resolve(((text, n) => text.repeat(n))("a \"quoted\" line\n", 2)).then(r => r === undefined ? null : r)`,
			expr)
	})

	t.Run("no arguments", func(t *testing.T) {
		expr, err := Script{Name: "ua", Source: "() => navigator.userAgent"}.Expression()
		require.NoError(t, err)
		assert.Contains(t, expr, "(() => navigator.userAgent)()")
	})

	t.Run("unencodable argument", func(t *testing.T) {
		_, err := Script{Name: "bad", Source: "(x) => x"}.With(make(chan int)).Expression()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script bad")
	})

	t.Run("With does not mutate the original", func(t *testing.T) {
		base := Script{Name: "count", Source: countScript.Source}
		_ = base.With("div")
		assert.Nil(t, base.Args)
	})
}

func TestExtraFlags(t *testing.T) {
	flags := extraFlags([]string{"--no-zygote", "lang=tr-TR", "--window-position=0,0", "  ", "mute-audio"})
	assert.Equal(t, []flag{
		{name: "no-zygote", value: true},
		{name: "lang", value: "tr-TR"},
		{name: "window-position", value: "0,0"},
		{name: "mute-audio", value: true},
	}, flags)
}

func TestExecOptions(t *testing.T) {
	base := len(ExecOptions(config.BrowserConfig{}))

	full := ExecOptions(config.BrowserConfig{
		Headless:   true,
		DisableGPU: true,
		ProfileDir: "/tmp/profile",
		Binary:     "/usr/bin/chromium",
		Viewport:   config.ViewportConfig{Width: 800, Height: 600},
		Proxy:      config.ProxyConfig{Enabled: true, Address: "http://127.0.0.1:8080"},
		Args:       []string{"--no-zygote"},
	})
	// gpu, profile, binary, window size, proxy and one extra flag
	assert.Equal(t, base+6, len(full))

	// a proxy without an address is ignored
	assert.Equal(t, base, len(ExecOptions(config.BrowserConfig{Proxy: config.ProxyConfig{Enabled: true}})))
}

func TestCombineContext(t *testing.T) {
	type key struct{}

	t.Run("canceled by the operational context", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key{}, "cdp")
		op, cancelOp := context.WithCancel(context.Background())

		combined, cancel := CombineContext(primary, op)
		defer cancel()
		assert.Equal(t, "cdp", combined.Value(key{}))

		cancelOp()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
	})

	t.Run("canceled by the primary context", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	type key struct{}
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), key{}, 1), time.Millisecond)
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, ok := detached.Deadline()
	assert.False(t, ok)
	assert.Equal(t, 1, detached.Value(key{}))
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, float64(defaultActionTimeout.Milliseconds()), *timeoutMillis(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ms := *timeoutMillis(ctx)
	assert.LessOrEqual(t, ms, 10000.0)
	assert.Greater(t, ms, 9000.0)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, 1.0, *timeoutMillis(expired))
}
