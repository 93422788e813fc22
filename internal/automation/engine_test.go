package automation_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/remixer/internal/automation"
	"github.com/xkilldash9x/remixer/internal/browser"
	"github.com/xkilldash9x/remixer/internal/browser/browsertest"
	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

// scriptedApp makes the fake page behave like a signed-in app that answers
// analysis and generation prompts.
func scriptedApp(t *testing.T, h *harness) {
	t.Helper()
	sel := h.cfg.Selectors
	h.page.SetCount(sel.InputSurface[0], 1)
	h.page.SetCount(sel.SendButton[0], 1)
	h.page.SetCount(sel.ToolsTrigger[0], 1)
	h.page.SetCount(sel.GeneratedImage[0], 1)
	h.page.SetCount(sel.ImageButton[0], 1)

	h.page.Handle("check-uploaded-image", func([]interface{}) (interface{}, error) { return true, nil })
	h.page.Handle("write-prompt", func([]interface{}) (interface{}, error) { return true, nil })
	h.page.Handle("extract-response-text", func(args []interface{}) (interface{}, error) {
		if selectorArg(args) == "model-response" {
			return "A red fox curled up in fresh snow, soft blue morning light, watercolor.", nil
		}
		return "", nil
	})
	h.page.Handle("option-texts", func(args []interface{}) (interface{}, error) {
		if selectorArg(args) == sel.ToolOption[0] {
			return []string{"Deep Research", "Canvas", "Create image"}, nil
		}
		return nil, nil
	})
	h.page.Handle("find-image-url", func([]interface{}) (interface{}, error) {
		return "https://lh3.googleusercontent.com/gg/fox=w1024-h1024", nil
	})
	h.page.Handle("user-agent", func([]interface{}) (interface{}, error) { return "Mozilla/5.0", nil })

	downloads := 0
	h.page.Handle("click-nth", func(args []interface{}) (interface{}, error) {
		s := selectorArg(args)
		if s == sel.DownloadButton[0] {
			downloads++
			touch(t, h.cfg.App.DownloadDir, fmt.Sprintf("Gemini_Generated_Image_%d.png", downloads), h.clock.Now())
		}
		return true, nil
	})
}

func newEngine(t *testing.T, h *harness, f automation.ImageFetcher) (*automation.Engine, *browsertest.Driver) {
	t.Helper()
	drv := &browsertest.Driver{Page: h.page}
	mgr := browser.NewManager(drv, zaptest.NewLogger(t))
	return automation.NewEngine(mgr, h.cfg, &fakeCopier{}, f, zaptest.NewLogger(t), automation.WithClock(h.clock)), drv
}

func TestEngine_RequiresAcquire(t *testing.T) {
	h := newHarness(t)
	e, _ := newEngine(t, h, &fakeFetcher{})

	assert.ErrorIs(t, e.NavigateToApp(context.Background()), domain.ErrBrowser)
	ok, msg := e.CheckSession(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "browser not started", msg)
	assert.NotPanics(t, func() { e.NewConversation(context.Background()) })
}

func TestEngine_AcquireFailure(t *testing.T) {
	h := newHarness(t)
	drv := &browsertest.Driver{Page: h.page, StartErr: errors.New("chrome not found")}
	e := automation.NewEngine(browser.NewManager(drv, zaptest.NewLogger(t)), h.cfg, &fakeCopier{}, &fakeFetcher{}, zaptest.NewLogger(t))

	err := e.Acquire(context.Background())
	assert.ErrorIs(t, err, domain.ErrBrowser)
	assert.Contains(t, err.Error(), "chrome not found")
}

// Two images: the first arrives by direct fetch, the second only through the
// browser's own download picked up from disk.
func TestEngine_TwoImagesAcrossTiers(t *testing.T) {
	h := newHarness(t)
	scriptedApp(t, h)
	fetcher := &fakeFetcher{errs: []error{nil, errors.New("unexpected HTTP status 403")}}
	e, drv := newEngine(t, h, fetcher)

	runner, err := workflow.NewRunner(e, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	photo := touch(t, t.TempDir(), "photo.png", h.clock.Now())
	req, err := domain.NewWorkflowRequest("alice", photo, 2, true)
	require.NoError(t, err)

	res := runner.Run(context.Background(), workflow.Job{
		Request:     req,
		Strategy:    config.StrategyAnalyzeAndGenerate,
		Instruction: "Describe this photo as a detailed image prompt.",
	})

	require.True(t, res.Success, res.ErrorMessage)
	require.Len(t, res.Paths(), 2)
	assert.Empty(t, res.ErrorMessage)
	assert.True(t, strings.HasPrefix(res.Prompt, "A red fox"))
	for _, p := range res.Paths() {
		assert.Equal(t, h.cfg.App.OutputDir, filepath.Dir(p))
		assert.FileExists(t, p)
	}
	assert.NotEqual(t, res.Paths()[0], res.Paths()[1])
	assert.Len(t, fetcher.reqs, 2)
	assert.Equal(t, h.cfg.App.DownloadDir, h.page.DownloadDir())

	starts, stops := drv.Counts()
	assert.Equal(t, 1, starts, "one browser session for the whole run")
	assert.Equal(t, 1, stops)
}
