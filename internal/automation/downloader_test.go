package automation_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/remixer/internal/automation"
	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/network"
	"github.com/xkilldash9x/remixer/internal/observability"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n0000")

type fakeFetcher struct {
	mu   sync.Mutex
	errs []error // per call; missing entries succeed
	reqs []network.FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req network.FetchRequest) (*network.Fetched, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if n := len(f.reqs) - 1; n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	return &network.Fetched{Data: pngMagic, ContentType: "image/png", Extension: ".png"}, nil
}

func TestHighQualityURL(t *testing.T) {
	tests := map[string]string{
		"https://lh3.googleusercontent.com/gg/abcXYZ=w512-h512":    "https://lh3.googleusercontent.com/gg/abcXYZ=s4096",
		"https://lh3.googleusercontent.com/gg/abcXYZ=s1024-rj=foo": "https://lh3.googleusercontent.com/gg/abcXYZ=s4096",
		"https://lh3.googleusercontent.com/gg/abcXYZ":              "https://lh3.googleusercontent.com/gg/abcXYZ",
	}
	for in, want := range tests {
		assert.Equal(t, want, automation.HighQualityURL(in), in)
	}
}

// touch writes an image into dir with the given modification time.
func touch(t *testing.T, dir, name string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pngMagic, 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestScanner_ScanRecent(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	dl := h.cfg.App.DownloadDir
	other := t.TempDir()

	touch(t, dl, "old.png", now.Add(-2*time.Minute))
	touch(t, dl, "fresh.jpg", now.Add(-20*time.Second))
	newest := touch(t, other, "newest.webp", now.Add(-5*time.Second))
	touch(t, other, "notes.txt", now)
	touch(t, dl, "generated_deadbeef.png", now)

	s := automation.NewScanner([]string{dl, other, filepath.Join(other, "missing")}, h.cfg.App.OutputDir, 30*time.Second, h.clock, zaptest.NewLogger(t))
	got, err := s.ScanRecent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newest, got)

	h.clock.Advance(time.Minute)
	_, err = s.ScanRecent(context.Background())
	assert.ErrorIs(t, err, domain.ErrDownload, "everything is stale a minute later")
}

func TestScanner_DefaultDirs(t *testing.T) {
	h := newHarness(t)
	home := os.Getenv("HOME")
	s := automation.NewScanner([]string{h.cfg.App.DownloadDir, "~/Downloads"}, h.cfg.App.OutputDir, time.Second, h.clock, zaptest.NewLogger(t))
	assert.Equal(t, []string{
		h.cfg.App.DownloadDir,
		filepath.Join(home, "Downloads"),
		filepath.Join(home, "İndirilenler"),
	}, s.Dirs())
}

func TestScanner_Claim(t *testing.T) {
	h := newHarness(t)
	s := automation.NewScanner(nil, h.cfg.App.OutputDir, 30*time.Second, h.clock, zaptest.NewLogger(t))

	src := touch(t, h.cfg.App.DownloadDir, "Gemini_Generated_Image.jpeg", h.clock.Now())
	art, err := s.Claim(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.cfg.App.OutputDir, "generated_"+art.ID()+".jpeg"), art.Path())
	assert.True(t, art.IsValid())
	assert.NoFileExists(t, src)
	assert.FileExists(t, art.Path())

	inPlace := touch(t, h.cfg.App.OutputDir, "already-here.png", h.clock.Now())
	art, err = s.Claim(inPlace)
	require.NoError(t, err)
	assert.Equal(t, inPlace, art.Path())
}

func newDownloader(t *testing.T, h *harness, f automation.ImageFetcher) *automation.Downloader {
	t.Helper()
	s := automation.NewScanner([]string{h.cfg.App.DownloadDir}, h.cfg.App.OutputDir, h.cfg.Timeouts.FreshnessWindow, h.clock, zaptest.NewLogger(t))
	return automation.NewDownloader(h.deps, f, s, observability.NewMetrics())
}

func TestDownloader_DirectFetch(t *testing.T) {
	h := newHarness(t)
	h.page.SetCookies(&http.Cookie{Name: "__Secure-1PSID", Value: "s3cr3t"})
	h.page.Handle("find-image-url", func(args []interface{}) (interface{}, error) {
		assert.Equal(t, "googleusercontent.com/gg/", args[0])
		assert.Equal(t, 300, args[1])
		return "https://lh3.googleusercontent.com/gg/abcXYZ=w512-h512", nil
	})
	h.page.Handle("user-agent", func([]interface{}) (interface{}, error) { return "Mozilla/5.0 test", nil })
	f := &fakeFetcher{}

	art, err := newDownloader(t, h, f).Download(context.Background())
	require.NoError(t, err)

	require.Len(t, f.reqs, 1)
	req := f.reqs[0]
	assert.Equal(t, "https://lh3.googleusercontent.com/gg/abcXYZ=s4096", req.URL)
	assert.Equal(t, "Mozilla/5.0 test", req.UserAgent)
	assert.Equal(t, "https://gemini.google.com/", req.Referer)
	require.Len(t, req.Cookies, 1)
	assert.Equal(t, "s3cr3t", req.Cookies[0].Value)

	assert.Equal(t, h.cfg.App.OutputDir, filepath.Dir(art.Path()))
	assert.True(t, strings.HasPrefix(art.Filename(), "generated_"))
	assert.Equal(t, ".png", art.Extension())
	data, err := os.ReadFile(art.Path())
	require.NoError(t, err)
	assert.Equal(t, pngMagic, data)
	assert.Equal(t, 0, h.page.CountCalls("script click-nth"), "later tiers are not attempted")
}

func TestDownloader_FallsBackToButtonAndScan(t *testing.T) {
	h := newHarness(t)
	h.page.Handle("find-image-url", func([]interface{}) (interface{}, error) {
		return "https://lh3.googleusercontent.com/gg/abc=w512", nil
	})
	h.page.SetCount(h.cfg.Selectors.ImageButton[0], 1)
	download := h.cfg.Selectors.DownloadButton[2]
	h.page.Handle("click-nth", func(args []interface{}) (interface{}, error) {
		switch selectorArg(args) {
		case h.cfg.Selectors.ImageButton[0]:
			return true, nil
		case download:
			touch(t, h.cfg.App.DownloadDir, "Gemini_Generated_Image_x1.png", h.clock.Now())
			return true, nil
		}
		return false, nil
	})
	f := &fakeFetcher{errs: []error{errors.New("unexpected HTTP status 403")}}

	art, err := newDownloader(t, h, f).Download(context.Background())
	require.NoError(t, err)

	assert.Equal(t, h.cfg.App.OutputDir, filepath.Dir(art.Path()))
	assert.FileExists(t, art.Path())
	assert.NoFileExists(t, filepath.Join(h.cfg.App.DownloadDir, "Gemini_Generated_Image_x1.png"))
}

func TestDownloader_AllTiersFail(t *testing.T) {
	h := newHarness(t)
	f := &fakeFetcher{}

	_, err := newDownloader(t, h, f).Download(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDownload)
	assert.True(t, strings.HasPrefix(err.Error(), "all download strategies failed"))
	assert.Empty(t, f.reqs, "no URL, no request")
}

func TestGenerator_WaitForImageGeneration(t *testing.T) {
	h := newHarness(t)
	g := automation.NewGenerator(h.deps, nil, nil, nil, false)

	err := g.WaitForImageGeneration(context.Background(), 10*time.Second)
	assert.ErrorIs(t, err, domain.ErrImageGeneration)

	h.page.SetCount(h.cfg.Selectors.GeneratedImage[1], 1)
	assert.NoError(t, g.WaitForImageGeneration(context.Background(), 10*time.Second))
}

func TestGenerator_RequireToolSelection(t *testing.T) {
	h := newHarness(t)
	tools := automation.NewToolSelector(h.deps, automation.RankedResolver{})
	g := automation.NewGenerator(h.deps, tools, automation.NewPromptManager(h.deps), nil, true)

	_, err := g.Generate(context.Background(), "a fox", nil)
	assert.ErrorIs(t, err, domain.ErrImageGeneration)
	assert.Equal(t, 0, h.page.CountCalls("script write-prompt"))
}
