package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/service"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

// -- Helpers --

// createTempConfig writes a config file that keeps logs and images inside the test dir.
func createTempConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := "logger:\n" +
		"  level: error\n" +
		"  log_file: " + filepath.Join(dir, "remixer.log") + "\n" +
		"app:\n" +
		"  output_dir: " + filepath.Join(dir, "images") + "\n" +
		"  download_dir: " + filepath.Join(dir, "images", "downloads") + "\n" +
		extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// executeCommand runs the full command tree with a fresh logger.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.App.OutputDir = t.TempDir()
	cfg.App.DownloadDir = filepath.Join(cfg.App.OutputDir, "downloads")
	cfg.Workflow.SystemPrompt = "Describe this photo as an image prompt."
	return cfg
}

func writePhoto(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	return path
}

// stubBackend is a signed-in app that produces images on demand.
type stubBackend struct {
	mu       sync.Mutex
	active   bool
	genErr   error
	outDir   string
	acquired int
	released int
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Acquire(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired++
	return nil
}

func (s *stubBackend) Release(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

func (s *stubBackend) CheckSession(context.Context) (bool, string) {
	if s.active {
		return true, "session active"
	}
	return false, "session inactive: sign in required"
}

func (s *stubBackend) NavigateToApp(context.Context) error { return nil }

func (s *stubBackend) NewConversation(context.Context) {}

func (s *stubBackend) Analyze(ctx context.Context, _, _ string, report domain.PhaseFunc) (string, error) {
	report(domain.PhaseUploaded, "")
	report(domain.PhasePromptSent, "")
	report(domain.PhaseAwaitingResponse, "")
	return "A lighthouse at dusk, oil painting, warm palette.", nil
}

func (s *stubBackend) Generate(ctx context.Context, _ string, report domain.PhaseFunc) (domain.ImageArtifact, error) {
	if s.genErr != nil {
		return domain.ImageArtifact{}, s.genErr
	}
	report(domain.PhaseToolSelected, "")
	report(domain.PhaseGenPromptSent, "")
	report(domain.PhaseAwaitingGeneration, "")
	report(domain.PhaseDownloading, "")
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return domain.ImageArtifact{}, err
	}
	id := domain.ShortID()
	path := filepath.Join(s.outDir, domain.GeneratedFilename(id, ".png"))
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		return domain.ImageArtifact{}, err
	}
	return domain.NewImageArtifactWithID(id, path, time.Now()), nil
}

// MockComponentFactory is a testify mock of service.ComponentFactory.
type MockComponentFactory struct {
	mock.Mock
}

func (m *MockComponentFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*service.Components, error) {
	args := m.Called(ctx, cfg, logger)
	c, _ := args.Get(0).(*service.Components)
	return c, args.Error(1)
}

func stubComponents(t *testing.T, cfg *config.Config, b *stubBackend) *service.Components {
	t.Helper()
	logger := zaptest.NewLogger(t)
	runner, err := workflow.NewRunner(b, nil, logger)
	require.NoError(t, err)
	orch, err := workflow.NewOrchestrator(runner, workflow.NewTracker(), logger)
	require.NoError(t, err)
	return &service.Components{Config: cfg, Backend: b, Orchestrator: orch}
}

// -- Root and configuration --

func TestRootCmd_Version(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "remixer version "+Version+"\n", out)

	out, err = executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestInitializeConfig(t *testing.T) {
	t.Run("FileOverridesDefaults", func(t *testing.T) {
		path := createTempConfig(t, "workflow:\n  default_count: 4\nbrowser:\n  driver: playwright\n")
		cfg, err := initializeConfig(viper.New(), path, "")
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Workflow.DefaultCount)
		assert.Equal(t, config.DriverPlaywright, cfg.Browser.Driver)
		assert.Equal(t, "https://gemini.google.com/app", cfg.App.URL)
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		path := createTempConfig(t, "workflow:\n  default_count: 4\n")
		t.Setenv("REMIXER_WORKFLOW_DEFAULT_COUNT", "7")
		cfg, err := initializeConfig(viper.New(), path, "")
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Workflow.DefaultCount)
	})

	t.Run("DotEnvFile", func(t *testing.T) {
		path := createTempConfig(t, "")
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("REMIXER_WORKFLOW_STRATEGY=direct_generate\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("REMIXER_WORKFLOW_STRATEGY") })

		cfg, err := initializeConfig(viper.New(), path, envFile)
		require.NoError(t, err)
		assert.Equal(t, config.StrategyDirectGenerate, cfg.Workflow.Strategy)
	})

	t.Run("MissingDotEnvIgnored", func(t *testing.T) {
		path := createTempConfig(t, "")
		_, err := initializeConfig(viper.New(), path, filepath.Join(t.TempDir(), "nope.env"))
		assert.NoError(t, err)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := initializeConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("InvalidValues", func(t *testing.T) {
		path := createTempConfig(t, "workflow:\n  default_count: 12\n")
		_, err := initializeConfig(viper.New(), path, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "default_count")
	})
}

func TestStatusCmd(t *testing.T) {
	path := createTempConfig(t, "metrics:\n  enabled: true\n")
	out, err := executeCommand(t, "status", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "chromedp")
	assert.Contains(t, out, "https://gemini.google.com/app")
	assert.Contains(t, out, filepath.Join(filepath.Dir(path), "images"))
	assert.Contains(t, out, "analyze_and_generate")
	assert.Contains(t, out, "127.0.0.1:9464")
}

func TestPrintStatus_Profile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.ProfileDir = t.TempDir()
	var out bytes.Buffer
	require.NoError(t, printStatus(cfg, &out))
	assert.Contains(t, out.String(), "[present]")

	cfg.Browser.ProfileDir = filepath.Join(cfg.Browser.ProfileDir, "gone")
	out.Reset()
	require.NoError(t, printStatus(cfg, &out))
	assert.Contains(t, out.String(), "[missing]")
}

// -- run --

func TestBuildJob(t *testing.T) {
	photo := writePhoto(t)
	promptFile := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(promptFile, []byte("a koi pond in the rain"), 0o600))

	tests := []struct {
		name    string
		opts    runOptions
		wantErr error
		check   func(t *testing.T, job workflow.Job)
	}{
		{
			name: "AnalyzeUsesSystemPrompt",
			opts: runOptions{photo: photo, count: 3},
			check: func(t *testing.T, job workflow.Job) {
				assert.Equal(t, config.StrategyAnalyzeAndGenerate, job.Strategy)
				assert.Equal(t, "Describe this photo as an image prompt.", job.Instruction)
				assert.Equal(t, 3, job.Request.Count.Int())
				assert.Equal(t, photo, job.Request.SourceImage)
			},
		},
		{
			name: "AnalyzePromptFlagWins",
			opts: runOptions{photo: photo, prompt: "Only describe the colours."},
			check: func(t *testing.T, job workflow.Job) {
				assert.Equal(t, "Only describe the colours.", job.Instruction)
				assert.Equal(t, 1, job.Request.Count.Int(), "default count")
			},
		},
		{
			name:    "AnalyzeNeedsPhoto",
			opts:    runOptions{},
			wantErr: domain.ErrValidation,
		},
		{
			name: "DirectFromFile",
			opts: runOptions{strategy: config.StrategyDirectGenerate, promptFile: promptFile, count: 2},
			check: func(t *testing.T, job workflow.Job) {
				assert.Equal(t, "a koi pond in the rain", job.Prompt)
				assert.Empty(t, job.Request.SourceImage)
			},
		},
		{
			name:    "DirectNeedsPrompt",
			opts:    runOptions{strategy: config.StrategyDirectGenerate},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "CountOutOfRange",
			opts:    runOptions{photo: photo, count: 10},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "UnknownStrategy",
			opts:    runOptions{photo: photo, strategy: "upscale"},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "MissingPromptFile",
			opts:    runOptions{strategy: config.StrategyDirectGenerate, promptFile: "/does/not/exist"},
			wantErr: domain.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := buildJob(testConfig(t), tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, job)
		})
	}
}

func TestBuildJob_NoSystemPrompt(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.SystemPrompt = ""
	cfg.Workflow.SystemPromptFile = filepath.Join(t.TempDir(), "missing.txt")

	_, err := buildJob(cfg, runOptions{photo: writePhoto(t)})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRunGeneration(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		cfg := testConfig(t)
		b := &stubBackend{active: true, outDir: cfg.App.OutputDir}
		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, cfg, mock.AnythingOfType("*zap.Logger")).Return(stubComponents(t, cfg, b), nil).Once()

		var out bytes.Buffer
		err := runGeneration(ctx, zaptest.NewLogger(t), cfg, runOptions{photo: writePhoto(t), count: 2}, factory, &out)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		for _, p := range lines {
			assert.FileExists(t, p)
		}
		assert.Equal(t, 1, b.acquired)
		assert.Equal(t, 2, b.released, "runner release plus shutdown")
		factory.AssertExpectations(t)
	})

	t.Run("SessionInactive", func(t *testing.T) {
		cfg := testConfig(t)
		b := &stubBackend{outDir: cfg.App.OutputDir}
		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, cfg, mock.Anything).Return(stubComponents(t, cfg, b), nil)

		var out bytes.Buffer
		err := runGeneration(ctx, zaptest.NewLogger(t), cfg, runOptions{photo: writePhoto(t)}, factory, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remixer login")
		assert.Empty(t, out.String())
	})

	t.Run("GenerationFails", func(t *testing.T) {
		cfg := testConfig(t)
		b := &stubBackend{active: true, outDir: cfg.App.OutputDir, genErr: domain.DownloadError("all download strategies failed", nil)}
		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, cfg, mock.Anything).Return(stubComponents(t, cfg, b), nil)

		err := runGeneration(ctx, zaptest.NewLogger(t), cfg, runOptions{photo: writePhoto(t)}, factory, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all download strategies failed")
	})

	t.Run("Cancelled", func(t *testing.T) {
		cfg := testConfig(t)
		b := &stubBackend{active: true, outDir: cfg.App.OutputDir}
		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, cfg, mock.Anything).Return(stubComponents(t, cfg, b), nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := runGeneration(cctx, zaptest.NewLogger(t), cfg, runOptions{photo: writePhoto(t)}, factory, &bytes.Buffer{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("FactoryError", func(t *testing.T) {
		cfg := testConfig(t)
		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, cfg, mock.Anything).Return(nil, domain.ConfigurationError("unknown browser driver", nil))

		err := runGeneration(ctx, zaptest.NewLogger(t), cfg, runOptions{photo: writePhoto(t)}, factory, &bytes.Buffer{})
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("InvalidJobSkipsFactory", func(t *testing.T) {
		cfg := testConfig(t)
		factory := new(MockComponentFactory)

		err := runGeneration(ctx, zaptest.NewLogger(t), cfg, runOptions{count: 3}, factory, &bytes.Buffer{})
		assert.ErrorIs(t, err, domain.ErrValidation)
		factory.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRunCmd_UsesInjectedFactory(t *testing.T) {
	path := createTempConfig(t, "workflow:\n  strategy: direct_generate\n")
	var created *stubBackend
	newComponentFactory = func(opts ...service.FactoryOption) service.ComponentFactory {
		return factoryFunc(func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*service.Components, error) {
			created = &stubBackend{active: true, outDir: cfg.App.OutputDir}
			return stubComponents(t, cfg, created), nil
		})
	}
	t.Cleanup(func() { newComponentFactory = service.NewComponentFactory })

	out, err := executeCommand(t, "run", "--config", path, "--prompt", "a paper crane on a desk", "-n", "1")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Contains(t, out, filepath.Join(filepath.Dir(path), "images", "generated_"))
}

type factoryFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*service.Components, error)

func (f factoryFunc) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*service.Components, error) {
	return f(ctx, cfg, logger)
}

// -- session and login --

func TestCheckSession(t *testing.T) {
	for _, active := range []bool{true, false} {
		cfg := testConfig(t)
		b := &stubBackend{active: active}
		factory := new(MockComponentFactory)
		factory.On("Create", mock.Anything, cfg, mock.Anything).Return(stubComponents(t, cfg, b), nil)

		var out bytes.Buffer
		err := checkSession(context.Background(), zaptest.NewLogger(t), cfg, factory, &out)
		if active {
			require.NoError(t, err)
			assert.Contains(t, out.String(), "Session: session active")
		} else {
			assert.ErrorIs(t, err, ErrSessionInactive)
			assert.Contains(t, out.String(), "remixer login")
		}
		assert.Equal(t, 1, b.acquired)
		assert.Equal(t, 1, b.released)
	}
}

func TestLogin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Browser.Headless = true
	b := &stubBackend{active: true}
	factory := new(MockComponentFactory)
	factory.On("Create", mock.Anything, mock.MatchedBy(func(c *config.Config) bool {
		return !c.Browser.Headless
	}), mock.Anything).Return(stubComponents(t, cfg, b), nil)

	var out bytes.Buffer
	err := login(context.Background(), zaptest.NewLogger(t), cfg, factory, strings.NewReader("\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "press Enter")
	assert.Contains(t, out.String(), "Session: session active")
	assert.True(t, cfg.Browser.Headless, "caller's config is untouched")
	factory.AssertExpectations(t)
}

func TestLogin_StillSignedOut(t *testing.T) {
	cfg := testConfig(t)
	b := &stubBackend{}
	factory := new(MockComponentFactory)
	factory.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(stubComponents(t, cfg, b), nil)

	err := login(context.Background(), zaptest.NewLogger(t), cfg, factory, strings.NewReader("\n"), &bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrSessionInactive))
}

func TestLogin_CancelledBeforeEnter(t *testing.T) {
	pipeReader := func(t *testing.T) io.Reader {
		r, w := io.Pipe()
		t.Cleanup(func() { _ = w.Close() })
		return r
	}
	fileReader := func(t *testing.T) io.Reader {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = w.Close()
			_ = r.Close()
		})
		return r
	}

	for name, newIn := range map[string]func(*testing.T) io.Reader{"pipe": pipeReader, "file": fileReader} {
		t.Run(name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			cfg := testConfig(t)
			b := &stubBackend{active: true}
			factory := new(MockComponentFactory)
			factory.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(stubComponents(t, cfg, b), nil)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var out bytes.Buffer
			err := login(ctx, zaptest.NewLogger(t), cfg, factory, newIn(t), &out)
			require.NoError(t, err)
			assert.Contains(t, out.String(), "Session: session active")
		})
	}
}
