package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/poll"
	"github.com/xkilldash9x/remixer/internal/service"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

const metricsShutdownTimeout = 5 * time.Second

// runOptions are the flag values of the run command.
type runOptions struct {
	photo      string
	count      int
	strategy   string
	prompt     string
	promptFile string
	copyPrompt bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	runCmd := &cobra.Command{
		Use:   "run [photo]",
		Short: "Generate new images from a photo, or from a prompt with --strategy direct_generate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.photo = args[0]
			}
			cfg := a.cfg
			reporter := workflow.NewTerminalReporter(cmd.ErrOrStderr(), cfg.Workflow.ProgressInterval, poll.RealClock())
			factory := newComponentFactory(service.WithReporter(reporter))
			return runGeneration(cmd.Context(), observability.GetLogger(), cfg, opts, factory, cmd.OutOrStdout())
		},
	}

	runCmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Number of images to generate, 1-9. (Overrides workflow.default_count)")
	runCmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Workflow strategy: analyze_and_generate or direct_generate. (Overrides workflow.strategy)")
	runCmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Prompt text. Generation prompt for direct_generate, analysis prompt otherwise.")
	runCmd.Flags().StringVar(&opts.promptFile, "prompt-file", "", "Read the prompt text from a file.")
	runCmd.Flags().BoolVar(&opts.copyPrompt, "copy-prompt", false, "Copy the final generation prompt to the clipboard.")
	runCmd.MarkFlagsMutuallyExclusive("prompt", "prompt-file")
	return runCmd
}

// buildJob resolves flags against the configuration into a validated job.
func buildJob(cfg *config.Config, opts runOptions) (workflow.Job, error) {
	strategyName := opts.strategy
	if strategyName == "" {
		strategyName = cfg.Workflow.Strategy
	}
	strategy, err := workflow.StrategyFor(strategyName)
	if err != nil {
		return workflow.Job{}, err
	}
	count := opts.count
	if count == 0 {
		count = cfg.Workflow.DefaultCount
	}

	text := opts.prompt
	if opts.promptFile != "" {
		data, err := os.ReadFile(opts.promptFile)
		if err != nil {
			return workflow.Job{}, domain.ValidationError(fmt.Sprintf("cannot read prompt file: %s", opts.promptFile))
		}
		text = string(data)
	}

	analyze := strategy.Name() == config.StrategyAnalyzeAndGenerate
	req, err := domain.NewWorkflowRequest(os.Getenv("USER"), opts.photo, count, analyze)
	if err != nil {
		return workflow.Job{}, err
	}

	job := workflow.Job{Request: req, Strategy: strategy.Name()}
	if analyze {
		if strings.TrimSpace(text) == "" {
			if text, err = cfg.Workflow.LoadSystemPrompt(); err != nil {
				return workflow.Job{}, domain.ConfigurationError("no analysis prompt available", err)
			}
		}
		job.Instruction = text
	} else {
		job.Prompt = text
	}
	if err := strategy.Validate(job); err != nil {
		return workflow.Job{}, err
	}
	return job, nil
}

// runGeneration executes one job end to end. A run that produced no image is
// an error; a partial run is not.
func runGeneration(ctx context.Context, logger *zap.Logger, cfg *config.Config, opts runOptions, factory service.ComponentFactory, out io.Writer) error {
	job, err := buildJob(cfg, opts)
	if err != nil {
		return err
	}

	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	logger.Info("Starting run",
		zap.String("request_id", job.Request.ID),
		zap.String("strategy", job.Strategy),
		zap.Int("count", job.Request.Count.Int()),
		zap.String("driver", components.Backend.Name()),
	)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	if components.Metrics != nil {
		serveMetrics(serveCtx, g, cfg.Metrics.ListenAddr, components.Metrics, logger)
	}

	result, procErr := components.Orchestrator.Process(ctx, job)
	stopServing()
	if err := g.Wait(); err != nil {
		logger.Warn("Metrics server did not shut down cleanly.", zap.Error(err))
	}
	if procErr != nil {
		return procErr
	}

	for _, p := range result.Paths() {
		fmt.Fprintln(out, p)
	}
	if opts.copyPrompt && result.Prompt != "" && components.Clipboard != nil {
		if err := components.Clipboard.CopyText(result.Prompt); err != nil {
			logger.Warn("Could not copy the prompt to the clipboard.", zap.Error(err))
		}
	}

	if result.Success {
		return nil
	}
	if result.Err != nil && errors.Is(result.Err, context.Canceled) {
		return result.Err
	}
	return fmt.Errorf("run failed: %s", result.ErrorMessage)
}

// serveMetrics exposes the registry until ctx ends. A listener failure is
// logged and does not stop the run.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, m *observability.Metrics, logger *zap.Logger) {
	srv := &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		logger.Info("Serving metrics.", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped.", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
