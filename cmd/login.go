package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/service"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open a visible browser on the app so you can sign in; the profile keeps the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory := newComponentFactory(service.WithReporter(workflow.NopReporter{}))
			return login(cmd.Context(), observability.GetLogger(), a.cfg, factory, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// login always runs headful on a copy of cfg.
func login(ctx context.Context, logger *zap.Logger, cfg *config.Config, factory service.ComponentFactory, in io.Reader, out io.Writer) error {
	headful := *cfg
	headful.Browser.Headless = false

	components, err := factory.Create(ctx, &headful, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	b := components.Backend
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	if err := b.NavigateToApp(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "Sign in to %s in the browser window, then press Enter here.\n", cfg.App.URL)
	if !waitForEnter(ctx, in) {
		// The profile is saved on shutdown either way.
		fmt.Fprintln(out)
	}

	checkCtx := context.WithoutCancel(ctx)
	ok, msg := b.CheckSession(checkCtx)
	fmt.Fprintf(out, "Session: %s\n", msg)
	if !ok {
		return ErrSessionInactive
	}
	logger.Info("Session saved to the browser profile.", zap.String("profile_dir", cfg.Browser.ProfileDir))
	return nil
}

// waitForEnter blocks until a line is read from in or ctx ends, reporting
// whether the line arrived. On cancellation the pending read is interrupted
// when in allows it; a terminal stdin that cannot be interrupted is left to
// the process exit.
func waitForEnter(ctx context.Context, in io.Reader) bool {
	entered := make(chan struct{})
	go func() {
		defer close(entered)
		_, _ = bufio.NewReader(in).ReadString('\n')
	}()
	select {
	case <-entered:
		return true
	case <-ctx.Done():
	}
	if interruptRead(in) {
		<-entered
	}
	return false
}

func interruptRead(in io.Reader) bool {
	switch r := in.(type) {
	case *os.File:
		return r.SetReadDeadline(time.Now()) == nil
	case io.Closer:
		return r.Close() == nil
	default:
		return false
	}
}
