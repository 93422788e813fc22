package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/service"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

// ErrSessionInactive is returned when the profile is not signed in.
var ErrSessionInactive = errors.New("session inactive")

func newSessionCmd(a *app) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the browser session",
	}
	sessionCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Start the browser and report whether the app session is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			factory := newComponentFactory(service.WithReporter(workflow.NopReporter{}))
			return checkSession(cmd.Context(), observability.GetLogger(), a.cfg, factory, cmd.OutOrStdout())
		},
	})
	return sessionCmd
}

// checkSession opens the app and prints the session status.
func checkSession(ctx context.Context, logger *zap.Logger, cfg *config.Config, factory service.ComponentFactory, out io.Writer) error {
	components, err := factory.Create(ctx, cfg, logger)
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
	ok, msg := b.CheckSession(ctx)
	fmt.Fprintf(out, "Session: %s\n", msg)
	if !ok {
		fmt.Fprintln(out, "Run `remixer login` to sign in.")
		return ErrSessionInactive
	}
	return nil
}
