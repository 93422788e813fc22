package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/workflow"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(a.cfg, cmd.OutOrStdout())
		},
	}
}

func printStatus(cfg *config.Config, out io.Writer) error {
	profile := "missing"
	if cfg.Browser.ProfileDir == "" {
		profile = "none (temporary profile)"
	} else if info, err := os.Stat(cfg.Browser.ProfileDir); err == nil && info.IsDir() {
		profile = "present"
	}

	strategy := cfg.Workflow.Strategy
	if s, err := workflow.StrategyFor(strategy); err == nil {
		strategy = fmt.Sprintf("%s (%s)", s.Name(), s.Description())
	}
	metrics := "disabled"
	if cfg.Metrics.Enabled {
		metrics = cfg.Metrics.ListenAddr
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Driver:\t%s (headless=%t)\n", cfg.Browser.Driver, cfg.Browser.Headless)
	fmt.Fprintf(w, "App URL:\t%s\n", cfg.App.URL)
	fmt.Fprintf(w, "Profile:\t%s [%s]\n", cfg.Browser.ProfileDir, profile)
	fmt.Fprintf(w, "Output dir:\t%s\n", cfg.App.OutputDir)
	fmt.Fprintf(w, "Download dir:\t%s\n", cfg.App.DownloadDir)
	fmt.Fprintf(w, "Strategy:\t%s\n", strategy)
	fmt.Fprintf(w, "Default count:\t%d\n", cfg.Workflow.DefaultCount)
	fmt.Fprintf(w, "Clipboard:\t%s\n", cfg.Clipboard.Command)
	fmt.Fprintf(w, "Metrics:\t%s\n", metrics)
	return w.Flush()
}
