// Command vrf-flow runs the end-to-end VRF scenario and reports whether it
// passed. By default it runs against an in-process ledger; with --server it
// runs against a kamui-server that has an oracle attached.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bren2010/kamui/client"
	"github.com/Bren2010/kamui/flow"
	"github.com/Bren2010/kamui/logging"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type options struct {
	server       string
	timeout      time.Duration
	slotDuration time.Duration
	logLevel     string
	jsonLogs     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "vrf-flow",
		Short:         "Run the full VRF flow: subscribe, request, fulfill and consume randomness",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "", "URL of a kamui-server to run against, instead of an in-process ledger.")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "How long to wait for the flow to complete.")
	cmd.Flags().DurationVar(&opts.slotDuration, "slot-duration", 50*time.Millisecond, "Slot duration of the in-process ledger.")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level. Defaults to $"+logging.EnvVar+", then info.")
	cmd.Flags().BoolVar(&opts.jsonLogs, "json", false, "Write logs as JSON.")
	return cmd
}

func run(ctx context.Context, out io.Writer, opts *options) error {
	err := runFlow(ctx, opts)
	if err != nil {
		fmt.Fprintln(out, failureStyle.Render(fmt.Sprintf("VRF flow test failed: %v", err)))
		return err
	}
	fmt.Fprintln(out, successStyle.Render("VRF flow test passed!"))
	return nil
}

func runFlow(ctx context.Context, opts *options) error {
	level, err := logging.Level(opts.logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(level, opts.jsonLogs)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	if opts.server != "" {
		return runRemote(ctx, opts.server, logger)
	}
	return runLocal(ctx, opts.slotDuration, logger)
}

func runLocal(ctx context.Context, slotDuration time.Duration, logger *zap.Logger) error {
	local, err := flow.NewLocal(slotDuration, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	g.Go(func() error { return local.Run(runCtx) })
	g.Go(func() error {
		defer stop()
		_, err := flow.Run(gctx, flow.Config{
			Chain:    local.Chain(),
			Programs: local.Programs,
			VRFKey:   local.VRFKey,
			Logger:   logger.Named("flow"),
		})
		return err
	})
	return g.Wait()
}

func runRemote(ctx context.Context, server string, logger *zap.Logger) error {
	c, err := client.New(server, nil)
	if err != nil {
		return err
	}
	meta, err := c.Meta(ctx)
	if err != nil {
		return err
	}
	logger.Info("connected to server",
		zap.String("server", server),
		zap.Stringer("coordinator", meta.Programs.Coordinator),
	)
	_, err = flow.Run(ctx, flow.Config{
		Chain:    c,
		Programs: meta.Programs,
		VRFKey:   meta.VRFKey,
		Logger:   logger.Named("flow"),
	})
	return err
}
