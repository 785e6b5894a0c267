package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenCycler/internal/api"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/switcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ScreenCycler API server",
	Long: `Start the HTTP API with periodic output detection.

The server exposes the current layout, the available layouts and the
next/previous/select/apply actions over REST, and pushes every status
change over a WebSocket stream.`,
	Example: `  # Start server on default port (8080)
  screencycler serve

  # Start server on custom port
  screencycler serve --port 9090

  # Start with debug logging
  screencycler serve --log-level debug`,
	RunE: runServe,
}

var serveDryRun bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "log layout commands instead of running them")
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	log := logger.WithComponent("serve")
	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	rt, err := newRuntime(configMgr, runtimeOptions{DryRun: serveDryRun, Watch: true, Hub: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	forwardSignal(ctx, syscall.SIGUSR1, func() { rt.refresh.Refresh(ctx) })
	rt.watch(ctx)
	go pollLoop(ctx, rt)

	server := api.NewServer(rt.switcher, configMgr, rt.hub)
	log.Info().
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("ScreenCycler is running, press Ctrl+C to stop")

	if err := server.Start(ctx, cfg.ServerPort); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("Shutting down gracefully")
	return nil
}

// pollLoop cycles the switcher every poll interval and on refresh.
func pollLoop(ctx context.Context, rt *runtime) {
	log := logger.WithComponent("serve")
	cycle := func() {
		if _, err := rt.switcher.Cycle(ctx); err != nil {
			log.Warn().Err(err).Msg("Cycle failed")
		}
	}
	cycle()

	timer := time.NewTimer(rt.pollInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.refresh.C():
		case <-timer.C:
		}
		cycle()
		timer.Reset(rt.pollInterval())
	}
}

var _ api.Controller = (*switcher.Switcher)(nil)
