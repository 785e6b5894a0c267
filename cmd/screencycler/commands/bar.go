package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenCycler/internal/bar"
)

var barCmd = &cobra.Command{
	Use:   "bar",
	Short: "Run as a status bar block",
	Long: `Write status lines to stdout and read click events from stdin.

Mouse buttons:
  scroll down   next layout
  left / up     previous layout
  middle        re-select the head of the list
  right         apply the displayed layout

Sending SIGUSR1 forces an immediate refresh.`,
	Example: `  # i3bar / swaybar
  bar {
      status_command screencycler bar
  }

  # plain text for polybar or scripts
  screencycler bar --protocol plain`,
	RunE: runBar,
}

var (
	barProtocol string
	barNoWatch  bool
)

func init() {
	rootCmd.AddCommand(barCmd)

	barCmd.Flags().StringVarP(&barProtocol, "protocol", "p", "i3bar", "status line protocol (i3bar or plain)")
	barCmd.Flags().BoolVar(&barNoWatch, "no-watch", false, "disable RandR hotplug detection")
}

func runBar(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	sink, err := bar.NewSink(barProtocol, os.Stdout)
	if err != nil {
		return err
	}

	rt, err := newRuntime(configMgr, runtimeOptions{Watch: !barNoWatch})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	forwardSignal(ctx, syscall.SIGUSR1, func() { rt.refresh.Refresh(ctx) })
	rt.watch(ctx)

	loop := &bar.Loop{
		Controller: rt.switcher,
		Sink:       sink,
		Clicks:     os.Stdin,
		Interval:   rt.pollInterval,
		Refresh:    rt.refresh.C(),
	}
	return loop.Run(ctx)
}

// forwardSignal calls fn each time sig arrives until ctx is done.
func forwardSignal(ctx context.Context, sig os.Signal, fn func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				fn()
			}
		}
	}()
}
