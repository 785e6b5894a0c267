package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenCycler/internal/selection"
)

var applyCmd = &cobra.Command{
	Use:   "apply LAYOUT",
	Short: "Apply a layout",
	Long: `Apply a layout by its display string, as shown by "screencycler list".
Configured workspaces are moved when the layout extends over several
outputs.`,
	Example: `  # Laptop panel only
  screencycler apply eDP1

  # Extend onto an external monitor
  screencycler apply eDP1+DP1

  # Print the xrandr command without running it
  screencycler apply eDP1=DP1 --dry-run --log-level debug`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var applyDryRun bool

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "log the layout command instead of running it")
}

func runApply(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(configMgr, runtimeOptions{DryRun: applyDryRun, OneShot: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	status, err := rt.switcher.ApplyDisplay(context.Background(), args[0])
	if errors.Is(err, selection.ErrNotAvailable) {
		return fmt.Errorf("%q is not an available layout", args[0])
	}
	if err != nil {
		return err
	}
	if applyDryRun {
		fmt.Printf("Dry run, active layout unchanged: %s\n", status.Active)
		return nil
	}
	fmt.Printf("Applied layout: %s\n", status.Active)
	return nil
}
