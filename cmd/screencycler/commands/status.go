package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current layout",
	Long:  `Run one detection cycle and print the resulting status.`,
	Example: `  # Human readable
  screencycler status

  # As JSON
  screencycler status --format json`,
	RunE: runStatus,
}

var statusFormat string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "output format (text or json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	// a one-shot status never reconfigures the hardware
	rt, err := newRuntime(configMgr, runtimeOptions{DryRun: true, OneShot: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	status, err := rt.switcher.Cycle(context.Background())
	if err != nil {
		return err
	}

	switch statusFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	case "text":
		fmt.Printf("Displayed: %s\n", status.Displayed)
		fmt.Printf("Active:    %s\n", status.Active)
		fmt.Printf("State:     %s\n", status.Class)
		fmt.Printf("Layouts:   %d\n", len(status.Available))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", statusFormat)
	}
}
