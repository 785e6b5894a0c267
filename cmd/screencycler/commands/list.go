package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenCycler/internal/switcher"
	"github.com/bryanchriswhite/ScreenCycler/internal/topology"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available layouts",
	Long: `List every layout the connected outputs can form, starting with the
one that would be displayed.`,
	Example: `  # List layouts in table format (default)
  screencycler list

  # List layouts in JSON format
  screencycler list --format json

  # List detected outputs instead
  screencycler list --outputs`,
	RunE: runList,
}

var (
	listFormat  string
	listOutputs bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCmd.Flags().BoolVarP(&listOutputs, "outputs", "o", false, "show detected outputs")
}

func runList(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(configMgr, runtimeOptions{DryRun: true, OneShot: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.switcher.Cycle(context.Background()); err != nil {
		return err
	}

	if listOutputs {
		return printTopology(rt.switcher.Topology())
	}

	views := rt.switcher.Combinations()
	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(views)
	case "table":
		return printViewsTable(views)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printViewsTable(views []switcher.View) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "LAYOUT\tMODE\tOUTPUTS\tACTIVE")
	fmt.Fprintln(w, "------\t----\t-------\t------")

	for _, v := range views {
		active := "No"
		if v.Active {
			active = "Yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Display, v.Mode, strings.Join(v.Outputs, ","), active)
	}

	return nil
}

func printTopology(topo *topology.Topology) error {
	if listFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(topo)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "OUTPUT\tSTATE\tMODE\tPRIMARY")
	fmt.Fprintln(w, "------\t-----\t----\t-------")
	for _, outputs := range [][]topology.Output{topo.Connected, topo.Disconnected} {
		for _, o := range outputs {
			primary := ""
			if o.Primary {
				primary = "*"
			}
			mode := o.Mode
			if mode == "" {
				mode = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.State, mode, primary)
		}
	}
	return nil
}
