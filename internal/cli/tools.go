package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the built-in tools",
	Long:  `List the built-in tools loaded from the catalog with their parameters.`,
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print descriptors as JSON")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return printTools(cmd.OutOrStdout(), a.registry.List(), toolsJSON)
}

func printTools(out io.Writer, tools []*toolexecutor.Descriptor, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(tools, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode tools: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tPARAMETERS\tDESCRIPTION")
	for _, d := range tools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Version, paramSummary(d.Parameters), d.Description)
	}
	return w.Flush()
}

// paramSummary lists caller-visible parameters, required ones marked with *
func paramSummary(params []toolexecutor.Parameter) string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		if p.Visibility == toolexecutor.VisibilityHidden {
			continue
		}
		name := p.Name
		if p.Required {
			name += "*"
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
