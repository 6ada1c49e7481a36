package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/contact-finder/internal/pipeline"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List named criteria presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		presets, err := pipeline.LoadPresets(cfg.Discovery.PresetsFile)
		if err != nil {
			return err
		}
		return printPresets(cmd.OutOrStdout(), presets)
	},
}

func printPresets(out io.Writer, presets map[string]pipeline.Preset) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLES\tDEPARTMENTS\tDESCRIPTION") //nolint:errcheck
	for _, name := range pipeline.PresetNames(presets) {
		p := presets[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, //nolint:errcheck
			strings.Join(p.TitleKeywords, ", "),
			strings.Join(p.Departments, ", "),
			p.Description,
		)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
