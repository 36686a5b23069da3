package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/preset"
)

func newPresetCommand(ctx *commandContext) *cobra.Command {
	presetCmd := &cobra.Command{
		Use:   "preset",
		Short: "Inspect run presets",
	}

	presetCmd.AddCommand(newPresetListCommand(ctx))
	presetCmd.AddCommand(newPresetShowCommand(ctx))

	return presetCmd
}

func newPresetListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			presets, listErr := preset.NewStore(cfg.Paths.PresetDir).List()
			if jsonOutput {
				if err := writeJSON(cmd, map[string]any{"presets": presets}); err != nil {
					return err
				}
				return listErr
			}
			out := cmd.OutOrStdout()
			if len(presets) == 0 {
				fmt.Fprintf(out, "No presets in %s\n", cfg.Paths.PresetDir)
				return listErr
			}
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				rows = append(rows, []string{
					p.Name,
					presetRetriesLabel(p),
					presetThresholdLabel(p),
					p.Description,
				})
			}
			table := renderTable(
				[]string{"Name", "Retries", "Threshold", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			)
			fmt.Fprint(out, table)
			return listErr
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newPresetShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one preset in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := preset.NewStore(cfg.Paths.PresetDir).Load(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, p)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:      %s\n", p.Name)
			if p.Description != "" {
				fmt.Fprintf(out, "About:     %s\n", p.Description)
			}
			fmt.Fprintf(out, "Retries:   %s\n", presetRetriesLabel(p))
			fmt.Fprintf(out, "Threshold: %s\n", presetThresholdLabel(p))
			if p.NegativePrompt != "" {
				fmt.Fprintf(out, "Negative:  %s\n", p.NegativePrompt)
			}
			if len(p.Params) > 0 {
				pairs := make([]string, 0, len(p.Params))
				for key, value := range p.Params {
					pairs = append(pairs, key+"="+value)
				}
				sort.Strings(pairs)
				fmt.Fprintf(out, "Params:    %s\n", strings.Join(pairs, " "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func presetRetriesLabel(p preset.Preset) string {
	if p.MaxRetries == nil {
		return "-"
	}
	return strconv.Itoa(*p.MaxRetries)
}

func presetThresholdLabel(p preset.Preset) string {
	if p.SemanticThreshold == nil {
		return "-"
	}
	return strconv.FormatFloat(*p.SemanticThreshold, 'f', 2, 64)
}
