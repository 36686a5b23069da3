package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/config"
	"easel/internal/engine"
	"easel/internal/ipc"
)

type runFlags struct {
	prompt         string
	negativePrompt string
	seed           int64
	steps          int
	width          int
	height         int
	params         []string

	batchSize  int
	retries    int
	bestOf     int
	threshold  float64
	noFilter   bool
	keepFailed bool
	sync       bool

	inputFolder string
	preset      string

	watch      bool
	jsonOutput bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Queue a generation run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.prompt = args[0]
			}
			runCfg, err := buildRunConfig(flags)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(runCfg)
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Queued run %s (item %d)\n", resp.BatchID, resp.ItemID)
				}
				if flags.watch {
					return watchEvents(cmd, client, resp.BatchID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.prompt, "prompt", "p", "", "Generation prompt")
	cmd.Flags().StringVar(&flags.negativePrompt, "negative-prompt", "", "Negative prompt")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "Base seed (0 picks a random seed per item)")
	cmd.Flags().IntVar(&flags.steps, "steps", 0, "Sampler steps (0 uses the backend default)")
	cmd.Flags().IntVar(&flags.width, "width", 0, "Image width in pixels")
	cmd.Flags().IntVar(&flags.height, "height", 0, "Image height in pixels")
	cmd.Flags().StringArrayVar(&flags.params, "param", nil, "Extra backend parameter as key=value (repeatable)")
	cmd.Flags().IntVarP(&flags.batchSize, "batch-size", "n", 1, "Number of items to generate")
	cmd.Flags().IntVar(&flags.retries, "retries", 2, "Retries per item after a rejected or failed attempt")
	cmd.Flags().IntVar(&flags.bestOf, "best-of", 1, "Generate N candidates per item and keep the best")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", 0.25, "Minimum semantic similarity score")
	cmd.Flags().BoolVar(&flags.noFilter, "no-filter", false, "Disable the quality gate")
	cmd.Flags().BoolVar(&flags.keepFailed, "keep-failed", false, "Save the last rejected attempt of failed items")
	cmd.Flags().BoolVar(&flags.sync, "sync", false, "Copy accepted outputs to the remote root")
	cmd.Flags().StringVar(&flags.inputFolder, "input-folder", "", "Process every image in this folder")
	cmd.Flags().StringVar(&flags.preset, "preset", "", "Apply a named preset")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Stream progress events after queueing")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Emit the queue response as JSON")

	return cmd
}

func buildRunConfig(flags *runFlags) (engine.RunConfig, error) {
	params, err := parseParams(flags.params)
	if err != nil {
		return engine.RunConfig{}, err
	}

	inputFolder := strings.TrimSpace(flags.inputFolder)
	if inputFolder != "" {
		expanded, err := config.ExpandPath(inputFolder)
		if err != nil {
			return engine.RunConfig{}, err
		}
		inputFolder = expanded
	}

	runCfg := engine.RunConfig{
		Prompt:              strings.TrimSpace(flags.prompt),
		NegativePrompt:      strings.TrimSpace(flags.negativePrompt),
		Seed:                flags.seed,
		Steps:               flags.steps,
		Width:               flags.width,
		Height:              flags.height,
		Params:              params,
		BatchSize:           flags.batchSize,
		MaxRetries:          flags.retries,
		BestOfN:             flags.bestOf,
		SemanticThreshold:   flags.threshold,
		EnableQualityFilter: !flags.noFilter,
		SaveRejected:        flags.keepFailed,
		EnableRemoteSync:    flags.sync,
		InputFolder:         inputFolder,
		PresetName:          strings.TrimSpace(flags.preset),
	}
	if err := runCfg.Validate(); err != nil {
		return engine.RunConfig{}, err
	}
	return runCfg, nil
}

func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
