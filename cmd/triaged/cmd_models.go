package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/internal/scheduler"
	"github.com/curax/triage/pkg/llm"
	"github.com/curax/triage/pkg/llm/openai"
	"github.com/curax/triage/prompts"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsCheckCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		flowCfg, err := prompts.Load(cfg.FlowConfigPath)
		if err != nil {
			return fmt.Errorf("load flow config: %w", err)
		}
		registry := model.FromSeeds(flowCfg.Models)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tAVAILABLE\tCAPABILITIES")
		for _, m := range registry.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
				m.ID, m.Name, m.Type, m.Available, strings.Join(m.Capabilities, ","))
		}
		return w.Flush()
	},
}

var modelsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every catalog model once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		flowCfg, err := prompts.Load(cfg.FlowConfigPath)
		if err != nil {
			return fmt.Errorf("load flow config: %w", err)
		}
		registry := model.FromSeeds(flowCfg.Models)
		probe := scheduler.CompleterProbe{Completer: openai.New(&llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		})}

		ctx := context.Background()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS")
		for _, m := range registry.List() {
			if err := probe.Probe(ctx, m); err != nil {
				fmt.Fprintf(w, "%s\tFAIL: %v\n", m.ID, err)
				continue
			}
			fmt.Fprintf(w, "%s\tok\n", m.ID)
		}
		return w.Flush()
	},
}
