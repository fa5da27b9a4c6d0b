package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curax/triage/internal/inference"
	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/pkg/llm"
	"github.com/curax/triage/pkg/llm/openai"
	"github.com/curax/triage/prompts"
)

var (
	inferModel    string
	inferTask     string
	inferEnsemble []string
	inferFallback bool
)

func init() {
	rootCmd.AddCommand(inferCmd)
	inferCmd.Flags().StringVar(&inferModel, "model", "", "model id (empty picks the first available model with the task capability)")
	inferCmd.Flags().StringVar(&inferTask, "task", "chat", "task type (chat, diagnosis, analysis, report)")
	inferCmd.Flags().StringSliceVar(&inferEnsemble, "ensemble", nil, "run an ensemble over these model ids")
	inferCmd.Flags().BoolVar(&inferFallback, "fallback", false, "walk the fallback chain on failure")
}

var inferCmd = &cobra.Command{
	Use:   "infer <prompt>",
	Short: "Run a one-shot inference request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		flowCfg, err := prompts.Load(cfg.FlowConfigPath)
		if err != nil {
			return fmt.Errorf("load flow config: %w", err)
		}

		provider := openai.New(&llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		})
		registry := model.FromSeeds(flowCfg.Models)
		router, err := inference.NewRouter(registry, provider, flowCfg.SystemPrompts, flowCfg.Disclaimer, inference.Options{
			BudgetReserve: cfg.LLM.OutputReserve,
		})
		if err != nil {
			return fmt.Errorf("create router: %w", err)
		}

		modelID := inferModel
		if modelID == "" && len(inferEnsemble) == 0 {
			models := registry.ListByCapability(inferTask)
			if len(models) == 0 {
				return fmt.Errorf("no available model with capability %q; pass --model", inferTask)
			}
			modelID = models[0].ID
		}

		ctx := context.Background()
		req := &inference.Request{
			Prompt:   strings.Join(args, " "),
			TaskType: inference.TaskType(inferTask),
			ModelID:  modelID,
		}

		var resp *inference.Response
		switch {
		case len(inferEnsemble) > 0:
			resp, err = router.EnsembleInfer(ctx, req, &inference.EnsembleConfig{Models: inferEnsemble})
		case inferFallback:
			chain := inference.NewFallbackChain(router, flowCfg.FallbackOrder)
			resp, err = chain.Infer(ctx, req, modelID, nil)
		default:
			resp, err = router.Infer(ctx, req)
		}
		if err != nil {
			return err
		}

		fmt.Println(resp.Text)
		fmt.Printf("\n[model=%s confidence=%.2f tokens=%d time=%dms fallback=%v]\n",
			resp.ModelUsed, resp.Confidence, resp.TokensUsed, resp.ProcessingTimeMs, resp.WasFallback)
		return nil
	},
}
