// Package prompts holds the data-driven flow configuration: system prompt
// templates, follow-up question tables, emergency keywords, and the seed
// model catalog. The defaults are embedded; an on-disk copy overrides them.
package prompts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FlowConfig is the parsed triage.yaml.
type FlowConfig struct {
	Flow              FlowSettings        `yaml:"flow"`
	EmergencyKeywords []string            `yaml:"emergency_keywords"`
	Disclaimer        string              `yaml:"disclaimer"`
	SystemPrompts     map[string]string   `yaml:"system_prompts"`
	FollowUpQuestions map[string][]string `yaml:"follow_up_questions"`
	FallbackOrder     []string            `yaml:"fallback_order"`
	Models            []ModelSeed         `yaml:"models"`
}

// FlowSettings controls the conversational loop.
type FlowSettings struct {
	MaxTurns             int     `yaml:"max_turns"`
	ConfidenceThreshold  float64 `yaml:"confidence_threshold"`
	Greeting             string  `yaml:"greeting"`
	EmergencyMessage     string  `yaml:"emergency_message"`
	CriticalMessage      string  `yaml:"critical_message"`
	ContinuationQuestion string  `yaml:"continuation_question"`
}

// ModelSeed is a catalog entry used to populate the model registry.
type ModelSeed struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Type              string   `yaml:"type"`
	Capabilities      []string `yaml:"capabilities"`
	MaxTokens         int      `yaml:"max_tokens"`
	Temperature       float32  `yaml:"temperature"`
	TopP              float32  `yaml:"top_p"`
	Available         bool     `yaml:"available"`
	CostPerToken      float64  `yaml:"cost_per_token"`
	AvgResponseTimeMs int      `yaml:"avg_response_time_ms"`
}

// Load parses the flow configuration from path, falling back to the
// embedded defaults when path is empty or the file does not exist.
func Load(path string) (*FlowConfig, error) {
	data := DefaultFlowConfig
	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			data = b
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read flow config: %w", err)
		}
	}

	var cfg FlowConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse flow config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *FlowConfig) validate() error {
	if c.Flow.MaxTurns <= 0 {
		return fmt.Errorf("flow config: max_turns must be positive")
	}
	if c.Flow.ConfidenceThreshold <= 0 || c.Flow.ConfidenceThreshold > 1 {
		return fmt.Errorf("flow config: confidence_threshold must be in (0,1]")
	}
	if len(c.EmergencyKeywords) == 0 {
		return fmt.Errorf("flow config: emergency_keywords must not be empty")
	}
	if c.Disclaimer == "" {
		return fmt.Errorf("flow config: disclaimer must not be empty")
	}
	if _, ok := c.SystemPrompts["chat"]; !ok {
		return fmt.Errorf("flow config: system_prompts must include the chat template")
	}
	for _, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("flow config: model entry with empty id")
		}
	}
	return nil
}
