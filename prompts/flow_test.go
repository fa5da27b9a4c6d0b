package prompts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load embedded defaults: %v", err)
	}
	if cfg.Flow.MaxTurns != 20 {
		t.Errorf("expected max_turns 20, got %d", cfg.Flow.MaxTurns)
	}
	if cfg.Flow.ConfidenceThreshold != 0.7 {
		t.Errorf("expected confidence_threshold 0.7, got %v", cfg.Flow.ConfidenceThreshold)
	}
	if len(cfg.EmergencyKeywords) != 10 {
		t.Errorf("expected 10 emergency keywords, got %d", len(cfg.EmergencyKeywords))
	}
	if cfg.EmergencyKeywords[0] != "chest pain" {
		t.Errorf("keyword order changed: first is %q", cfg.EmergencyKeywords[0])
	}
	if len(cfg.Models) != 5 {
		t.Errorf("expected 5 seed models, got %d", len(cfg.Models))
	}
	for _, task := range []string{"diagnosis", "analysis", "chat", "report", "translation", "summarization"} {
		if cfg.SystemPrompts[task] == "" {
			t.Errorf("missing system prompt for task %q", task)
		}
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("expected fallback to embedded defaults, got %v", err)
	}
	if cfg.Flow.Greeting == "" {
		t.Error("expected default greeting")
	}
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.yaml")
	override := `
flow:
  max_turns: 5
  confidence_threshold: 0.5
  greeting: hi
emergency_keywords: [emergency]
disclaimer: test disclaimer
system_prompts:
  chat: you are a test assistant
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load override: %v", err)
	}
	if cfg.Flow.MaxTurns != 5 {
		t.Errorf("expected overridden max_turns 5, got %d", cfg.Flow.MaxTurns)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.yaml")
	if err := os.WriteFile(path, []byte("flow:\n  max_turns: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for max_turns 0")
	}
}
