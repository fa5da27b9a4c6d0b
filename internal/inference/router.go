// Package inference routes completion requests to catalog models, builds
// task-specific prompts, and post-processes the results. It also provides
// ensemble combination and ordered fallback across models.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/pkg/llm"
)

// TaskType selects the system prompt template for a request.
type TaskType string

const (
	TaskDiagnosis     TaskType = "diagnosis"
	TaskAnalysis      TaskType = "analysis"
	TaskChat          TaskType = "chat"
	TaskReport        TaskType = "report"
	TaskTranslation   TaskType = "translation"
	TaskSummarization TaskType = "summarization"
)

// Request is one completion request addressed to a named model.
type Request struct {
	Prompt      string         `json:"prompt"`
	Context     string         `json:"context,omitempty"`
	TaskType    TaskType       `json:"task_type"`
	PatientData map[string]any `json:"patient_data,omitempty"`
	ModelID     string         `json:"model_id"`
	Sampling    *llm.Sampling  `json:"sampling,omitempty"`
}

// Response is the labeled result of a completion.
type Response struct {
	Text             string   `json:"response"`
	Confidence       float64  `json:"confidence"`
	ModelUsed        string   `json:"model_used"`
	TokensUsed       int      `json:"tokens_used"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	Cost             float64  `json:"cost"`
	Alternatives     []string `json:"alternatives,omitempty"`
	WasFallback      bool     `json:"was_fallback,omitempty"`
}

// Router resolves models, builds prompts, and invokes the completion
// service. It does not retry; retry across different models is the fallback
// chain's job.
type Router struct {
	registry    Registry
	completer   llm.Completer
	prompts     map[string]string
	sanitizer   *Sanitizer
	estimator   ConfidenceEstimator
	budget      *PromptBudget
	maxContext  int
	defaults    llm.Sampling
	callTimeout time.Duration
}

// Registry is the subset of the model catalog the router needs.
type Registry interface {
	Get(id string) (*model.Model, error)
}

// Options configures optional router behavior.
type Options struct {
	// Estimator overrides the default confidence heuristic.
	Estimator ConfidenceEstimator
	// CallTimeout bounds each completion call. Zero means 30s.
	CallTimeout time.Duration
	// BudgetReserve is the token count reserved for responses when
	// trimming prompts. Zero means 1024.
	BudgetReserve int
	// TokenizerModel names the tokenizer used for prompt trimming. Zero
	// means gpt-4.
	TokenizerModel string
	// MaxContextTokens caps the context window assumed for any model,
	// regardless of what its catalog entry claims. Zero means no cap.
	MaxContextTokens int
	// DefaultSampling fills sampling fields that both the request and the
	// model's catalog entry leave zero.
	DefaultSampling llm.Sampling
}

// NewRouter creates a Router over the given registry and completion service.
// systemPrompts maps task type to template; the chat template is required
// and doubles as the fallback for unknown task types.
func NewRouter(registry Registry, completer llm.Completer, systemPrompts map[string]string, disclaimer string, opts Options) (*Router, error) {
	if _, ok := systemPrompts[string(TaskChat)]; !ok {
		return nil, newError(ErrorInvalidRequest, "system prompt table missing chat template", nil)
	}

	estimator := opts.Estimator
	if estimator == nil {
		estimator = HeuristicEstimator{}
	}
	timeout := opts.CallTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	reserve := opts.BudgetReserve
	if reserve == 0 {
		reserve = 1024
	}
	tokenizerModel := opts.TokenizerModel
	if tokenizerModel == "" {
		tokenizerModel = "gpt-4"
	}

	budget, err := NewPromptBudget(tokenizerModel, reserve)
	if err != nil {
		// Routing still works without trimming; oversized prompts are
		// then the completion service's problem.
		slog.Warn("tokenizer unavailable, prompt trimming disabled", "error", err)
		budget = nil
	}

	return &Router{
		registry:    registry,
		completer:   completer,
		prompts:     systemPrompts,
		sanitizer:   NewSanitizer(disclaimer),
		estimator:   estimator,
		budget:      budget,
		maxContext:  opts.MaxContextTokens,
		defaults:    opts.DefaultSampling,
		callTimeout: timeout,
	}, nil
}

// Infer resolves the request's model, runs the completion, and returns the
// sanitized, labeled response.
func (r *Router) Infer(ctx context.Context, req *Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, newError(ErrorInvalidRequest, "prompt must not be empty", nil)
	}
	if req.ModelID == "" {
		return nil, newError(ErrorInvalidRequest, "model id must not be empty", nil)
	}

	m, err := r.registry.Get(req.ModelID)
	if err != nil {
		return nil, newError(ErrorModelNotFound, req.ModelID, err)
	}
	if !m.Available {
		return nil, newError(ErrorModelUnavailable, req.ModelID, nil)
	}

	systemPrompt := r.systemPrompt(req.TaskType)
	userPrompt := buildUserPrompt(req)
	if r.budget != nil {
		contextTokens := m.MaxTokens
		if r.maxContext > 0 && r.maxContext < contextTokens {
			contextTokens = r.maxContext
		}
		userPrompt = r.budget.Fit(userPrompt, r.budget.CountTokens(systemPrompt), contextTokens)
	}

	sampling := llm.Sampling{
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		TopP:        m.TopP,
	}
	if req.Sampling != nil {
		sampling = *req.Sampling
	}
	if sampling.MaxTokens == 0 {
		sampling.MaxTokens = r.defaults.MaxTokens
	}
	if sampling.Temperature == 0 {
		sampling.Temperature = r.defaults.Temperature
	}
	if sampling.TopP == 0 {
		sampling.TopP = r.defaults.TopP
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	start := time.Now()
	raw, err := r.completer.Complete(callCtx, req.ModelID, systemPrompt, userPrompt, sampling)
	if err != nil {
		return nil, newError(ErrorCompletionFailed, req.ModelID, err)
	}
	elapsed := time.Since(start)

	text := r.sanitizer.Sanitize(raw, req.TaskType)
	tokens := EstimateTokens(text)

	resp := &Response{
		Text:             text,
		Confidence:       r.estimator.Estimate(text, req.TaskType),
		ModelUsed:        req.ModelID,
		TokensUsed:       tokens,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Cost:             float64(tokens) * m.CostPerToken,
	}

	slog.Debug("inference complete",
		"model", req.ModelID,
		"task", req.TaskType,
		"tokens", tokens,
		"elapsed_ms", resp.ProcessingTimeMs,
	)
	return resp, nil
}

// systemPrompt looks up the task template, defaulting to chat for unknown
// task types. The default is deliberate, not an error path.
func (r *Router) systemPrompt(task TaskType) string {
	if p, ok := r.prompts[string(task)]; ok {
		return p
	}
	return r.prompts[string(TaskChat)]
}

func buildUserPrompt(req *Request) string {
	prompt := req.Prompt
	if req.Context != "" {
		prompt = fmt.Sprintf("Context: %s\n\n%s", req.Context, prompt)
	}
	if len(req.PatientData) > 0 {
		data, err := json.MarshalIndent(req.PatientData, "", "  ")
		if err == nil {
			prompt += "\n\nPatient Data: " + string(data)
		}
	}
	return prompt
}
