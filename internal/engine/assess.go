package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/curax/triage/internal/analysis"
	"github.com/curax/triage/internal/inference"
	"github.com/curax/triage/internal/session"
)

// Assessor produces the final risk assessment for a completed interview.
type Assessor interface {
	Assess(ctx context.Context, s *session.Session) (session.Assessment, error)
}

// conditionRule maps an accumulated symptom to candidate conditions.
type conditionRule struct {
	symptom    string
	conditions []session.Condition
}

var conditionRules = []conditionRule{
	{"pain", []session.Condition{
		{Condition: "Musculoskeletal pain", Probability: 0.6, Description: "Localized pain that may worsen with movement or breathing"},
	}},
	{"headache", []session.Condition{
		{Condition: "Tension headache", Probability: 0.5, Description: "Common headache often linked to stress or posture"},
		{Condition: "Migraine", Probability: 0.3, Description: "Recurrent headache, often one-sided, sometimes with nausea"},
	}},
	{"fever", []session.Condition{
		{Condition: "Viral infection", Probability: 0.5, Description: "Common self-limiting infection with elevated temperature"},
	}},
	{"cough", []session.Condition{
		{Condition: "Respiratory infection", Probability: 0.4, Description: "Possible infection affecting the airways"},
	}},
	{"breathing difficulty", []session.Condition{
		{Condition: "Respiratory infection", Probability: 0.3, Description: "Possible infection affecting breathing"},
	}},
	{"nausea", []session.Condition{
		{Condition: "Gastrointestinal upset", Probability: 0.4, Description: "Digestive irritation, often transient"},
	}},
	{"dizziness", []session.Condition{
		{Condition: "Orthostatic hypotension", Probability: 0.3, Description: "Dizziness on standing from a drop in blood pressure"},
	}},
}

var urgencyRecommendations = map[analysis.Urgency][]string{
	analysis.UrgencyCritical: {
		"Seek emergency medical care immediately",
	},
	analysis.UrgencyHigh: {
		"Consult with a healthcare provider within 24 hours",
		"Seek immediate care if symptoms worsen",
	},
	analysis.UrgencyMedium: {
		"Consult with a healthcare provider within 24-48 hours",
		"Monitor symptoms and seek immediate care if they worsen",
		"Rest and avoid strenuous activity until evaluated",
	},
	analysis.UrgencyLow: {
		"Monitor symptoms over the next few days",
		"Consult a healthcare provider if symptoms persist or worsen",
	},
}

// RuleAssessor aggregates the accumulated context through a fixed condition
// table. Deterministic, no external calls.
type RuleAssessor struct{}

func (RuleAssessor) Assess(_ context.Context, s *session.Session) (session.Assessment, error) {
	urgency := s.Context.Assessment.Urgency
	if urgency == "" {
		urgency = analysis.UrgencyLow
	}

	var conditions []session.Condition
	seen := map[string]bool{}
	for _, rule := range conditionRules {
		if !containsLabel(s.Context.Symptoms, rule.symptom) {
			continue
		}
		for _, c := range rule.conditions {
			if seen[c.Condition] {
				continue
			}
			seen[c.Condition] = true
			conditions = append(conditions, c)
		}
	}

	return session.Assessment{
		PossibleConditions: conditions,
		Urgency:            urgency,
		Recommendations:    urgencyRecommendations[urgency],
	}, nil
}

func containsLabel(set []string, label string) bool {
	for _, s := range set {
		if s == label {
			return true
		}
	}
	return false
}

// Inferer is the slice of the inference router the assessor needs.
type Inferer interface {
	Infer(ctx context.Context, req *inference.Request) (*inference.Response, error)
}

// RouterAssessor delegates the assessment narrative to an inference model
// and keeps the rule table for the structured condition list. On inference
// failure it falls back to the pure rule assessment.
type RouterAssessor struct {
	Router  Inferer
	ModelID string
}

func (r RouterAssessor) Assess(ctx context.Context, s *session.Session) (session.Assessment, error) {
	assessment, err := RuleAssessor{}.Assess(ctx, s)
	if err != nil {
		return session.Assessment{}, err
	}

	patientData, err := json.Marshal(s.Context)
	if err != nil {
		return session.Assessment{}, fmt.Errorf("encode context: %w", err)
	}
	resp, err := r.Router.Infer(ctx, &inference.Request{
		Prompt:   "Provide a preliminary assessment of the patient's situation based on the accumulated interview context.",
		Context:  string(patientData),
		TaskType: inference.TaskDiagnosis,
		ModelID:  r.ModelID,
	})
	if err != nil {
		// Rule assessment still stands; the narrative is best-effort.
		return assessment, nil
	}

	assessment.Recommendations = append([]string{resp.Text}, assessment.Recommendations...)
	return assessment, nil
}
