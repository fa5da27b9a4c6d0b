package session

import (
	"testing"

	"github.com/curax/triage/internal/analysis"
)

func TestMergeUnionsSymptoms(t *testing.T) {
	ctx := NewContext()
	ctx.Merge(&analysis.Result{
		Entities: []analysis.Entity{
			{Type: analysis.EntitySymptom, Value: "headache"},
			{Type: analysis.EntitySymptom, Value: "fever"},
		},
		Urgency: analysis.UrgencyMedium,
	})
	ctx.Merge(&analysis.Result{
		Entities: []analysis.Entity{
			{Type: analysis.EntitySymptom, Value: "headache"},
			{Type: analysis.EntitySymptom, Value: "cough"},
		},
		Urgency: analysis.UrgencyMedium,
	})

	want := []string{"headache", "fever", "cough"}
	if len(ctx.Symptoms) != len(want) {
		t.Fatalf("expected %v, got %v", want, ctx.Symptoms)
	}
	for i, s := range want {
		if ctx.Symptoms[i] != s {
			t.Errorf("symptom %d: expected %s, got %s", i, s, ctx.Symptoms[i])
		}
	}
}

func TestMergeOverwritesDuration(t *testing.T) {
	ctx := NewContext()
	ctx.Merge(&analysis.Result{
		Entities: []analysis.Entity{{Type: analysis.EntityDuration, Value: "yesterday"}},
		Urgency:  analysis.UrgencyLow,
	})
	ctx.Merge(&analysis.Result{
		Entities: []analysis.Entity{{Type: analysis.EntityDuration, Value: "days"}},
		Urgency:  analysis.UrgencyLow,
	})

	if ctx.Duration != "days" {
		t.Errorf("expected duration 'days', got %q", ctx.Duration)
	}
}

func TestMergeUrgencyLastWriteWins(t *testing.T) {
	ctx := NewContext()
	ctx.Merge(&analysis.Result{Urgency: analysis.UrgencyHigh})
	ctx.Merge(&analysis.Result{Urgency: analysis.UrgencyLow})

	if ctx.Assessment.Urgency != analysis.UrgencyLow {
		t.Errorf("expected urgency to follow latest extraction, got %s", ctx.Assessment.Urgency)
	}
}

func TestMarkEmergencyIsSticky(t *testing.T) {
	s := New("")
	s.MarkEmergency()

	if !s.EmergencyFlag {
		t.Error("expected emergency flag set")
	}
	if s.Status != StatusCompleted {
		t.Errorf("expected completed status, got %s", s.Status)
	}
	if s.Active() {
		t.Error("emergency session should not accept turns")
	}
}
