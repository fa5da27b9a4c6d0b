package session

import "github.com/curax/triage/internal/analysis"

// Condition is one candidate diagnosis in the final assessment.
type Condition struct {
	Condition   string  `json:"condition"`
	Probability float64 `json:"probability"`
	Description string  `json:"description"`
}

// Assessment is the risk-scored summary of the interview.
type Assessment struct {
	PossibleConditions []Condition      `json:"possible_conditions"`
	Urgency            analysis.Urgency `json:"urgency"`
	Recommendations    []string         `json:"recommendations"`
}

// Demographics holds optional patient attributes.
type Demographics struct {
	Age    int    `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// Context is the structured clinical accumulator for one session. Label
// slices behave as insertion-ordered sets: duplicates collapse, nothing is
// removed.
type Context struct {
	Symptoms       []string     `json:"symptoms"`
	Duration       string       `json:"duration"`
	Severity       string       `json:"severity"`
	Location       []string     `json:"location"`
	MedicalHistory []string     `json:"medical_history"`
	Medications    []string     `json:"medications"`
	Allergies      []string     `json:"allergies"`
	Demographics   Demographics `json:"demographics"`
	Assessment     Assessment   `json:"assessment"`
}

// NewContext returns an empty context with low urgency.
func NewContext() Context {
	return Context{
		Assessment: Assessment{Urgency: analysis.UrgencyLow},
	}
}

// Merge folds one utterance's analysis into the context. Sets union,
// scalars overwrite. Urgency is overwritten with the latest extraction's
// urgency (last-write-wins; it can decrease turn over turn).
func (c *Context) Merge(res *analysis.Result) {
	for _, e := range res.Entities {
		switch e.Type {
		case analysis.EntitySymptom:
			c.Symptoms = addLabel(c.Symptoms, e.Value)
		case analysis.EntityLocation:
			c.Location = addLabel(c.Location, e.Value)
		case analysis.EntityDuration:
			c.Duration = e.Value
		}
	}
	c.Assessment.Urgency = res.Urgency
}

func addLabel(set []string, label string) []string {
	for _, existing := range set {
		if existing == label {
			return set
		}
	}
	return append(set, label)
}
