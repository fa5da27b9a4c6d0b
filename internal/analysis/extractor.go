// Package analysis provides deterministic text analysis for diagnostic
// conversations: entity extraction, sentiment, urgency classification, and
// emergency keyword detection. All of it is keyword-driven; there are no
// external calls.
package analysis

import "strings"

// Sentiment classifies the overall tone of one utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUrgent   Sentiment = "urgent"
)

// Urgency grades how quickly an utterance suggests care is needed.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// EntityType labels an extracted entity.
type EntityType string

const (
	EntitySymptom  EntityType = "symptom"
	EntityLocation EntityType = "location"
	EntityDuration EntityType = "duration"
)

// Entity is one structured label pulled out of free text.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
}

// Result is the full analysis of one utterance.
type Result struct {
	Intent     string    `json:"intent"`
	Entities   []Entity  `json:"entities"`
	Sentiment  Sentiment `json:"sentiment"`
	Urgency    Urgency   `json:"urgency"`
	Confidence float64   `json:"confidence"`
}

// entityRule matches any of its keywords and yields one entity.
type entityRule struct {
	keywords   []string
	entityType EntityType
	value      string
	confidence float64
}

// entityRules is scanned in order; each rule contributes at most one entity.
var entityRules = []entityRule{
	{[]string{"pain", "hurt"}, EntitySymptom, "pain", 0.9},
	{[]string{"headache"}, EntitySymptom, "headache", 0.9},
	{[]string{"fever"}, EntitySymptom, "fever", 0.85},
	{[]string{"cough"}, EntitySymptom, "cough", 0.85},
	{[]string{"nausea", "vomit"}, EntitySymptom, "nausea", 0.8},
	{[]string{"dizzy", "dizziness"}, EntitySymptom, "dizziness", 0.8},
	{[]string{"breathe", "breathing"}, EntitySymptom, "breathing difficulty", 0.75},
	{[]string{"chest"}, EntityLocation, "chest", 0.85},
	{[]string{"head"}, EntityLocation, "head", 0.8},
	{[]string{"stomach", "abdomen"}, EntityLocation, "abdomen", 0.8},
	{[]string{"back"}, EntityLocation, "back", 0.75},
	{[]string{"arm"}, EntityLocation, "arm", 0.7},
	{[]string{"leg"}, EntityLocation, "leg", 0.7},
	{[]string{"throat"}, EntityLocation, "throat", 0.75},
	{[]string{"two days", "2 days"}, EntityDuration, "2 days", 0.8},
	{[]string{"yesterday", "since yesterday"}, EntityDuration, "since yesterday", 0.8},
	{[]string{"a week", "one week"}, EntityDuration, "1 week", 0.75},
	{[]string{"this morning"}, EntityDuration, "since this morning", 0.75},
	{[]string{"a month", "one month"}, EntityDuration, "1 month", 0.7},
}

var (
	urgentKeywords   = []string{"emergency", "severe", "urgent"}
	negativeKeywords = []string{"pain", "ache", "hurt", "worse", "sick"}
	positiveKeywords = []string{"better", "improving"}
)

// Extract analyzes a single utterance. It is deterministic given the input.
func Extract(text string) Result {
	lower := strings.ToLower(text)

	entities := extractEntities(lower)
	sentiment := classifySentiment(lower)
	urgency := classifyUrgency(sentiment, entities)

	return Result{
		Intent:     classifyIntent(lower),
		Entities:   entities,
		Sentiment:  sentiment,
		Urgency:    urgency,
		Confidence: analysisConfidence(entities),
	}
}

func extractEntities(lower string) []Entity {
	var entities []Entity
	for _, rule := range entityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				entities = append(entities, Entity{
					Type:       rule.entityType,
					Value:      rule.value,
					Confidence: rule.confidence,
				})
				break
			}
		}
	}
	return entities
}

// classifySentiment applies keyword precedence:
// urgent > negative > positive > neutral.
func classifySentiment(lower string) Sentiment {
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return SentimentUrgent
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			return SentimentNegative
		}
	}
	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			return SentimentPositive
		}
	}
	return SentimentNeutral
}

// classifyUrgency is the urgency decision table:
//
//	urgent sentiment                      -> critical
//	negative sentiment + symptom entity   -> high
//	negative sentiment                    -> medium
//	otherwise                             -> low
func classifyUrgency(sentiment Sentiment, entities []Entity) Urgency {
	hasSymptom := false
	for _, e := range entities {
		if e.Type == EntitySymptom {
			hasSymptom = true
			break
		}
	}

	switch {
	case sentiment == SentimentUrgent:
		return UrgencyCritical
	case sentiment == SentimentNegative && hasSymptom:
		return UrgencyHigh
	case sentiment == SentimentNegative:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func classifyIntent(lower string) string {
	switch {
	case strings.Contains(lower, "pain") || strings.Contains(lower, "symptom"):
		return "report_symptom"
	case strings.Contains(lower, "help") || strings.Contains(lower, "what should"):
		return "seek_advice"
	case strings.Contains(lower, "history") || strings.Contains(lower, "before"):
		return "provide_history"
	default:
		return "general_conversation"
	}
}

// analysisConfidence is a stand-in for a trained classifier's calibration.
// It is deterministic: a base of 0.7 plus 0.05 per extracted entity, capped
// at 0.95.
func analysisConfidence(entities []Entity) float64 {
	c := 0.7 + 0.05*float64(len(entities))
	if c > 0.95 {
		c = 0.95
	}
	return c
}
