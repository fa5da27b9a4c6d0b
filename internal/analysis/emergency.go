package analysis

import "strings"

// EmergencyMatch is the outcome of an emergency scan.
type EmergencyMatch struct {
	IsEmergency    bool
	MatchedKeyword string
}

// EmergencyDetector flags life-threatening presentations by case-insensitive
// substring scan against a fixed keyword list. Scan order is list order and
// the first match wins.
type EmergencyDetector struct {
	keywords []string
}

// NewEmergencyDetector creates a detector for the given keyword list.
func NewEmergencyDetector(keywords []string) *EmergencyDetector {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &EmergencyDetector{keywords: lowered}
}

// Detect scans text for emergency keywords.
func (d *EmergencyDetector) Detect(text string) EmergencyMatch {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return EmergencyMatch{IsEmergency: true, MatchedKeyword: kw}
		}
	}
	return EmergencyMatch{}
}
