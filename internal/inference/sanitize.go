package inference

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	scriptTagRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	jsSchemeRe   = regexp.MustCompile(`(?i)javascript:`)
	htmlMarkupRe = regexp.MustCompile(`(?i)</?(p|div|span|a|ul|ol|li|h[1-6]|table|br|b|i|em|strong)\b[^>]*>`)
)

// Sanitizer post-processes model output: strips script-injection patterns,
// converts HTML-bearing output to plain markdown, and enforces the mandatory
// disclaimer on medical task types.
type Sanitizer struct {
	disclaimer string
}

// NewSanitizer creates a sanitizer that appends the given disclaimer text.
func NewSanitizer(disclaimer string) *Sanitizer {
	return &Sanitizer{disclaimer: disclaimer}
}

// disclaimedTasks are the task types that must carry disclaiming language.
var disclaimedTasks = map[TaskType]bool{
	TaskDiagnosis: true,
	TaskAnalysis:  true,
	TaskReport:    true,
}

// Sanitize cleans raw model text for the given task type. Sanitizing
// already-disclaimed text does not duplicate the disclaimer.
func (s *Sanitizer) Sanitize(text string, task TaskType) string {
	out := strings.TrimSpace(text)
	out = scriptTagRe.ReplaceAllString(out, "")
	out = jsSchemeRe.ReplaceAllString(out, "")

	// Models occasionally answer in HTML; flatten it to markdown so the
	// transcript stays plain text.
	if htmlMarkupRe.MatchString(out) {
		if converted, err := htmltomarkdown.ConvertString(out); err == nil {
			out = strings.TrimSpace(converted)
		}
	}

	if disclaimedTasks[task] && !hasDisclaimer(out) {
		out += "\n\n" + s.disclaimer
	}
	return out
}

func hasDisclaimer(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "disclaim") || strings.Contains(lower, "not a replacement")
}
