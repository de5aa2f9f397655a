package security

import (
	"strings"
)

// PIIDetector screens chat utterances for keywords that suggest the user is
// pasting credentials or personal data the bridge should not forward to the
// model or the tool worker.
type PIIDetector struct {
	keywords []string
}

// NewPIIDetector normalizes the keyword list so multi-word keywords match
// regardless of casing and spacing in the utterance.
func NewPIIDetector(keywords []string) *PIIDetector {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = normalizeUtterance(k); k != "" {
			normalized = append(normalized, k)
		}
	}
	return &PIIDetector{keywords: normalized}
}

// Detect reports whether the utterance mentions sensitive data, returning
// the first matched keyword.
func (d *PIIDetector) Detect(utterance string) (bool, string) {
	norm := normalizeUtterance(utterance)
	for _, kw := range d.keywords {
		if strings.Contains(norm, kw) {
			return true, kw
		}
	}
	return false, ""
}

// normalizeUtterance lowercases and collapses runs of whitespace to single
// spaces, so "Social  Security" still matches the "social security" keyword.
func normalizeUtterance(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
