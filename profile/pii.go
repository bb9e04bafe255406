package profile

import (
	"regexp"

	"github.com/tidytable/tidytable/table"
)

// PIIFinding reports one detected PII type in a column.
type PIIFinding struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Confidence float64 `json:"confidence"` // percent of sampled cells matching
}

// sampleLimit caps how many non-missing cells per column are scanned.
const sampleLimit = 100

// confidenceThreshold is the minimum match rate (percent) for a PII type
// to count as detected; below it, matches are treated as noise.
const confidenceThreshold = 5.0

// PIIScanner detects personally identifiable information with compiled
// regular expressions.
type PIIScanner struct {
	patterns map[string]*regexp.Regexp
	order    []string
}

// NewPIIScanner compiles the standard pattern set.
func NewPIIScanner() *PIIScanner {
	return &PIIScanner{
		patterns: map[string]*regexp.Regexp{
			"email":       regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
			"phone":       regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			"credit_card": regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
			"url":         regexp.MustCompile(`https?://[A-Za-z0-9$\-_@.&+!*(),%/?=#~]+`),
			"ip_address":  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			"date":        regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}-\d{1,2}-\d{1,2}\b`),
			"name":        regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`),
		},
		order: []string{"email", "phone", "ssn", "credit_card", "url", "ip_address", "date", "name"},
	}
}

// ScanColumn samples up to sampleLimit non-missing string cells of the
// column and reports every PII type matching more than the confidence
// threshold.
func (s *PIIScanner) ScanColumn(t *table.Table, col int) []PIIFinding {
	matches := map[string]int{}
	samples := 0
	for _, row := range t.Rows {
		if samples >= sampleLimit {
			break
		}
		str, ok := row[col].(string)
		if !ok || str == "" {
			continue
		}
		samples++
		for name, re := range s.patterns {
			if re.MatchString(str) {
				matches[name]++
			}
		}
	}
	if samples == 0 {
		return nil
	}

	var findings []PIIFinding
	for _, name := range s.order {
		count := matches[name]
		if count == 0 {
			continue
		}
		confidence := float64(count) / float64(samples) * 100
		if confidence > confidenceThreshold {
			findings = append(findings, PIIFinding{
				Type:       name,
				Count:      count,
				Confidence: round2(confidence),
			})
		}
	}
	return findings
}

// HighRisk reports whether a set of findings contains types that warrant
// anonymizing or dropping the column outright.
func HighRisk(findings []PIIFinding) bool {
	for _, f := range findings {
		if f.Type == "ssn" || f.Type == "credit_card" {
			return true
		}
	}
	return false
}
