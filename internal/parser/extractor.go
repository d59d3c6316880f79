package parser

import (
	"regexp"
	"strings"
)

// Legacy marker kinds.
const (
	LegacyBoldID         = "bold_id"
	LegacyEvidenceHeader = "evidence_header"
	LegacyTypeBullet     = "type_bullet"
)

// LegacyMarker is pre-grammar evidence notation. It is reported but never
// treated as evidence.
type LegacyMarker struct {
	Kind string `json:"kind" yaml:"kind"`
	Line int    `json:"line" yaml:"line"`
	Text string `json:"text" yaml:"text"`
}

// MarkerPattern identifies one kind of legacy notation.
type MarkerPattern struct {
	// Kind is the marker kind this pattern reports.
	Kind string

	// Keywords are literal substrings checked before the patterns.
	Keywords []string

	// Patterns are regexes matched against the whole line.
	Patterns []*regexp.Regexp
}

// DefaultMarkerPatterns lists the legacy notations found in older task files.
var DefaultMarkerPatterns = []MarkerPattern{
	{
		Kind: LegacyEvidenceHeader,
		Keywords: []string{
			"**evidence hooks:**",
			"**evidence:**",
			"**evidence hooks**:",
			"**evidence**:",
		},
	},
	{
		Kind: LegacyTypeBullet,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`^\s*[-*]\s+(?:\*\*)?(Code|Test|Tests|Docs|UI)(?:\*\*)?\s*:(?:\*\*)?\s+\S`),
		},
	},
}

// DetectLegacy reports the first legacy marker on line. Lines that carry a
// real "evidence:" token are never legacy.
func DetectLegacy(line string, lineNum int) (LegacyMarker, bool) {
	if strings.Contains(line, evidenceToken) {
		return LegacyMarker{}, false
	}
	lower := strings.ToLower(line)
	for _, mp := range DefaultMarkerPatterns {
		for _, kw := range mp.Keywords {
			if strings.Contains(lower, kw) {
				return LegacyMarker{Kind: mp.Kind, Line: lineNum, Text: strings.TrimSpace(line)}, true
			}
		}
		for _, re := range mp.Patterns {
			if re.MatchString(line) {
				return LegacyMarker{Kind: mp.Kind, Line: lineNum, Text: strings.TrimSpace(line)}, true
			}
		}
	}
	return LegacyMarker{}, false
}

// HasLegacyEvidence reports whether the block carries legacy notation other
// than a bolded ID.
func (t *TaskBlock) HasLegacyEvidence() bool {
	for _, m := range t.Legacy {
		if m.Kind != LegacyBoldID {
			return true
		}
	}
	return false
}
