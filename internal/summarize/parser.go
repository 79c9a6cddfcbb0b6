package summarize

import (
	"encoding/json"
	"regexp"
	"strings"

	"app/internal/model"
)

// ParseTier reports which stage of the fallback chain produced a summary.
type ParseTier string

const (
	ParseStrict    ParseTier = "strict"    // whole response was valid JSON
	ParseExtracted ParseTier = "extracted" // JSON block located inside prose
	ParseDegraded  ParseTier = "degraded"  // raw text fallback
)

const degradedSummaryLimit = 500

var jsonBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```"),
	regexp.MustCompile("```\\s*([\\s\\S]*?)\\s*```"),
	regexp.MustCompile(`\{[\s\S]*\}`),
}

// ParseSummary turns a model response into a structured summary. It never
// fails: strict JSON parse first, then extraction of an embedded JSON block,
// then a degraded summary built from the raw text. The degraded fallback is
// part of the contract, not an error path.
func ParseSummary(raw string) (model.Summary, ParseTier) {
	if s, ok := tryUnmarshal(raw); ok {
		return normalize(s), ParseStrict
	}

	for _, pattern := range jsonBlockPatterns {
		for _, match := range pattern.FindAllStringSubmatch(raw, -1) {
			candidate := match[0]
			if len(match) > 1 {
				candidate = match[1]
			}
			candidate = strings.TrimSpace(candidate)
			if !strings.HasPrefix(candidate, "{") {
				continue
			}
			if s, ok := tryUnmarshal(candidate); ok {
				return normalize(s), ParseExtracted
			}
		}
	}

	short := strings.TrimSpace(raw)
	if len(short) > degradedSummaryLimit {
		short = short[:degradedSummaryLimit]
	}
	return model.Summary{
		ShortSummary: short,
		KeyPoints:    []string{"Key points could not be extracted automatically"},
		ActionItems:  []string{},
	}, ParseDegraded
}

func tryUnmarshal(raw string) (model.Summary, bool) {
	var s model.Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return model.Summary{}, false
	}
	// An object without any expected field is not a summary.
	if s.ShortSummary == "" && s.KeyPoints == nil && s.ActionItems == nil {
		return model.Summary{}, false
	}
	return s, true
}

// normalize fills defaults so the persisted shape always round-trips.
func normalize(s model.Summary) model.Summary {
	if s.ShortSummary == "" {
		s.ShortSummary = "Summary not available"
	}
	if s.KeyPoints == nil {
		s.KeyPoints = []string{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []string{}
	}
	return s
}
