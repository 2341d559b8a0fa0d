// Package feedback converts free-form reviewer text into a structured
// correction. Parsing is a pure function over ordered, versioned pattern
// tables; it never fails, it only reports low confidence.
package feedback

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hrygo/gridsense/ai/grid"
)

// Base rewards per intent, scaled by parse confidence.
var intentBaseRewards = map[Intent]float64{
	IntentPraise:     0.8,
	IntentSuggestion: 0.0,
	IntentCorrection: -0.3,
	IntentCriticism:  -0.6,
	IntentQuestion:   0.0,
}

// Value is an extracted suggested value: either a number or a string.
type Value struct {
	Number   float64 `json:"number,omitempty"`
	Text     string  `json:"text,omitempty"`
	IsNumber bool    `json:"is_number"`
}

// String renders the value the way it would be written into a cell.
func (v Value) String() string {
	if !v.IsNumber {
		return v.Text
	}
	if v.Number == math.Trunc(v.Number) {
		return strconv.FormatFloat(v.Number, 'f', 0, 64)
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// Feedback is the structured interpretation of one feedback message.
// Optional fields stay unset when nothing actionable was extracted.
type Feedback struct {
	RawText         string  `json:"raw_text"`
	Intent          Intent  `json:"intent"`
	TargetRef       string  `json:"target_ref,omitempty"`
	TargetMetric    Metric  `json:"target_metric,omitempty"`
	SuggestedValue  *Value  `json:"suggested_value,omitempty"`
	SuggestedAction string  `json:"suggested_action,omitempty"`
	Confidence      float64 `json:"confidence"`
	Reward          float64 `json:"reward"`
}

// Parser classifies and extracts entities from feedback text.
type Parser struct{}

// NewParser creates a parser over the current pattern tables.
func NewParser() *Parser {
	return &Parser{}
}

// Parse interprets text against the optional current grid state. The state
// grounds metric references to cell locations; a nil state only disables
// that grounding, never the parse itself.
func (p *Parser) Parse(text string, current grid.State) Feedback {
	fb := Feedback{
		RawText: text,
		Intent:  classifyIntent(text),
	}

	ref, matched := extractTargetRef(text)
	fb.TargetRef = ref
	fb.TargetMetric = extractMetric(text)

	// The target reference token would otherwise match the bare-number
	// pattern ("B2" contains "2"), so value extraction runs on text with
	// the reference removed. Removal uses the token as matched, not the
	// normalized ref, so lowercase references are stripped too.
	valueText := text
	if matched != "" {
		valueText = strings.Replace(text, matched, "", 1)
	}
	fb.SuggestedValue = extractValue(valueText)

	fb.SuggestedAction = synthesizeAction(fb, current)
	fb.Confidence = scoreConfidence(text, fb)
	fb.Reward = intentBaseRewards[fb.Intent] * fb.Confidence

	return fb
}

func classifyIntent(text string) Intent {
	for _, rule := range intentRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(text) {
				return rule.intent
			}
		}
	}
	return IntentSuggestion
}

// extractTargetRef returns the normalized cell reference and the raw token
// as it appeared in the text.
func extractTargetRef(text string) (ref, matched string) {
	match := cellRefPattern.FindString(text)
	if match == "" {
		return "", ""
	}
	upper := strings.ToUpper(match)
	if !grid.ValidRef(upper) {
		return "", ""
	}
	return upper, match
}

func extractMetric(text string) Metric {
	for _, rule := range metricRules {
		if rule.pattern.MatchString(text) {
			return rule.metric
		}
	}
	return ""
}

func extractValue(text string) *Value {
	if m := percentPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &Value{Number: n / 100, IsNumber: true}
		}
	}
	if m := magnitudePattern.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", ".")
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			mult := magnitudeMultipliers[strings.ToLower(m[2])]
			return &Value{Number: n * mult, IsNumber: true}
		}
	}
	if m := numberPattern.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return &Value{Number: n, IsNumber: true}
		}
	}
	if m := quotedPattern.FindStringSubmatch(text); m != nil {
		quoted := m[1]
		if quoted == "" {
			quoted = m[2]
		}
		return &Value{Text: quoted}
	}
	return nil
}

// synthesizeAction builds a corrective command only when both a target and a
// value are known, either directly or through a metric grounded in the
// current state. Anything less stays signal-only.
func synthesizeAction(fb Feedback, current grid.State) string {
	if fb.SuggestedValue == nil {
		return ""
	}
	target := fb.TargetRef
	if target == "" && fb.TargetMetric != "" {
		target = locateMetricCell(current, fb.TargetMetric)
	}
	if target == "" {
		return ""
	}
	return grid.WriteCell{Ref: target, Value: fb.SuggestedValue.String()}.Text()
}

// locateMetricCell finds the cell a metric refers to: the first non-text
// cell to the right of a label cell matching the metric vocabulary.
func locateMetricCell(current grid.State, metric Metric) string {
	if len(current) == 0 {
		return ""
	}
	var rule *metricRule
	for i := range metricRules {
		if metricRules[i].metric == metric {
			rule = &metricRules[i]
			break
		}
	}
	if rule == nil {
		return ""
	}
	// Sorted reference order keeps grounding stable when several labels
	// match the metric vocabulary.
	refs := make([]string, 0, len(current))
	for ref := range current {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		cell := current[ref]
		if cell.Type != grid.CellTypeText || !rule.pattern.MatchString(cell.Value) {
			continue
		}
		if neighbor := nextColumnRef(ref); neighbor != "" {
			return neighbor
		}
	}
	return ""
}

// nextColumnRef returns the reference one column to the right ("A3" → "B3").
// Only single-letter columns advance; anything else yields "".
func nextColumnRef(ref string) string {
	if len(ref) < 2 || ref[0] < 'A' || ref[0] >= 'Z' {
		return ""
	}
	row := ref[1:]
	for _, r := range row {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return string(ref[0]+1) + row
}

func scoreConfidence(text string, fb Feedback) float64 {
	confidence := 0.3
	if fb.TargetRef != "" {
		confidence += 0.3
	}
	if fb.SuggestedValue != nil {
		confidence += 0.3
	}
	if certaintyPattern.MatchString(text) {
		confidence += 0.2
	}
	if hedgingPattern.MatchString(text) {
		confidence -= 0.2
	}
	if wc := len(strings.Fields(text)); wc >= 3 && wc <= 20 {
		confidence += 0.1
	}
	return clamp01(confidence)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
