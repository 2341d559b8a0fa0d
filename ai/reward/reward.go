// Package reward scores execute→observe transitions. The automatic score is
// a bounded heuristic over the state diff; blending folds in an explicit or
// parsed semantic signal by confidence weighting.
package reward

import (
	"math"
	"regexp"
	"strings"

	"github.com/hrygo/gridsense/ai/grid"
)

// Signal is one reward source with its confidence.
type Signal struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Breakdown is the full scoring of one transition, attached to exactly one
// pending experience before persistence.
type Breakdown struct {
	AutomaticScore float64  `json:"automatic_score"`
	SemanticScore  *float64 `json:"semantic_score,omitempty"`
	CombinedScore  float64  `json:"combined_score"`
	Confidence     float64  `json:"confidence"`
}

// Intent verbs that imply the grid should have changed.
var changeVerbPattern = regexp.MustCompile(`(?i)\b(add|set|write|update|change|fill|insert|put|create|correct|fix)\b`)

// Error markers a grid surfaces for broken formulas or references.
var errorMarkers = []string{"#REF!", "#DIV/0!", "#VALUE!", "#NAME?", "#N/A", "ERROR"}

// Automatic computes a bounded reward from the before/after diff.
// Heuristics, each contributing independently:
//   - a change happened when the intent implied one: small positive
//   - changed cells consistent with intent keywords: positive
//   - no change although the intent implied one: strongly negative
//   - an error marker replaced a previously valid value: negative
//
// Confidence grows with the number of heuristics that fired.
func Automatic(before, after grid.State, action, intent, domainTag string) Breakdown {
	changed := before.Diff(after)
	impliesChange := intentImpliesChange(intent)

	var score float64
	fired := 0

	if len(changed) == 0 {
		if impliesChange {
			score = -0.8
			fired++
		}
		return finalize(score, fired)
	}

	if impliesChange {
		score += 0.2
		fired++
	}

	if n := intentConsistentChanges(after, changed, intent); n > 0 {
		score += math.Min(0.6, 0.3*float64(n))
		fired++
	}

	if n := errorsIntroduced(before, after, changed); n > 0 {
		score -= math.Min(0.9, 0.5*float64(n))
		fired++
	}

	return finalize(score, fired)
}

func finalize(score float64, fired int) Breakdown {
	combined := clamp(score)
	return Breakdown{
		AutomaticScore: combined,
		CombinedScore:  combined,
		Confidence:     math.Min(1, 0.2+0.2*float64(fired)),
	}
}

// Combine blends two signals by confidence-weighted average. A side with
// zero confidence cedes fully to the other.
func Combine(automatic, semantic Signal) float64 {
	total := automatic.Confidence + semantic.Confidence
	if total == 0 {
		return 0
	}
	combined := (automatic.Score*automatic.Confidence + semantic.Score*semantic.Confidence) / total
	return clamp(combined)
}

// Blend folds a semantic signal into an automatic breakdown.
func Blend(auto Breakdown, semantic Signal) Breakdown {
	score := semantic.Score
	auto.SemanticScore = &score
	auto.CombinedScore = Combine(
		Signal{Score: auto.AutomaticScore, Confidence: auto.Confidence},
		semantic,
	)
	auto.Confidence = math.Min(1, math.Max(auto.Confidence, semantic.Confidence))
	return auto
}

// Feedback type labels ordered from worst to best.
const (
	FeedbackWrong   = "wrong"
	FeedbackFix     = "fix"
	FeedbackEdit    = "edit"
	FeedbackNeutral = "neutral"
	FeedbackGood    = "good"
	FeedbackApprove = "approve"
)

// ClassifyFeedbackType maps a reward to its label. Monotonic in reward.
func ClassifyFeedbackType(reward float64) string {
	switch {
	case reward >= 0.8:
		return FeedbackApprove
	case reward >= 0.5:
		return FeedbackGood
	case reward >= 0:
		return FeedbackNeutral
	case reward >= -0.3:
		return FeedbackEdit
	case reward >= -0.6:
		return FeedbackFix
	default:
		return FeedbackWrong
	}
}

func intentImpliesChange(intent string) bool {
	if strings.TrimSpace(intent) == "" {
		return false
	}
	return changeVerbPattern.MatchString(intent)
}

// intentConsistentChanges counts changed cells whose new content lines up
// with intent keywords: a numeric intent produced a numeric cell, or the
// intent tokens overlap the written value.
func intentConsistentChanges(after grid.State, changed []string, intent string) int {
	tokens := tokenizeLower(intent)
	if len(tokens) == 0 {
		return 0
	}
	mentionsNumbers := false
	for _, tok := range tokens {
		if _, ok := numericIntentWords[tok]; ok {
			mentionsNumbers = true
			break
		}
	}

	count := 0
	for _, ref := range changed {
		cell, ok := after[ref]
		if !ok || cell.Type == grid.CellTypeError || cell.Type == grid.CellTypeEmpty {
			continue
		}
		if mentionsNumbers && (cell.Type == grid.CellTypeNumber || cell.Type == grid.CellTypeFormula) {
			count++
			continue
		}
		lower := strings.ToLower(cell.Value)
		for _, tok := range tokens {
			if len(tok) >= 3 && strings.Contains(lower, tok) {
				count++
				break
			}
		}
	}
	return count
}

// Intent words that suggest a numeric or formula outcome.
var numericIntentWords = map[string]struct{}{
	"revenue": {}, "sales": {}, "margin": {}, "growth": {}, "cost": {},
	"ebitda": {}, "valuation": {}, "price": {}, "total": {}, "sum": {},
	"number": {}, "value": {}, "percent": {}, "percentage": {}, "headcount": {},
}

func errorsIntroduced(before, after grid.State, changed []string) int {
	count := 0
	for _, ref := range changed {
		cell, ok := after[ref]
		if !ok || !isErrorCell(cell) {
			continue
		}
		if prev, existed := before[ref]; !existed || !isErrorCell(prev) {
			count++
		}
	}
	return count
}

func isErrorCell(cell grid.Cell) bool {
	if cell.Type == grid.CellTypeError {
		return true
	}
	upper := strings.ToUpper(cell.Value)
	for _, marker := range errorMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func tokenizeLower(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
