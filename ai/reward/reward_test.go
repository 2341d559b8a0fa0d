package reward

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/gridsense/ai/grid"
)

func TestAutomaticNoOpWithChangeIntent(t *testing.T) {
	state := grid.State{
		"A1": {Value: "Revenue", Type: grid.CellTypeText},
	}
	b := Automatic(state, state.Clone(), "set B1 100", "add revenue for 2023", "finance")

	assert.LessOrEqual(t, b.AutomaticScore, 0.0)
	assert.Less(t, b.AutomaticScore, -0.5)
	assert.Greater(t, b.Confidence, 0.2)
}

func TestAutomaticNoOpWithoutChangeIntent(t *testing.T) {
	state := grid.State{"A1": {Value: "x", Type: grid.CellTypeText}}
	b := Automatic(state, state.Clone(), "", "what does this show", "finance")
	assert.Zero(t, b.AutomaticScore)
}

func TestAutomaticConsistentChange(t *testing.T) {
	before := grid.State{
		"A1": {Value: "Revenue", Type: grid.CellTypeText},
	}
	after := before.Clone()
	after["B1"] = grid.Cell{Value: "350000", Type: grid.CellTypeNumber}

	b := Automatic(before, after, "set B1 350000", "add revenue for 2023", "finance")
	assert.Greater(t, b.AutomaticScore, 0.0)
	assert.GreaterOrEqual(t, b.Confidence, 0.6)
}

func TestAutomaticErrorIntroduction(t *testing.T) {
	before := grid.State{
		"B1": {Value: "350000", Type: grid.CellTypeNumber},
	}
	after := grid.State{
		"B1": {Value: "#REF!", Type: grid.CellTypeError},
	}

	b := Automatic(before, after, "formula B1 =C1/D1", "update revenue", "finance")
	assert.Less(t, b.AutomaticScore, 0.0)
}

func TestAutomaticBounded(t *testing.T) {
	// Many error cells must still clamp to [-1, 1].
	before := grid.State{}
	after := grid.State{}
	for i := 1; i <= 10; i++ {
		ref := fmt.Sprintf("A%d", i)
		before[ref] = grid.Cell{Value: "1", Type: grid.CellTypeNumber}
		after[ref] = grid.Cell{Value: "#DIV/0!", Type: grid.CellTypeError}
	}

	b := Automatic(before, after, "", "update totals", "finance")
	assert.GreaterOrEqual(t, b.AutomaticScore, -1.0)
	assert.LessOrEqual(t, b.AutomaticScore, 1.0)
	assert.GreaterOrEqual(t, b.Confidence, 0.0)
	assert.LessOrEqual(t, b.Confidence, 1.0)
}

func TestCombine(t *testing.T) {
	t.Run("confidence weighted", func(t *testing.T) {
		got := Combine(Signal{Score: 1, Confidence: 0.5}, Signal{Score: 0, Confidence: 0.5})
		assert.InDelta(t, 0.5, got, 1e-9)
	})

	t.Run("zero confidence side cedes", func(t *testing.T) {
		got := Combine(Signal{Score: 0.9, Confidence: 0}, Signal{Score: -0.4, Confidence: 0.8})
		assert.InDelta(t, -0.4, got, 1e-9)
	})

	t.Run("both zero confidence", func(t *testing.T) {
		assert.Zero(t, Combine(Signal{Score: 1}, Signal{Score: -1}))
	})

	t.Run("clamped", func(t *testing.T) {
		got := Combine(Signal{Score: 5, Confidence: 1}, Signal{Score: 5, Confidence: 1})
		assert.Equal(t, 1.0, got)
	})
}

func TestBlend(t *testing.T) {
	auto := Breakdown{AutomaticScore: 0.4, CombinedScore: 0.4, Confidence: 0.5}
	blended := Blend(auto, Signal{Score: -0.6, Confidence: 1.0})

	assert.NotNil(t, blended.SemanticScore)
	assert.Equal(t, -0.6, *blended.SemanticScore)
	// Weighted toward the higher-confidence semantic side.
	assert.Less(t, blended.CombinedScore, 0.0)
	assert.GreaterOrEqual(t, blended.CombinedScore, -1.0)
}

func TestClassifyFeedbackType(t *testing.T) {
	tests := []struct {
		reward float64
		want   string
	}{
		{0.95, FeedbackApprove},
		{0.8, FeedbackApprove},
		{0.6, FeedbackGood},
		{0.5, FeedbackGood},
		{0.2, FeedbackNeutral},
		{0.0, FeedbackNeutral},
		{-0.1, FeedbackEdit},
		{-0.3, FeedbackEdit},
		{-0.5, FeedbackFix},
		{-0.6, FeedbackFix},
		{-0.9, FeedbackWrong},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyFeedbackType(tt.reward), "reward %v", tt.reward)
	}
}

func TestClassifyFeedbackTypeMonotonic(t *testing.T) {
	rank := map[string]int{
		FeedbackWrong:   0,
		FeedbackFix:     1,
		FeedbackEdit:    2,
		FeedbackNeutral: 3,
		FeedbackGood:    4,
		FeedbackApprove: 5,
	}
	prev := -1
	for r := -1.0; r <= 1.0; r += 0.01 {
		cur := rank[ClassifyFeedbackType(r)]
		assert.GreaterOrEqual(t, cur, prev, "reward %v", r)
		prev = cur
	}
}
