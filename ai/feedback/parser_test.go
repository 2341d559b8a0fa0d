package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gridsense/ai/grid"
)

func TestParseCorrectionScenario(t *testing.T) {
	p := NewParser()
	fb := p.Parse("B2 should be 350000", nil)

	assert.Equal(t, IntentCorrection, fb.Intent)
	assert.Equal(t, "B2", fb.TargetRef)
	require.NotNil(t, fb.SuggestedValue)
	assert.True(t, fb.SuggestedValue.IsNumber)
	assert.Equal(t, 350000.0, fb.SuggestedValue.Number)
	assert.Greater(t, fb.Confidence, 0.6)
	assert.Contains(t, fb.SuggestedAction, "B2")
	assert.Contains(t, fb.SuggestedAction, "350000")
}

func TestParseLowercaseCellRef(t *testing.T) {
	p := NewParser()
	fb := p.Parse("b2 should be 350000", nil)

	assert.Equal(t, "B2", fb.TargetRef)
	require.NotNil(t, fb.SuggestedValue)
	assert.Equal(t, 350000.0, fb.SuggestedValue.Number)
	assert.Equal(t, "set B2 350000", fb.SuggestedAction)

	// A lowercase ref with no other number must not surface its own digits
	// as the suggested value.
	fb = p.Parse("b2 is wrong", nil)
	assert.Equal(t, "B2", fb.TargetRef)
	assert.Nil(t, fb.SuggestedValue)
	assert.Empty(t, fb.SuggestedAction)
}

func TestClassifyIntentPriority(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"B2 should be 350000", IntentCorrection},
		{"change it to 5%", IntentCorrection},
		{"this is wrong", IntentCorrection},
		{"maybe try a formula here", IntentSuggestion},
		{"consider adding a growth row", IntentSuggestion},
		{"perfect, exactly right", IntentPraise},
		{"looks good", IntentPraise},
		{"perfect", IntentPraise},
		{"that value is incorrect", IntentCriticism},
		{"the margin row is missing", IntentCriticism},
		{"why is B2 empty?", IntentQuestion},
		{"how does this formula work", IntentQuestion},
		{"add a revenue row for 2023", IntentSuggestion}, // default
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			fb := NewParser().Parse(tt.text, nil)
			assert.Equal(t, tt.want, fb.Intent)
		})
	}
}

func TestCorrectionOutranksSuggestion(t *testing.T) {
	// Both marker families present; correction sits higher in the table.
	fb := NewParser().Parse("maybe B2 should be 100", nil)
	assert.Equal(t, IntentCorrection, fb.Intent)
}

func TestExtractValue(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Value
	}{
		{"percentage", "growth should be 12.5%", Value{Number: 0.125, IsNumber: true}},
		{"thousands suffix", "should be 350k", Value{Number: 350000, IsNumber: true}},
		{"millions with currency", "revenue should be $2.5M", Value{Number: 2500000, IsNumber: true}},
		{"billions", "valuation should be 1B", Value{Number: 1e9, IsNumber: true}},
		{"bare number", "should be 42", Value{Number: 42, IsNumber: true}},
		{"comma separated", "should be 1,250,000", Value{Number: 1250000, IsNumber: true}},
		{"quoted string", `should be "Acme Corp"`, Value{Text: "Acme Corp"}},
		{"single quoted", "should be 'pending review'", Value{Text: "pending review"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := NewParser().Parse(tt.text, nil)
			require.NotNil(t, fb.SuggestedValue)
			assert.Equal(t, tt.want, *fb.SuggestedValue)
		})
	}

	t.Run("no value", func(t *testing.T) {
		fb := NewParser().Parse("this looks wrong", nil)
		assert.Nil(t, fb.SuggestedValue)
	})

	t.Run("cell ref digits are not a value", func(t *testing.T) {
		fb := NewParser().Parse("B2 is wrong", nil)
		assert.Nil(t, fb.SuggestedValue)
		assert.Equal(t, "B2", fb.TargetRef)
	})
}

func TestExtractMetric(t *testing.T) {
	tests := []struct {
		text string
		want Metric
	}{
		{"the revenue number looks off", MetricRevenue},
		{"sales should be higher", MetricRevenue},
		{"gross margin is wrong", MetricMargin},
		{"check the CAGR", MetricGrowth},
		{"opex is missing", MetricCost},
		{"EBITDA margin", MetricEBITDA}, // ebitda outranks margin
		{"the valuation multiple", MetricValuation},
		{"headcount for 2023", MetricHeadcount},
		{"nothing relevant here", Metric("")},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, NewParser().Parse(tt.text, nil).TargetMetric)
		})
	}
}

func TestSynthesizeActionViaMetricGrounding(t *testing.T) {
	state := grid.State{
		"A3": {Value: "Revenue", Type: grid.CellTypeText},
		"B3": {Value: "100000", Type: grid.CellTypeNumber},
	}
	fb := NewParser().Parse("revenue should be 350k", state)

	assert.Equal(t, IntentCorrection, fb.Intent)
	assert.Equal(t, MetricRevenue, fb.TargetMetric)
	assert.Equal(t, "set B3 350000", fb.SuggestedAction)
}

func TestMetricGroundingIsDeterministic(t *testing.T) {
	// Two labels match the revenue vocabulary; grounding must always pick
	// the first in sorted reference order.
	state := grid.State{
		"A5": {Value: "Revenue 2024", Type: grid.CellTypeText},
		"A2": {Value: "Revenue 2023", Type: grid.CellTypeText},
	}
	for range 20 {
		fb := NewParser().Parse("revenue should be 350k", state)
		assert.Equal(t, "set B2 350000", fb.SuggestedAction)
	}
}

func TestNoActionWithoutTarget(t *testing.T) {
	// Value but no target reference and no groundable metric.
	fb := NewParser().Parse("should be 500", nil)
	assert.Empty(t, fb.SuggestedAction)
	require.NotNil(t, fb.SuggestedValue)
}

func TestNoActionWithoutValue(t *testing.T) {
	fb := NewParser().Parse("B2 is wrong", nil)
	assert.Empty(t, fb.SuggestedAction)
}

func TestConfidenceScoring(t *testing.T) {
	p := NewParser()

	t.Run("hedging lowers confidence", func(t *testing.T) {
		certain := p.Parse("B2 should be 100", nil)
		hedged := p.Parse("maybe B2 could possibly be 100", nil)
		assert.Greater(t, certain.Confidence, hedged.Confidence)
	})

	t.Run("bare text has low confidence", func(t *testing.T) {
		fb := p.Parse("hm", nil)
		assert.LessOrEqual(t, fb.Confidence, 0.4)
	})

	t.Run("confidence clamped to [0,1]", func(t *testing.T) {
		fb := p.Parse("B2 should be exactly 350000", nil)
		assert.LessOrEqual(t, fb.Confidence, 1.0)
		assert.GreaterOrEqual(t, fb.Confidence, 0.0)
	})
}

func TestRewardScaling(t *testing.T) {
	p := NewParser()

	praise := p.Parse("looks good, thanks", nil)
	assert.Equal(t, IntentPraise, praise.Intent)
	assert.InDelta(t, 0.8*praise.Confidence, praise.Reward, 1e-9)
	assert.Greater(t, praise.Reward, 0.0)

	criticism := p.Parse("this column is incorrect and missing data", nil)
	assert.Equal(t, IntentCriticism, criticism.Intent)
	assert.Less(t, criticism.Reward, 0.0)

	question := p.Parse("why is this empty?", nil)
	assert.Zero(t, question.Reward)
}

func TestParseNeverPanicsOnGarbage(t *testing.T) {
	p := NewParser()
	for _, text := range []string{"", "   ", "!!!", "££££ 🚀", "\x00\x01"} {
		fb := p.Parse(text, nil)
		assert.Equal(t, text, fb.RawText)
		assert.NotEmpty(t, fb.Intent)
	}
}
