package feedback

import "regexp"

// PatternTableVersion identifies the rule tables below. Bump it whenever a
// table entry is added, removed, or reordered so downstream analysis can
// distinguish parses produced by different rule sets.
const PatternTableVersion = "v1"

// Intent is the classified purpose of a feedback message.
type Intent string

const (
	IntentCorrection Intent = "correction"
	IntentSuggestion Intent = "suggestion"
	IntentPraise     Intent = "praise"
	IntentCriticism  Intent = "criticism"
	IntentQuestion   Intent = "question"
)

// intentRule binds an intent to its marker patterns. Rules are evaluated in
// table order and the first hit wins, so correction markers outrank
// suggestion markers, and so on down to questions.
type intentRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

var intentRules = []intentRule{
	{IntentCorrection, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bshould\s+be\b`),
		regexp.MustCompile(`(?i)\bchange\s+(?:it\s+)?to\b`),
		regexp.MustCompile(`(?i)\bwrong\b`),
		regexp.MustCompile(`(?i)\bactually\s+is\b`),
		regexp.MustCompile(`(?i)\bfix\b`),
	}},
	{IntentSuggestion, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btry\b`),
		regexp.MustCompile(`(?i)\bmaybe\b`),
		regexp.MustCompile(`(?i)\bconsider\b`),
		regexp.MustCompile(`(?i)\bcould\b`),
		regexp.MustCompile(`(?i)\bwhat\s+about\b`),
	}},
	{IntentPraise, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgood\b`),
		regexp.MustCompile(`(?i)\bperfect\b`),
		regexp.MustCompile(`(?i)\bcorrect\b`),
		regexp.MustCompile(`(?i)\bgreat\b`),
		regexp.MustCompile(`(?i)\bnice\b`),
		regexp.MustCompile(`(?i)\bthanks?\b`),
	}},
	{IntentCriticism, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bbad\b`),
		regexp.MustCompile(`(?i)\bincorrect\b`),
		regexp.MustCompile(`(?i)\bmissing\b`),
		regexp.MustCompile(`(?i)\bpoor\b`),
		regexp.MustCompile(`(?i)\buseless\b`),
	}},
	{IntentQuestion, []*regexp.Regexp{
		regexp.MustCompile(`\?`),
		regexp.MustCompile(`(?i)^why\b`),
		regexp.MustCompile(`(?i)^how\b`),
		regexp.MustCompile(`(?i)^what\b`),
	}},
}

// Metric is a normalized metric category.
type Metric string

const (
	MetricRevenue   Metric = "revenue"
	MetricMargin    Metric = "margin"
	MetricGrowth    Metric = "growth"
	MetricCost      Metric = "cost"
	MetricEBITDA    Metric = "ebitda"
	MetricValuation Metric = "valuation"
	MetricHeadcount Metric = "headcount"
)

// metricRule maps vocabulary to a metric category. First match wins, so the
// more specific families sit above the generic ones.
type metricRule struct {
	metric  Metric
	pattern *regexp.Regexp
}

var metricRules = []metricRule{
	{MetricEBITDA, regexp.MustCompile(`(?i)\bebitda\b`)},
	{MetricMargin, regexp.MustCompile(`(?i)\b(?:gross\s+)?margins?\b|\bprofitability\b`)},
	{MetricGrowth, regexp.MustCompile(`(?i)\bgrowth\b|\bcagr\b|\byoy\b|\byear[\s-]over[\s-]year\b`)},
	{MetricRevenue, regexp.MustCompile(`(?i)\brevenues?\b|\bsales\b|\bturnover\b|\btop\s*line\b`)},
	{MetricCost, regexp.MustCompile(`(?i)\bcosts?\b|\bexpenses?\b|\bopex\b|\bcapex\b|\bspend\b`)},
	{MetricValuation, regexp.MustCompile(`(?i)\bvaluation\b|\bmultiple\b|\benterprise\s+value\b`)},
	{MetricHeadcount, regexp.MustCompile(`(?i)\bheadcount\b|\bemployees?\b|\bfte\b`)},
}

// Value extraction patterns, tried in order: percentage, magnitude-suffixed
// currency, bare number, quoted string.
var (
	percentPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	magnitudePattern = regexp.MustCompile(`[$€£]?\s*(\d+(?:[.,]\d+)?)\s*([kKmMbB])\b`)
	numberPattern    = regexp.MustCompile(`[$€£]?\s*(\d+(?:,\d{3})*(?:\.\d+)?)\b`)
	quotedPattern    = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// Cell reference tokens like B2 or AA120.
var cellRefPattern = regexp.MustCompile(`\b[A-Za-z]{1,2}[0-9]{1,3}\b`)

// Certainty and hedging language adjust parse confidence.
var (
	certaintyPattern = regexp.MustCompile(`(?i)\bshould\s+be\b|\bexactly\b|\bdefinitely\b|\bmust\s+be\b`)
	hedgingPattern   = regexp.MustCompile(`(?i)\bmaybe\b|\bpossibly\b|\bperhaps\b|\bi\s+think\b|\bnot\s+sure\b`)
)

var magnitudeMultipliers = map[string]float64{
	"k": 1e3,
	"m": 1e6,
	"b": 1e9,
}
