package store

import (
	"time"
)

// Metadata carries the contextual fields attached to an experience.
type Metadata struct {
	DomainTag    string `json:"domain_tag"`
	Company      string `json:"company,omitempty"`
	UserIntent   string `json:"user_intent,omitempty"`
	FeedbackType string `json:"feedback_type,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// Experience is one immutable (state, action, outcome, reward) record.
// Created exactly once per completed execute→feedback cycle and never
// mutated afterwards; the store is append-only.
type Experience struct {
	ID        string   `json:"id"`
	State     string   `json:"state"`
	Action    string   `json:"action"`
	NextState string   `json:"next_state"`
	Reward    float64  `json:"reward"`
	Metadata  Metadata `json:"metadata"`
}

// CreateExperience specifies data for persisting one experience.
type CreateExperience struct {
	State     string
	Action    string
	NextState string
	Reward    float64
	Embedding []float32
	Metadata  Metadata
}

// Normalize fills defaulted metadata fields.
func (c *CreateExperience) Normalize() {
	if c.Metadata.Timestamp == 0 {
		c.Metadata.Timestamp = time.Now().Unix()
	}
}

// FindExperience specifies conditions for listing experiences.
type FindExperience struct {
	DomainTag *string
	Company   *string
	Limit     int
}

// Match is one similarity-search result.
type Match struct {
	Action     string  `json:"action"`
	Reward     float64 `json:"reward"`
	Similarity float64 `json:"similarity"`
}

// MatchSimilarOptions parameterizes a similarity search.
type MatchSimilarOptions struct {
	Vector        []float32
	MinSimilarity float64
	Limit         int
	DomainTag     string // optional filter; empty matches all
}

// Validate checks and defaults search options.
func (o *MatchSimilarOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errEmptyVector
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	return nil
}

// ActionStat aggregates how one action text has performed historically.
type ActionStat struct {
	Action    string  `json:"action"`
	AvgReward float64 `json:"avg_reward"`
	TimesUsed int     `json:"times_used"`
}

// BestActionsOptions parameterizes a best-action ranking query.
type BestActionsOptions struct {
	Vector    []float32
	MinReward float64
	Limit     int
}

// Validate checks and defaults ranking options.
func (o *BestActionsOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errEmptyVector
	}
	if o.Limit <= 0 {
		o.Limit = 5
	}
	return nil
}
