// Package session orchestrates the execute → observe → reward → learn cycle
// for one grid-editing session.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/gridsense/ai/feedback"
	"github.com/hrygo/gridsense/ai/generate"
	"github.com/hrygo/gridsense/ai/grid"
	"github.com/hrygo/gridsense/ai/metrics"
	"github.com/hrygo/gridsense/ai/policy"
	"github.com/hrygo/gridsense/ai/reward"
	"github.com/hrygo/gridsense/store"
)

// Thresholds governing the cycle.
const (
	// autoFinalizeScore and autoFinalizeConfidence gate immediate
	// finalization without waiting for human feedback.
	autoFinalizeScore      = 0.7
	autoFinalizeConfidence = 0.6

	// correctiveApplyConfidence gates applying a parsed corrective action
	// to the grid.
	correctiveApplyConfidence = 0.6

	// recentWindow caps the session-scoped experience buffer.
	recentWindow = 50
)

// Config is the per-session learning configuration.
type Config struct {
	DomainTag   string  `json:"domain_tag"`
	Company     string  `json:"company,omitempty"`
	Epsilon     float64 `json:"epsilon"`
	Temperature float64 `json:"temperature"`
	AutoLearn   bool    `json:"auto_learn"`
}

// Deps are the collaborators a controller drives. Store and Policy are
// required; Generator and Metrics may be nil.
type Deps struct {
	Store     *store.Store
	Policy    *policy.Agent
	Parser    *feedback.Parser
	Generator generate.Generator
	Metrics   *metrics.Exporter
}

// Controller owns one session's ephemeral state. All mutating methods
// serialize on an internal mutex; remote calls are logically sequential
// within one cycle.
type Controller struct {
	id   string
	cfg  Config
	deps Deps

	mu             sync.Mutex
	previousState  grid.State // nil when no cycle is pending
	previousAction string
	previousIntent string
	pendingNext    grid.State
	lastBreakdown  *reward.Breakdown
	buffer         []*store.Experience
}

// New creates a session controller.
func New(cfg Config, deps Deps) *Controller {
	if deps.Parser == nil {
		deps.Parser = feedback.NewParser()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 1.0
	}
	return &Controller{
		id:   shortuuid.New(),
		cfg:  cfg,
		deps: deps,
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Config returns the session configuration.
func (c *Controller) Config() Config { return c.cfg }

// ExecuteResult reports one execute cycle.
type ExecuteResult struct {
	Executed      bool              `json:"executed"`
	Command       string            `json:"command,omitempty"`
	Suggestion    policy.Action     `json:"suggestion"`
	Breakdown     *reward.Breakdown `json:"breakdown,omitempty"`
	AutoFinalized bool              `json:"auto_finalized"`
	ExperienceID  string            `json:"experience_id,omitempty"`
}

// ExecuteWithLearning runs one decision cycle: consult the policy, execute
// the chosen command against the grid, score the transition, and either
// auto-finalize on a strong confident signal or hold the cycle pending
// feedback. Calling again before feedback overwrites the pending cycle;
// last write wins.
func (c *Controller) ExecuteWithLearning(ctx context.Context, command string, g grid.Capability, intent string) *ExecuteResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := g.GetState()

	suggestion := c.deps.Policy.SelectAction(ctx, before, intent, c.cfg.DomainTag)
	c.deps.Metrics.RecordDecision(c.cfg.DomainTag, string(suggestion.Source))

	chosen := c.chooseCommand(ctx, command, before, intent, &suggestion)
	if chosen == "" {
		c.deps.Metrics.RecordExecution(c.cfg.DomainTag, false)
		return &ExecuteResult{Executed: false, Suggestion: suggestion}
	}

	cmd, err := grid.Parse(chosen)
	if err == nil {
		err = g.Apply(cmd)
	}
	if err != nil {
		// Execution failure abandons the cycle; nothing is persisted.
		slog.Warn("command rejected by grid, cycle abandoned",
			"session", c.id, "command", chosen, "error", err)
		c.deps.Metrics.RecordExecution(c.cfg.DomainTag, false)
		return &ExecuteResult{Executed: false, Command: chosen, Suggestion: suggestion}
	}
	c.deps.Metrics.RecordExecution(c.cfg.DomainTag, true)

	after := g.GetState()
	breakdown := reward.Automatic(before, after, chosen, intent, c.cfg.DomainTag)

	c.deps.Policy.UpdateExplorationRate(breakdown.CombinedScore)
	c.deps.Metrics.RecordEpsilon(c.id, c.deps.Policy.Epsilon())

	result := &ExecuteResult{
		Executed:   true,
		Command:    chosen,
		Suggestion: suggestion,
		Breakdown:  &breakdown,
	}

	if breakdown.Confidence >= autoFinalizeConfidence && abs(breakdown.CombinedScore) >= autoFinalizeScore {
		c.previousState, c.previousAction, c.previousIntent = before, chosen, intent
		c.pendingNext, c.lastBreakdown = after, &breakdown
		result.AutoFinalized = true
		result.ExperienceID = c.finalizeLocked(ctx, breakdown)
		return result
	}

	// Hold the cycle; feedback consumes it at most once.
	c.previousState, c.previousAction, c.previousIntent = before, chosen, intent
	c.pendingNext, c.lastBreakdown = after, &breakdown
	return result
}

// chooseCommand picks what actually runs: a confident retrieved action, the
// caller's command, or a freshly generated candidate.
func (c *Controller) chooseCommand(ctx context.Context, command string, before grid.State, intent string, suggestion *policy.Action) string {
	if suggestion.Source == policy.SourceRetrieval && suggestion.Confidence >= policy.ExecutionThreshold {
		return suggestion.Action
	}
	if command != "" {
		return command
	}
	if c.deps.Generator == nil {
		return ""
	}
	generated, err := c.deps.Generator.Generate(ctx, intent, before)
	if err != nil {
		slog.Warn("generation unavailable, nothing to execute",
			"session", c.id, "error", err)
		return ""
	}
	suggestion.Action = generated
	return generated
}

// Signal is the input to RecordFeedback: an explicit score, free-form text,
// or both. Text takes effect through the semantic parser.
type Signal struct {
	Score *float64 `json:"score,omitempty"`
	Text  string   `json:"text,omitempty"`
	Note  string   `json:"note,omitempty"`
}

// FeedbackResult reports one feedback cycle.
type FeedbackResult struct {
	Recorded     bool               `json:"recorded"`
	ExperienceID string             `json:"experience_id,omitempty"`
	Parsed       *feedback.Feedback `json:"parsed,omitempty"`
	Breakdown    *reward.Breakdown  `json:"breakdown,omitempty"`
	FeedbackType string             `json:"feedback_type,omitempty"`
}

// RecordFeedback closes the pending cycle: parse or accept the signal,
// optionally apply a synthesized corrective action, blend rewards, persist
// exactly one experience, and clear the pending slot. With no pending cycle
// this is a logged no-op, never an error.
func (c *Controller) RecordFeedback(ctx context.Context, signal Signal, g grid.Capability) *FeedbackResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.previousState == nil {
		slog.Warn("feedback with no pending cycle, ignoring", "session", c.id)
		return &FeedbackResult{Recorded: false}
	}

	semantic := reward.Signal{}
	result := &FeedbackResult{Recorded: true}

	if signal.Text != "" {
		var current grid.State
		if g != nil {
			current = g.GetState()
		}
		parsed := c.deps.Parser.Parse(signal.Text, current)
		result.Parsed = &parsed
		c.deps.Metrics.RecordFeedbackIntent(string(parsed.Intent))

		if g != nil && parsed.SuggestedAction != "" && parsed.Confidence >= correctiveApplyConfidence {
			if cmd, err := grid.Parse(parsed.SuggestedAction); err == nil {
				if err := g.Apply(cmd); err != nil {
					slog.Warn("corrective action rejected by grid",
						"session", c.id, "action", parsed.SuggestedAction, "error", err)
				}
			}
		}
		semantic = reward.Signal{Score: parsed.Reward, Confidence: parsed.Confidence}
	}
	if signal.Score != nil {
		semantic = reward.Signal{Score: clampScore(*signal.Score), Confidence: 1.0}
	}

	blended := reward.Blend(*c.lastBreakdown, semantic)
	result.Breakdown = &blended
	result.FeedbackType = reward.ClassifyFeedbackType(blended.CombinedScore)

	if g != nil {
		c.pendingNext = g.GetState()
	}
	result.ExperienceID = c.finalizeLocked(ctx, blended)
	return result
}

// finalizeLocked persists the pending cycle as one experience and clears
// the pending slot. Caller holds c.mu.
func (c *Controller) finalizeLocked(ctx context.Context, blended reward.Breakdown) string {
	feedbackType := reward.ClassifyFeedbackType(blended.CombinedScore)
	embeddingVec := c.deps.Policy.QueryVector(c.previousState, c.previousIntent, c.cfg.DomainTag)

	create := &store.CreateExperience{
		State:     c.previousState.Serialize(),
		Action:    c.previousAction,
		NextState: c.pendingNext.Serialize(),
		Reward:    blended.CombinedScore,
		Embedding: embeddingVec,
		Metadata: store.Metadata{
			DomainTag:    c.cfg.DomainTag,
			Company:      c.cfg.Company,
			UserIntent:   c.previousIntent,
			FeedbackType: feedbackType,
		},
	}

	id := c.deps.Store.CreateExperience(ctx, create)
	c.deps.Metrics.RecordReward(c.cfg.DomainTag, blended.CombinedScore)

	exp := &store.Experience{
		ID:        id,
		State:     create.State,
		Action:    create.Action,
		NextState: create.NextState,
		Reward:    create.Reward,
		Metadata:  create.Metadata,
	}
	c.buffer = append(c.buffer, exp)
	if len(c.buffer) > recentWindow {
		c.buffer = c.buffer[len(c.buffer)-recentWindow:]
	}

	if c.cfg.AutoLearn {
		c.learnLocked(ctx, nil)
	}

	c.previousState, c.previousAction, c.previousIntent = nil, "", ""
	c.pendingNext, c.lastBreakdown = nil, nil
	return id
}

// Learn refreshes the policy's cached preference weighting from a batch of
// experiences, defaulting to the session's recent buffer.
func (c *Controller) Learn(ctx context.Context, experiences []*store.Experience) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.learnLocked(ctx, experiences)
}

func (c *Controller) learnLocked(ctx context.Context, experiences []*store.Experience) {
	if experiences == nil {
		experiences = make([]*store.Experience, len(c.buffer))
		copy(experiences, c.buffer)
	}
	c.deps.Policy.RefreshPreferences(ctx, experiences)
}

// SuccessRate reports the success fraction over the recent reward window.
func (c *Controller) SuccessRate() float64 {
	return c.deps.Policy.SuccessRate()
}

// Epsilon reports the current exploration rate.
func (c *Controller) Epsilon() float64 {
	return c.deps.Policy.Epsilon()
}

// HasPending reports whether a cycle awaits feedback.
func (c *Controller) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previousState != nil
}

func clampScore(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
