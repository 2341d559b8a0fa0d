// Package policy chooses between exploiting retrieved past actions and
// requesting freshly generated ones, with an adaptively decaying
// exploration rate.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/hrygo/gridsense/ai/embedding"
	"github.com/hrygo/gridsense/ai/grid"
	"github.com/hrygo/gridsense/store"
)

// Source marks where an action came from.
type Source string

const (
	SourceRetrieval  Source = "retrieval"
	SourceGeneration Source = "generation"
)

// Action is one decision-point output. Consumed immediately, never persisted
// on its own.
type Action struct {
	Action     string  `json:"action"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Exploration-rate bounds and update factors.
const (
	EpsilonMin = 0.05
	EpsilonMax = 0.5

	historyCap    = 100
	successWindow = 20

	decayOnSuccess  = 0.95
	growthOnFailure = 1.1
	driftFactor     = 0.98
)

// ExecutionThreshold is the minimum retrieval confidence at which callers
// auto-apply an action instead of surfacing it as a suggestion.
const ExecutionThreshold = 0.7

// Config parameterizes an agent.
type Config struct {
	// Epsilon is the initial exploration probability.
	Epsilon float64
	// MatchThreshold is the minimum similarity for retrieval candidates.
	MatchThreshold float64
	// MatchLimit bounds the retrieval candidate set.
	MatchLimit int
	// Rand overrides the random source. Tests inject a seeded source.
	Rand *rand.Rand
}

// Agent is the action-selection policy. Safe for use from one session
// goroutine; its own state is guarded for the epsilon accessors.
type Agent struct {
	store    *store.Store
	embedder embedding.Embedder

	matchThreshold float64
	matchLimit     int
	rng            *rand.Rand

	mu          sync.Mutex
	epsilon     float64
	history     []float64
	successRate float64
	prefs       []store.ActionStat
}

// NewAgent creates a policy agent over the experience store.
func NewAgent(st *store.Store, embedder embedding.Embedder, cfg Config) *Agent {
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 0.3
	}
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = 0.5
	}
	if cfg.MatchLimit == 0 {
		cfg.MatchLimit = 5
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Agent{
		store:          st,
		embedder:       embedder,
		matchThreshold: cfg.MatchThreshold,
		matchLimit:     cfg.MatchLimit,
		rng:            rng,
		epsilon:        clampEpsilon(cfg.Epsilon),
	}
}

// QueryVector embeds an intent against a state snapshot. The same encoding
// is used when persisting experiences, so stored vectors and queries live in
// one space.
func (a *Agent) QueryVector(state grid.State, intent, domainTag string) []float32 {
	return a.embedder.Embed(intent+"\n"+state.Serialize(), domainTag)
}

// SelectAction decides between exploiting a retrieved action and requesting
// generation. A store failure surfaces as an empty candidate set and lands
// on the generation branch; selection itself never fails.
func (a *Agent) SelectAction(ctx context.Context, state grid.State, intent, domainTag string) Action {
	query := a.QueryVector(state, intent, domainTag)

	matches := a.store.MatchSimilar(ctx, &store.MatchSimilarOptions{
		Vector:        query,
		MinSimilarity: a.matchThreshold,
		Limit:         a.matchLimit,
		DomainTag:     domainTag,
	})

	if len(matches) == 0 {
		return Action{
			Source:     SourceGeneration,
			Confidence: 0.1,
			Rationale:  "no similar past experience, exploring",
		}
	}

	epsilon := a.Epsilon()
	if a.roll() < epsilon {
		return Action{
			Source:     SourceGeneration,
			Confidence: 0.2,
			Rationale:  fmt.Sprintf("exploration draw under epsilon %.2f", epsilon),
		}
	}

	best := pickBest(matches)
	slog.Debug("policy exploiting retrieved action",
		"action", best.Action,
		"confidence", best.Confidence,
		"candidates", len(matches))
	return best
}

// pickBest collapses duplicate action texts keeping the max
// similarity × normalizedReward score, then returns the top candidate.
func pickBest(matches []store.Match) Action {
	scores := map[string]float64{}
	for _, m := range matches {
		score := m.Similarity * normalizeReward(m.Reward)
		if score > scores[m.Action] {
			scores[m.Action] = score
		}
	}

	var bestAction string
	bestScore := -1.0
	for action, score := range scores {
		if score > bestScore || (score == bestScore && action < bestAction) {
			bestAction, bestScore = action, score
		}
	}

	return Action{
		Action:     bestAction,
		Source:     SourceRetrieval,
		Confidence: bestScore,
		Rationale:  fmt.Sprintf("best of %d retrieved candidates", len(matches)),
	}
}

// normalizeReward maps [-1,1] onto [0,1].
func normalizeReward(r float64) float64 {
	return (r + 1) / 2
}

func (a *Agent) roll() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Float64()
}

// UpdateExplorationRate folds one observed reward into the rolling history
// and adapts epsilon: decay when the recent window succeeds, grow when it
// fails, drift down slowly otherwise.
func (a *Agent) UpdateExplorationRate(reward float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, reward)
	if len(a.history) > historyCap {
		a.history = a.history[len(a.history)-historyCap:]
	}

	window := a.history
	if len(window) > successWindow {
		window = window[len(window)-successWindow:]
	}
	successes := 0
	for _, r := range window {
		if r > 0.5 {
			successes++
		}
	}
	a.successRate = float64(successes) / float64(len(window))

	switch {
	case a.successRate > 0.7:
		a.epsilon *= decayOnSuccess
	case a.successRate < 0.3:
		a.epsilon *= growthOnFailure
	default:
		a.epsilon *= driftFactor
	}
	a.epsilon = clampEpsilon(a.epsilon)
}

// RefreshPreferences recomputes the cached best-action ranking from recent
// experiences. Called from batched learning; an empty batch is a no-op.
func (a *Agent) RefreshPreferences(ctx context.Context, experiences []*store.Experience) {
	if len(experiences) == 0 {
		return
	}
	latest := experiences[len(experiences)-1]
	query := a.embedder.Embed(latest.Metadata.UserIntent+"\n"+latest.State, latest.Metadata.DomainTag)

	stats := a.store.BestActions(ctx, &store.BestActionsOptions{
		Vector:    query,
		MinReward: 0,
		Limit:     10,
	})

	a.mu.Lock()
	a.prefs = stats
	a.mu.Unlock()

	slog.Debug("policy preferences refreshed", "actions", len(stats), "batch", len(experiences))
}

// Preferences returns the last cached best-action ranking.
func (a *Agent) Preferences() []store.ActionStat {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]store.ActionStat, len(a.prefs))
	copy(out, a.prefs)
	return out
}

// Epsilon returns the current exploration rate.
func (a *Agent) Epsilon() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epsilon
}

// SetEpsilon restores the exploration rate, clamped to its bounds.
// Used by session import.
func (a *Agent) SetEpsilon(epsilon float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epsilon = clampEpsilon(epsilon)
}

// SuccessRate returns the success fraction over the recent window.
func (a *Agent) SuccessRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.successRate
}

// History returns a copy of the rolling reward history.
func (a *Agent) History() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float64, len(a.history))
	copy(out, a.history)
	return out
}

// SetHistory restores the reward history, keeping at most the cap.
// Used by session import.
func (a *Agent) SetHistory(history []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	a.history = make([]float64, len(history))
	copy(a.history, history)
}

func clampEpsilon(e float64) float64 {
	if e < EpsilonMin {
		return EpsilonMin
	}
	if e > EpsilonMax {
		return EpsilonMax
	}
	return e
}
