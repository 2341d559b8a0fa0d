// Package inmem implements the experience store driver in process memory.
// It backs unit tests and runs without a configured database; semantics
// mirror the postgres driver, including cosine similarity ranking.
package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/gridsense/ai/embedding"
	"github.com/hrygo/gridsense/store"
)

type record struct {
	exp store.Experience
	vec []float32
}

// DB is the in-memory driver. Append-only; records are never mutated.
type DB struct {
	mu      sync.RWMutex
	records []record
}

// NewDB creates an empty in-memory driver.
func NewDB() *DB {
	return &DB{}
}

// Migrate is a no-op for the in-memory driver.
func (d *DB) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory driver.
func (d *DB) Close() error { return nil }

// CreateExperience appends one experience.
func (d *DB) CreateExperience(ctx context.Context, create *store.CreateExperience) (*store.Experience, error) {
	if create == nil {
		return nil, errors.New("nil create")
	}
	exp := store.Experience{
		ID:        uuid.NewString(),
		State:     create.State,
		Action:    create.Action,
		NextState: create.NextState,
		Reward:    create.Reward,
		Metadata:  create.Metadata,
	}
	vec := make([]float32, len(create.Embedding))
	copy(vec, create.Embedding)

	d.mu.Lock()
	d.records = append(d.records, record{exp: exp, vec: vec})
	d.mu.Unlock()

	out := exp
	return &out, nil
}

// MatchSimilar ranks stored experiences by cosine similarity to the query.
func (d *DB) MatchSimilar(ctx context.Context, opts *store.MatchSimilarOptions) ([]store.Match, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matches := []store.Match{}
	for _, r := range d.records {
		if len(r.vec) == 0 {
			continue
		}
		if opts.DomainTag != "" && r.exp.Metadata.DomainTag != opts.DomainTag {
			continue
		}
		sim := embedding.Cosine(opts.Vector, r.vec)
		if sim < opts.MinSimilarity {
			continue
		}
		matches = append(matches, store.Match{
			Action:     r.exp.Action,
			Reward:     r.exp.Reward,
			Similarity: sim,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// BestActions aggregates rewards per action text within a similarity
// neighborhood of the query, mirroring the postgres driver.
func (d *DB) BestActions(ctx context.Context, opts *store.BestActionsOptions) ([]store.ActionStat, error) {
	const neighborhood = 0.3

	d.mu.RLock()
	defer d.mu.RUnlock()

	type agg struct {
		sum   float64
		count int
	}
	byAction := map[string]*agg{}
	for _, r := range d.records {
		if len(r.vec) == 0 {
			continue
		}
		if embedding.Cosine(opts.Vector, r.vec) < neighborhood {
			continue
		}
		a := byAction[r.exp.Action]
		if a == nil {
			a = &agg{}
			byAction[r.exp.Action] = a
		}
		a.sum += r.exp.Reward
		a.count++
	}

	stats := []store.ActionStat{}
	for action, a := range byAction {
		avg := a.sum / float64(a.count)
		if avg < opts.MinReward {
			continue
		}
		stats = append(stats, store.ActionStat{Action: action, AvgReward: avg, TimesUsed: a.count})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AvgReward != stats[j].AvgReward {
			return stats[i].AvgReward > stats[j].AvgReward
		}
		return stats[i].TimesUsed > stats[j].TimesUsed
	})
	if len(stats) > opts.Limit {
		stats = stats[:opts.Limit]
	}
	return stats, nil
}

// ListExperiences lists experiences, newest first.
func (d *DB) ListExperiences(ctx context.Context, find *store.FindExperience) ([]*store.Experience, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := []*store.Experience{}
	for i := len(d.records) - 1; i >= 0; i-- {
		exp := d.records[i].exp
		if find.DomainTag != nil && exp.Metadata.DomainTag != *find.DomainTag {
			continue
		}
		if find.Company != nil && exp.Metadata.Company != *find.Company {
			continue
		}
		out := exp
		list = append(list, &out)
		if find.Limit > 0 && len(list) >= find.Limit {
			break
		}
	}
	return list, nil
}
