// Package store persists experiences and serves similarity queries over
// them. The facade degrades gracefully: every driver failure is logged and
// converted to an empty result (reads) or an empty identifier (writes), so
// callers in the learning loop never see a store error.
package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

var errEmptyVector = errors.New("query vector cannot be empty")

// Driver is the storage backend for experiences.
type Driver interface {
	CreateExperience(ctx context.Context, create *CreateExperience) (*Experience, error)
	MatchSimilar(ctx context.Context, opts *MatchSimilarOptions) ([]Match, error)
	BestActions(ctx context.Context, opts *BestActionsOptions) ([]ActionStat, error)
	ListExperiences(ctx context.Context, find *FindExperience) ([]*Experience, error)
	Migrate(ctx context.Context) error
	Close() error
}

// FailureListener is notified when a driver call fails. The metrics exporter
// hooks in here; a nil listener is ignored.
type FailureListener func(op string)

// Store provides failure-tolerant access to the experience backend.
type Store struct {
	driver    Driver
	onFailure FailureListener
}

// New creates a store around driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// SetFailureListener installs a callback invoked on degraded operations.
func (s *Store) SetFailureListener(fn FailureListener) {
	s.onFailure = fn
}

// CreateExperience appends one experience and returns its ID.
// On failure it logs and returns an empty ID.
func (s *Store) CreateExperience(ctx context.Context, create *CreateExperience) string {
	create.Normalize()
	exp, err := s.driver.CreateExperience(ctx, create)
	if err != nil {
		s.degraded("create_experience", err)
		return ""
	}
	return exp.ID
}

// MatchSimilar returns past experiences similar to the query vector, ranked
// by similarity. On failure it logs and returns an empty slice.
func (s *Store) MatchSimilar(ctx context.Context, opts *MatchSimilarOptions) []Match {
	if err := opts.Validate(); err != nil {
		s.degraded("match_similar", err)
		return nil
	}
	matches, err := s.driver.MatchSimilar(ctx, opts)
	if err != nil {
		s.degraded("match_similar", err)
		return nil
	}
	return matches
}

// BestActions returns the historically best-performing actions near the
// query vector. On failure it logs and returns an empty slice.
func (s *Store) BestActions(ctx context.Context, opts *BestActionsOptions) []ActionStat {
	if err := opts.Validate(); err != nil {
		s.degraded("best_actions", err)
		return nil
	}
	stats, err := s.driver.BestActions(ctx, opts)
	if err != nil {
		s.degraded("best_actions", err)
		return nil
	}
	return stats
}

// ListExperiences lists stored experiences for session export and replay.
// On failure it logs and returns an empty slice.
func (s *Store) ListExperiences(ctx context.Context, find *FindExperience) []*Experience {
	list, err := s.driver.ListExperiences(ctx, find)
	if err != nil {
		s.degraded("list_experiences", err)
		return nil
	}
	return list
}

// Migrate prepares the backend schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) degraded(op string, err error) {
	slog.Warn("experience store degraded, continuing without signal", "op", op, "error", err)
	if s.onFailure != nil {
		s.onFailure(op)
	}
}
