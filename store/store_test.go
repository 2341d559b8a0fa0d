package store_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gridsense/store"
)

// failingDriver fails every operation to exercise the degradation path.
type failingDriver struct{}

func (failingDriver) CreateExperience(context.Context, *store.CreateExperience) (*store.Experience, error) {
	return nil, errors.New("backend down")
}

func (failingDriver) MatchSimilar(context.Context, *store.MatchSimilarOptions) ([]store.Match, error) {
	return nil, errors.New("backend down")
}

func (failingDriver) BestActions(context.Context, *store.BestActionsOptions) ([]store.ActionStat, error) {
	return nil, errors.New("backend down")
}

func (failingDriver) ListExperiences(context.Context, *store.FindExperience) ([]*store.Experience, error) {
	return nil, errors.New("backend down")
}

func (failingDriver) Migrate(context.Context) error { return nil }
func (failingDriver) Close() error                  { return nil }

func TestStoreDegradesOnDriverFailure(t *testing.T) {
	st := store.New(failingDriver{})
	ctx := context.Background()

	var degradedOps []string
	st.SetFailureListener(func(op string) { degradedOps = append(degradedOps, op) })

	id := st.CreateExperience(ctx, &store.CreateExperience{Action: "set B1 100"})
	assert.Empty(t, id)

	matches := st.MatchSimilar(ctx, &store.MatchSimilarOptions{Vector: []float32{1}})
	assert.Empty(t, matches)

	stats := st.BestActions(ctx, &store.BestActionsOptions{Vector: []float32{1}})
	assert.Empty(t, stats)

	list := st.ListExperiences(ctx, &store.FindExperience{})
	assert.Empty(t, list)

	assert.Equal(t, []string{
		"create_experience",
		"match_similar",
		"best_actions",
		"list_experiences",
	}, degradedOps)
}

func TestStoreRejectsEmptyQueryVector(t *testing.T) {
	st := store.New(failingDriver{})
	ctx := context.Background()

	degraded := 0
	st.SetFailureListener(func(string) { degraded++ })

	assert.Empty(t, st.MatchSimilar(ctx, &store.MatchSimilarOptions{}))
	assert.Empty(t, st.BestActions(ctx, &store.BestActionsOptions{}))
	assert.Equal(t, 2, degraded)
}

func TestCreateExperienceNormalizesTimestamp(t *testing.T) {
	create := &store.CreateExperience{Action: "set B1 100"}
	create.Normalize()
	require.NotZero(t, create.Metadata.Timestamp)

	fixed := &store.CreateExperience{Metadata: store.Metadata{Timestamp: 42}}
	fixed.Normalize()
	assert.EqualValues(t, 42, fixed.Metadata.Timestamp)
}

func TestMatchSimilarOptionsValidate(t *testing.T) {
	opts := &store.MatchSimilarOptions{Vector: []float32{1}}
	require.NoError(t, opts.Validate())
	assert.Equal(t, 10, opts.Limit)

	opts = &store.MatchSimilarOptions{Vector: []float32{1}, Limit: 5000}
	require.NoError(t, opts.Validate())
	assert.Equal(t, 1000, opts.Limit)

	assert.Error(t, (&store.MatchSimilarOptions{}).Validate())
}
