package session

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/gridsense/ai/embedding"
	"github.com/hrygo/gridsense/ai/grid"
	"github.com/hrygo/gridsense/ai/policy"
	"github.com/hrygo/gridsense/store"
	"github.com/hrygo/gridsense/store/db/inmem"
)

func newTestController(t *testing.T) (*Controller, *store.Store) {
	t.Helper()
	st := store.New(inmem.NewDB())
	agent := policy.NewAgent(st, embedding.NewFeatureHasher(), policy.Config{
		Epsilon: 0.3,
		Rand:    rand.New(rand.NewSource(42)),
	})
	ctrl := New(Config{DomainTag: "finance", Company: "acme"}, Deps{
		Store:  st,
		Policy: agent,
	})
	return ctrl, st
}

func seededGrid() *grid.MemoryGrid {
	g := grid.NewMemoryGrid()
	g.Seed(grid.State{
		"A1": {Value: "Revenue", Type: grid.CellTypeText},
		"A2": {Value: "EBITDA", Type: grid.CellTypeText},
	})
	return g
}

func TestExecuteHoldsPendingCycle(t *testing.T) {
	ctrl, st := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	res := ctrl.ExecuteWithLearning(ctx, "set B1 350000", g, "add revenue for 2023")
	require.True(t, res.Executed)
	assert.Equal(t, "set B1 350000", res.Command)
	assert.False(t, res.AutoFinalized)
	assert.True(t, ctrl.HasPending())

	// Nothing persisted until feedback closes the cycle.
	assert.Empty(t, st.ListExperiences(ctx, &store.FindExperience{}))
	assert.Equal(t, "350000", g.GetState()["B1"].Value)
}

func TestExecuteRejectsUnparsableCommand(t *testing.T) {
	ctrl, _ := newTestController(t)
	g := seededGrid()

	res := ctrl.ExecuteWithLearning(context.Background(), "frobnicate B1", g, "add revenue")
	assert.False(t, res.Executed)
	assert.False(t, ctrl.HasPending())
}

func TestFeedbackWithExplicitScorePersistsOneExperience(t *testing.T) {
	ctrl, st := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	ctrl.ExecuteWithLearning(ctx, "set B1 350000", g, "add revenue for 2023")

	score := 0.9
	res := ctrl.RecordFeedback(ctx, Signal{Score: &score}, g)
	require.True(t, res.Recorded)
	require.NotEmpty(t, res.ExperienceID)
	assert.False(t, ctrl.HasPending())

	stored := st.ListExperiences(ctx, &store.FindExperience{})
	require.Len(t, stored, 1)
	assert.Equal(t, "set B1 350000", stored[0].Action)
	assert.Equal(t, "finance", stored[0].Metadata.DomainTag)
	assert.Equal(t, "add revenue for 2023", stored[0].Metadata.UserIntent)
	assert.Greater(t, stored[0].Reward, 0.5)
}

func TestSecondFeedbackIsNoOp(t *testing.T) {
	ctrl, st := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	ctrl.ExecuteWithLearning(ctx, "set B1 100", g, "add revenue")
	score := 0.5
	first := ctrl.RecordFeedback(ctx, Signal{Score: &score}, g)
	require.True(t, first.Recorded)

	second := ctrl.RecordFeedback(ctx, Signal{Score: &score}, g)
	assert.False(t, second.Recorded)
	assert.Empty(t, second.ExperienceID)
	assert.Len(t, st.ListExperiences(ctx, &store.FindExperience{}), 1)
}

func TestTextFeedbackAppliesCorrectiveAction(t *testing.T) {
	ctrl, st := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	ctrl.ExecuteWithLearning(ctx, "set B1 100", g, "add revenue for 2023")

	res := ctrl.RecordFeedback(ctx, Signal{Text: "B1 should be 350000"}, g)
	require.True(t, res.Recorded)
	require.NotNil(t, res.Parsed)
	assert.NotEmpty(t, res.Parsed.SuggestedAction)

	// The correction was applied to the grid before finalizing.
	assert.Equal(t, "350000", g.GetState()["B1"].Value)

	// The negative correction pulls the blended reward well below the
	// automatic score of the executed change.
	stored := st.ListExperiences(ctx, &store.FindExperience{})
	require.Len(t, stored, 1)
	assert.Less(t, stored[0].Reward, res.Breakdown.AutomaticScore)
	assert.InDelta(t, 0.0, stored[0].Reward, 0.2)
}

func TestExecuteTwiceLastWriteWins(t *testing.T) {
	ctrl, st := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	ctrl.ExecuteWithLearning(ctx, "set B1 100", g, "add revenue")
	ctrl.ExecuteWithLearning(ctx, "set B2 200", g, "add ebitda")

	score := 0.8
	ctrl.RecordFeedback(ctx, Signal{Score: &score}, g)

	stored := st.ListExperiences(ctx, &store.FindExperience{})
	require.Len(t, stored, 1)
	assert.Equal(t, "set B2 200", stored[0].Action)
	assert.Equal(t, "add ebitda", stored[0].Metadata.UserIntent)
}

func TestIdenticalCyclesProduceDistinctExperiences(t *testing.T) {
	ctrl, st := newTestController(t)
	ctx := context.Background()
	score := 0.6

	var ids []string
	for range 2 {
		g := seededGrid()
		ctrl.ExecuteWithLearning(ctx, "set B1 100", g, "add revenue")
		res := ctrl.RecordFeedback(ctx, Signal{Score: &score}, g)
		require.True(t, res.Recorded)
		ids = append(ids, res.ExperienceID)
	}

	assert.NotEqual(t, ids[0], ids[1])
	assert.Len(t, st.ListExperiences(ctx, &store.FindExperience{}), 2)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctrl, _ := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	score := 0.9
	ctrl.ExecuteWithLearning(ctx, "set B1 350000", g, "add revenue for 2023")
	ctrl.RecordFeedback(ctx, Signal{Score: &score}, g)

	snap := ctrl.Export()
	require.Len(t, snap.Experiences, 1)
	assert.Nil(t, snap.PreviousState)
	assert.NotEmpty(t, snap.Stats.History)

	data, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	decoded, err := UnmarshalSnapshot(data)
	require.NoError(t, err)

	other, _ := newTestController(t)
	require.NoError(t, other.Import(ctx, decoded))

	assert.Equal(t, snap.Config, other.Config())
	assert.InDelta(t, snap.Stats.Epsilon, other.Epsilon(), 1e-9)
	assert.False(t, other.HasPending())

	restored := other.Export()
	assert.Equal(t, snap.Stats.History, restored.Stats.History)
	require.Len(t, restored.Experiences, 1)
	assert.Equal(t, snap.Experiences[0].Action, restored.Experiences[0].Action)
}

func TestExportImportPendingCycle(t *testing.T) {
	ctrl, _ := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	ctrl.ExecuteWithLearning(ctx, "set B2 42", g, "add ebitda")

	snap := ctrl.Export()
	require.NotNil(t, snap.PreviousState)
	assert.Equal(t, "set B2 42", snap.PreviousAction)
	assert.Equal(t, "add ebitda", snap.PreviousIntent)

	other, st := newTestController(t)
	require.NoError(t, other.Import(ctx, snap))
	assert.True(t, other.HasPending())

	// The restored pending cycle accepts feedback on the new instance.
	score := 0.9
	res := other.RecordFeedback(ctx, Signal{Score: &score}, nil)
	require.True(t, res.Recorded)
	assert.False(t, other.HasPending())

	stored := st.ListExperiences(ctx, &store.FindExperience{})
	require.Len(t, stored, 1)
	assert.Equal(t, "set B2 42", stored[0].Action)
}

func TestImportNilSnapshot(t *testing.T) {
	ctrl, _ := newTestController(t)
	assert.Error(t, ctrl.Import(context.Background(), nil))
}

func TestFeedbackWithoutPendingCycle(t *testing.T) {
	ctrl, st := newTestController(t)
	g := seededGrid()
	ctx := context.Background()

	res := ctrl.RecordFeedback(ctx, Signal{Text: "looks good"}, g)
	assert.False(t, res.Recorded)
	assert.Empty(t, st.ListExperiences(ctx, &store.FindExperience{}))
}
