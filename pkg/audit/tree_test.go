package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDecisionTreeChain(t *testing.T) {
	trail, _ := newTestTrail(t)

	a, err := trail.LogTaskStarted("T-1", "builder-1", "start")
	require.NoError(t, err)
	b, err := trail.LogIteration("T-1", "builder-1", 1, "first pass")
	require.NoError(t, err)
	trail.PushParent("T-1", b)
	c, err := trail.LogDecision(Record{Decision: "lookup", Reason: "r", TaskID: "T-1"})
	require.NoError(t, err)
	trail.PopParent("T-1")

	tree, err := trail.BuildDecisionTree("T-1")
	require.NoError(t, err)
	assert.Equal(t, "T-1", tree.TaskID)
	assert.Equal(t, 3, tree.DecisionCount)
	require.Len(t, tree.Roots, 1)

	root := tree.Roots[0]
	assert.Equal(t, a, root.Entry.ID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, b, root.Children[0].Entry.ID)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, c, root.Children[0].Children[0].Entry.ID)
}

func TestBuildDecisionTreeUnknownParentIsRoot(t *testing.T) {
	trail, _ := newTestTrail(t)

	id, err := trail.LogDecision(Record{
		Decision: "orphan",
		Reason:   "r",
		TaskID:   "T-1",
		ParentID: "dec-0-999999",
	})
	require.NoError(t, err)

	tree, err := trail.BuildDecisionTree("T-1")
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, id, tree.Roots[0].Entry.ID)
	assert.False(t, tree.Roots[0].CycleBroken)
}

func TestBuildDecisionTreeSelfParentCycle(t *testing.T) {
	trail, _ := newTestTrail(t)

	// A corrupted record pointing at itself cannot come from LogDecision,
	// so write it to the partition directly.
	a, err := trail.LogDecision(Record{Decision: "ok", Reason: "r", TaskID: "T-1"})
	require.NoError(t, err)

	entries, err := trail.DecisionsForTask("T-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	corrupt := *entries[0]
	corrupt.ID = "dec-1-corrupt"
	corrupt.ParentID = "dec-1-corrupt"
	require.NoError(t, trail.writeLocked(&corrupt, entries[0].Timestamp))

	tree, err := trail.BuildDecisionTree("T-1")
	require.NoError(t, err)
	assert.Equal(t, 2, tree.DecisionCount)
	require.Len(t, tree.Roots, 2)

	var broken *TreeNode
	for _, root := range tree.Roots {
		if root.Entry.ID == "dec-1-corrupt" {
			broken = root
		} else {
			assert.Equal(t, a, root.Entry.ID)
		}
	}
	require.NotNil(t, broken, "self-parented entry is re-rooted")
	assert.True(t, broken.CycleBroken)
	assert.Empty(t, broken.Children)
}

func TestBuildDecisionTreeEmptyTask(t *testing.T) {
	trail, _ := newTestTrail(t)

	tree, err := trail.BuildDecisionTree("T-none")
	require.NoError(t, err)
	assert.Equal(t, 0, tree.DecisionCount)
	assert.Empty(t, tree.Roots)
}

func TestDecisionsForTaskOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := base
	trail := NewTrail(t.TempDir(), "demo").WithClock(func() time.Time { return now })

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := trail.LogDecision(Record{Decision: "d", Reason: "r", TaskID: "T-1"})
		require.NoError(t, err)
		ids = append(ids, id)
		now = now.Add(time.Second)
	}

	entries, err := trail.DecisionsForTask("T-1")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID)
	}
}
