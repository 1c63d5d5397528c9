package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ListNodes_InsertionOrder(t *testing.T) {
	s, g := newTestGraph(t)
	ctx := context.Background()

	for _, id := range []string{"asset-c", "asset-a", "asset-b"} {
		_, err := g.CreateNode(ctx, "pipe-1", assetSpec(id))
		require.NoError(t, err)
	}

	nodes, err := s.ListNodes(ctx, "pipe-1")
	require.NoError(t, err)
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"asset-c", "asset-a", "asset-b"}, ids)
}

func TestMemoryStore_UpdateNodeState_DoesNotTouchPipeline(t *testing.T) {
	s, g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateNode(ctx, "pipe-1", mergeSpec("merge-1"))
	require.NoError(t, err)
	before, err := s.GetPipeline(ctx, "pipe-1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	status := StatusInProgress
	require.NoError(t, s.UpdateNodeState(ctx, "pipe-1", "merge-1", StateUpdate{Status: &status}))

	after, err := s.GetPipeline(ctx, "pipe-1")
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt),
		"execution progress is not an edit; pipeline updatedAt stays put")
}

// Structural and state updates target disjoint field families; writes on
// one family must never clobber the other.
func TestMemoryStore_UpdateFamilies_DoNotClobberEachOther(t *testing.T) {
	s, g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateNode(ctx, "pipe-1", mergeSpec("merge-1", "asset-a"))
	require.NoError(t, err)

	status := StatusInProgress
	now := time.Now().UTC()
	require.NoError(t, s.UpdateNodeState(ctx, "pipe-1", "merge-1", StateUpdate{
		Status:   &status,
		Metadata: &MetadataPatch{StartedAt: &now},
	}))

	title := "renamed"
	require.NoError(t, s.UpdateNodeStructural(ctx, "pipe-1", "merge-1", StructuralUpdate{
		Title:  &title,
		Inputs: map[string][]string{"segments": {"asset-a", "asset-b"}},
	}))

	n, err := s.GetNode(ctx, "pipe-1", "merge-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", n.Title)
	assert.Equal(t, []string{"asset-a", "asset-b"}, n.Inputs["segments"])
	assert.Equal(t, StatusInProgress, n.Status, "structural write left status alone")
	require.NotNil(t, n.Metadata)
	assert.NotNil(t, n.Metadata.StartedAt, "structural write left metadata alone")
}

func TestMemoryStore_GetNode_ReturnsClone(t *testing.T) {
	s, g := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateNode(ctx, "pipe-1", mergeSpec("merge-1", "asset-a"))
	require.NoError(t, err)

	n, err := s.GetNode(ctx, "pipe-1", "merge-1")
	require.NoError(t, err)
	n.Inputs["segments"][0] = "mutated"

	again, err := s.GetNode(ctx, "pipe-1", "merge-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"asset-a"}, again.Inputs["segments"])
}

// --- ScrubInputs ---

func TestScrubInputs_FiltersUnboundedSlotPreservingOrder(t *testing.T) {
	inputs := map[string][]string{"segments": {"a", "b", "c", "b"}}

	scrubbed, changed := ScrubInputs(TypeMergeVideos, inputs, "b")
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "c"}, scrubbed["segments"])
}

func TestScrubInputs_ClearsCapacityOneSlot(t *testing.T) {
	inputs := map[string][]string{"video": {"b"}, "audio": {"a"}}

	scrubbed, changed := ScrubInputs(TypeMixAudio, inputs, "b")
	assert.True(t, changed)
	_, ok := scrubbed["video"]
	assert.False(t, ok, "cleared slot key is removed, not left empty")
	assert.Equal(t, []string{"a"}, scrubbed["audio"])
}

func TestScrubInputs_NoReference_NoChange(t *testing.T) {
	inputs := map[string][]string{"segments": {"a", "c"}}

	_, changed := ScrubInputs(TypeMergeVideos, inputs, "b")
	assert.False(t, changed)
}

// --- ApplyMetadataPatch ---

func TestApplyMetadataPatch_MergesKeysIndependently(t *testing.T) {
	started := time.Now().UTC().Add(-time.Minute)
	job := "job-42"
	meta := ApplyMetadataPatch(nil, &MetadataPatch{StartedAt: &started, JobID: &job})
	require.NotNil(t, meta)

	completed := time.Now().UTC()
	msg := "went sideways"
	meta = ApplyMetadataPatch(meta, &MetadataPatch{CompletedAt: &completed, Error: &msg})

	assert.Equal(t, &started, meta.StartedAt)
	assert.Equal(t, "job-42", *meta.JobID)
	assert.Equal(t, &completed, meta.CompletedAt)
	assert.Equal(t, "went sideways", *meta.Error)
}

// --- CountProgress ---

func TestCountProgress_CountsEveryStatus(t *testing.T) {
	nodes := []Node{
		{Status: StatusPending},
		{Status: StatusPending},
		{Status: StatusInProgress},
		{Status: StatusCompleted},
		{Status: StatusFailed},
	}

	p := CountProgress(nodes)
	assert.Equal(t, Progress{Pending: 2, InProgress: 1, Completed: 1, Failed: 1, Total: 5}, p)
}
