package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) (*MemoryStore, *StateManager) {
	t.Helper()
	s, g := newTestGraph(t)
	ctx := context.Background()
	_, err := g.CreateNode(ctx, "pipe-1", mergeSpec("merge-1", "asset-a", "asset-b"))
	require.NoError(t, err)
	return s, NewStateManager(s)
}

func TestStateManager_MarkStarted_SetsInProgressAndStartedAt(t *testing.T) {
	s, m := newTestState(t)
	ctx := context.Background()

	require.NoError(t, m.MarkStarted(ctx, "pipe-1", "merge-1"))

	n, err := s.GetNode(ctx, "pipe-1", "merge-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, n.Status)
	require.NotNil(t, n.Metadata)
	assert.NotNil(t, n.Metadata.StartedAt)
	assert.Nil(t, n.Metadata.CompletedAt)
}

func TestStateManager_MarkCompleted_KeepsStartedAtAndStoresOutput(t *testing.T) {
	s, m := newTestState(t)
	ctx := context.Background()

	require.NoError(t, m.MarkStarted(ctx, "pipe-1", "merge-1"))
	out := NodeOutput{Type: OutputVideo, Key: "pipe-1/merge-1/abc.mp4", Duration: 12.5, Size: 4096}
	require.NoError(t, m.MarkCompleted(ctx, "pipe-1", "merge-1", out))

	n, err := s.GetNode(ctx, "pipe-1", "merge-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, n.Status)
	require.NotNil(t, n.Metadata)
	assert.NotNil(t, n.Metadata.StartedAt, "merge must preserve startedAt from MarkStarted")
	assert.NotNil(t, n.Metadata.CompletedAt)
	require.NotNil(t, n.Output)
	assert.Equal(t, out, *n.Output)
}

func TestStateManager_MarkFailed_RecordsErrorAndCompletedAt(t *testing.T) {
	s, m := newTestState(t)
	ctx := context.Background()

	require.NoError(t, m.MarkStarted(ctx, "pipe-1", "merge-1"))
	require.NoError(t, m.MarkFailed(ctx, "pipe-1", "merge-1", "ffmpeg exited with status 1"))

	n, err := s.GetNode(ctx, "pipe-1", "merge-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, n.Status)
	require.NotNil(t, n.Metadata)
	require.NotNil(t, n.Metadata.Error)
	assert.Equal(t, "ffmpeg exited with status 1", *n.Metadata.Error)
	assert.NotNil(t, n.Metadata.StartedAt)
	assert.NotNil(t, n.Metadata.CompletedAt)
}

func TestStateManager_Mark_MissingNode_NotFound(t *testing.T) {
	_, m := newTestState(t)
	ctx := context.Background()

	assert.True(t, IsNotFound(m.MarkStarted(ctx, "pipe-1", "ghost")))
	assert.True(t, IsNotFound(m.MarkCompleted(ctx, "pipe-1", "ghost", NodeOutput{})))
	assert.True(t, IsNotFound(m.MarkFailed(ctx, "pipe-1", "ghost", "boom")))
}

func TestStateManager_GetNodes_PreservesOrderAndOmitsMissing(t *testing.T) {
	s, m := newTestState(t)
	ctx := context.Background()
	g := NewGraphStore(s)

	for _, id := range []string{"asset-a", "asset-b"} {
		_, err := g.CreateNode(ctx, "pipe-1", assetSpec(id))
		require.NoError(t, err)
	}

	nodes, err := m.GetNodes(ctx, "pipe-1", []string{"asset-b", "ghost", "asset-a"})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "asset-b", nodes[0].ID)
	assert.Equal(t, "asset-a", nodes[1].ID)
}
