package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

type stubExecutor struct {
	typ    pipeline.NodeType
	called bool
}

func (s *stubExecutor) Type() pipeline.NodeType { return s.typ }

func (s *stubExecutor) Execute(ctx context.Context, pipelineID, nodeID string) error {
	s.called = true
	return nil
}

func TestDispatcher_Dispatch_RoutesByType(t *testing.T) {
	d := NewDispatcher()
	e := &stubExecutor{typ: pipeline.TypeMergeVideos}
	require.NoError(t, d.Register(e))

	got, err := d.Dispatch(&pipeline.Node{Type: pipeline.TypeMergeVideos})
	require.NoError(t, err)
	assert.Same(t, Executor(e), got)
}

// A known type with no executor and an unrecognized type must fail with
// distinguishable error codes.
func TestDispatcher_Dispatch_NotImplementedVsUnknownType(t *testing.T) {
	d := NewDispatcher()

	_, err := d.Dispatch(&pipeline.Node{Type: pipeline.TypeMixAudio})
	assert.True(t, pipeline.IsNotImplemented(err))
	assert.False(t, pipeline.IsUnknownType(err))

	_, err = d.Dispatch(&pipeline.Node{Type: pipeline.NodeType("hologram")})
	assert.True(t, pipeline.IsUnknownType(err))
	assert.False(t, pipeline.IsNotImplemented(err))
}

func TestDispatcher_Register_Duplicate_Conflict(t *testing.T) {
	d := NewDispatcher()

	require.NoError(t, d.Register(&stubExecutor{typ: pipeline.TypeMergeVideos}))
	err := d.Register(&stubExecutor{typ: pipeline.TypeMergeVideos})
	assert.True(t, pipeline.IsConflict(err))
}

func TestDispatcher_Run_LoadsNodeAndExecutes(t *testing.T) {
	s := pipeline.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreatePipeline(ctx, &pipeline.Pipeline{ID: "pipe-1"}))
	require.NoError(t, s.CreateNode(ctx, &pipeline.Node{
		ID:         "merge-1",
		PipelineID: "pipe-1",
		Type:       pipeline.TypeMergeVideos,
		Status:     pipeline.StatusPending,
	}))
	state := pipeline.NewStateManager(s)

	d := NewDispatcher()
	e := &stubExecutor{typ: pipeline.TypeMergeVideos}
	require.NoError(t, d.Register(e))

	require.NoError(t, d.Run(ctx, state, "pipe-1", "merge-1"))
	assert.True(t, e.called)

	err := d.Run(ctx, state, "pipe-1", "ghost")
	assert.True(t, pipeline.IsNotFound(err))
}
