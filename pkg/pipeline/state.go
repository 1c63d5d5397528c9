package pipeline

import (
	"context"
	"time"

	"github.com/jiki-education/video-production-sub000/pkg/infra/logger"
)

// StateManager performs state-only mutations (status, metadata, output)
// and read accessors. It is used exclusively by executors; editing code
// goes through GraphStore instead. Metadata writes are merges: keys not
// named by the call keep their stored value, so concurrent structural
// edits on the same record are never clobbered.
type StateManager struct {
	store PipelineStore
}

func NewStateManager(store PipelineStore) *StateManager {
	return &StateManager{store: store}
}

// MarkStarted moves the node to in_progress and records startedAt.
func (m *StateManager) MarkStarted(ctx context.Context, pipelineID, nodeID string) error {
	now := time.Now().UTC()
	status := StatusInProgress
	err := m.store.UpdateNodeState(ctx, pipelineID, nodeID, StateUpdate{
		Status:   &status,
		Metadata: &MetadataPatch{StartedAt: &now},
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx).Info("node started", "pipeline", pipelineID, "node", nodeID)
	return nil
}

// MarkCompleted moves the node to completed, records completedAt and sets
// the produced output wholesale.
func (m *StateManager) MarkCompleted(ctx context.Context, pipelineID, nodeID string, output NodeOutput) error {
	now := time.Now().UTC()
	status := StatusCompleted
	err := m.store.UpdateNodeState(ctx, pipelineID, nodeID, StateUpdate{
		Status:   &status,
		Metadata: &MetadataPatch{CompletedAt: &now},
		Output:   &output,
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx).Info("node completed",
		"pipeline", pipelineID, "node", nodeID, "output_type", output.Type)
	return nil
}

// MarkFailed moves the node to failed and records completedAt plus the
// failure message.
func (m *StateManager) MarkFailed(ctx context.Context, pipelineID, nodeID, errorMessage string) error {
	now := time.Now().UTC()
	status := StatusFailed
	err := m.store.UpdateNodeState(ctx, pipelineID, nodeID, StateUpdate{
		Status:   &status,
		Metadata: &MetadataPatch{CompletedAt: &now, Error: &errorMessage},
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx).Warn("node failed",
		"pipeline", pipelineID, "node", nodeID, "error", errorMessage)
	return nil
}

// GetNode loads one node, or a NotFound error.
func (m *StateManager) GetNode(ctx context.Context, pipelineID, nodeID string) (*Node, error) {
	return m.store.GetNode(ctx, pipelineID, nodeID)
}

// GetNodes loads the requested nodes in the exact order given, silently
// omitting ids that do not exist.
func (m *StateManager) GetNodes(ctx context.Context, pipelineID string, ids []string) ([]Node, error) {
	return m.store.GetNodes(ctx, pipelineID, ids)
}
