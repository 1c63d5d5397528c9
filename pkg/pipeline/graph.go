package pipeline

import (
	"context"
	"time"

	"github.com/jiki-education/video-production-sub000/pkg/infra/logger"
)

// GraphStore performs structural mutations on a pipeline's node graph:
// create, delete, connect and reorder. It owns the structural field family
// (type, inputs, config, asset, title) and never writes status, metadata
// or output — with one exception: reordering an ordered slot resets the
// node's status to pending, because the produced artifact's ordering is
// stale.
type GraphStore struct {
	store PipelineStore
}

func NewGraphStore(store PipelineStore) *GraphStore {
	return &GraphStore{store: store}
}

// CreateNode inserts a node into the pipeline. Status is derived from the
// node type: asset nodes start completed, everything else pending. State
// fields start empty.
func (g *GraphStore) CreateNode(ctx context.Context, pipelineID string, spec NodeSpec) (*Node, error) {
	if !KnownType(spec.Type) {
		return nil, NewError(ErrCodeValidation, "unknown node type %q", spec.Type)
	}

	if _, err := g.store.GetPipeline(ctx, pipelineID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	node := &Node{
		ID:         spec.ID,
		PipelineID: pipelineID,
		Title:      spec.Title,
		Type:       spec.Type,
		Provider:   spec.Provider,
		Inputs:     spec.Inputs,
		Config:     spec.Config,
		Asset:      spec.Asset,
		Status:     InitialStatus(spec.Type),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := g.store.CreateNode(ctx, node); err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Debug("node created",
		"pipeline", pipelineID, "node", node.ID, "type", node.Type, "status", node.Status)
	return node.Clone(), nil
}

// DeleteNode removes the node and scrubs its id from every other node's
// input slots pipeline-wide, all-or-nothing. Dependents keep their status:
// a delete does not reset them to pending the way a reorder does.
func (g *GraphStore) DeleteNode(ctx context.Context, pipelineID, nodeID string) error {
	if err := g.store.DeleteNodeCascade(ctx, pipelineID, nodeID); err != nil {
		return err
	}
	logger.WithContext(ctx).Debug("node deleted", "pipeline", pipelineID, "node", nodeID)
	return nil
}

// ConnectNode appends sourceID to the end of targetID's inputKey list,
// creating the list if absent. The append is idempotent: if sourceID is
// already present the graph is left untouched, apart from the pipeline's
// updatedAt bump.
func (g *GraphStore) ConnectNode(ctx context.Context, pipelineID, sourceID, targetID, inputKey string) error {
	if _, err := g.store.GetNode(ctx, pipelineID, sourceID); err != nil {
		return err
	}
	target, err := g.store.GetNode(ctx, pipelineID, targetID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, id := range target.Inputs[inputKey] {
		if id == sourceID {
			return g.store.TouchPipeline(ctx, pipelineID, now)
		}
	}

	inputs := target.Inputs
	if inputs == nil {
		inputs = make(map[string][]string)
	}
	inputs[inputKey] = append(inputs[inputKey], sourceID)

	if err := g.store.UpdateNodeStructural(ctx, pipelineID, targetID, StructuralUpdate{Inputs: inputs}); err != nil {
		return err
	}
	logger.WithContext(ctx).Debug("nodes connected",
		"pipeline", pipelineID, "source", sourceID, "target", targetID, "input", inputKey)
	return nil
}

// ReorderInputs replaces the inputKey slot of the node with newOrder.
// newOrder must be an exact permutation of the current slot value. On
// success the node's status is forced back to pending regardless of any
// prior terminal state.
func (g *GraphStore) ReorderInputs(ctx context.Context, pipelineID, nodeID, inputKey string, newOrder []string) error {
	node, err := g.store.GetNode(ctx, pipelineID, nodeID)
	if err != nil {
		return err
	}

	current, ok := node.Inputs[inputKey]
	if !ok {
		return NewError(ErrCodeValidation, "input key is not an array").
			WithDetails("inputKey", inputKey)
	}
	if !samePermutation(current, newOrder) {
		return NewError(ErrCodeValidation, "new order must contain the same ids").
			WithDetails("inputKey", inputKey)
	}

	inputs := node.Inputs
	order := make([]string, len(newOrder))
	copy(order, newOrder)
	inputs[inputKey] = order

	pending := StatusPending
	err = g.store.UpdateNodeStructural(ctx, pipelineID, nodeID, StructuralUpdate{
		Inputs: inputs,
		Status: &pending,
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx).Debug("inputs reordered",
		"pipeline", pipelineID, "node", nodeID, "input", inputKey)
	return nil
}

// samePermutation reports whether b is a permutation of a: same length,
// same multiset of ids.
func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}
