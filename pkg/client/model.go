// Package client holds the editor-side mirror of a pipeline's node graph
// and its optimistic-update contract: every structural command is applied
// to the local mirror first, then sent to the authoritative store, and
// rolled back to an exact pre-command snapshot if the store rejects it.
package client

import (
	"context"

	"github.com/jiki-education/video-production-sub000/pkg/infra/logger"
	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

// GraphStore is the slice of the structural store the client model talks
// to.
type GraphStore interface {
	DeleteNode(ctx context.Context, pipelineID, nodeID string) error
	ConnectNode(ctx context.Context, pipelineID, sourceID, targetID, inputKey string) error
	ReorderInputs(ctx context.Context, pipelineID, nodeID, inputKey string, newOrder []string) error
}

// Position is a node's layout position in the editor canvas.
type Position struct {
	X float64
	Y float64
}

// MutationState tracks one optimistic command's lifecycle.
type MutationState string

const (
	// MutationApplied means the mirror holds the change but the store has
	// not confirmed it yet.
	MutationApplied    MutationState = "applied-locally"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled-back"
)

// Mutation is the record of one optimistic command.
type Mutation struct {
	State MutationState
	// Err is the store's rejection, set when State is rolled-back.
	Err error
}

// snapshot captures everything a rollback must restore: the node list,
// derived layout positions, and the current selection.
type snapshot struct {
	nodes     map[string]*pipeline.Node
	positions map[string]Position
	selection []string
}

// Model is the client-local mirror of one pipeline's graph.
type Model struct {
	pipelineID string
	store      GraphStore

	nodes     map[string]*pipeline.Node
	positions map[string]Position
	selection []string
}

func NewModel(pipelineID string, store GraphStore) *Model {
	return &Model{
		pipelineID: pipelineID,
		store:      store,
		nodes:      make(map[string]*pipeline.Node),
		positions:  make(map[string]Position),
	}
}

// Load replaces the mirror's node set, e.g. after an initial fetch.
func (m *Model) Load(nodes []pipeline.Node) {
	m.nodes = make(map[string]*pipeline.Node, len(nodes))
	for i := range nodes {
		m.nodes[nodes[i].ID] = nodes[i].Clone()
	}
}

// Node returns the mirrored node, or nil.
func (m *Model) Node(id string) *pipeline.Node {
	return m.nodes[id]
}

// SetPosition records a node's layout position.
func (m *Model) SetPosition(id string, pos Position) {
	m.positions[id] = pos
}

// Position returns a node's layout position.
func (m *Model) Position(id string) (Position, bool) {
	pos, ok := m.positions[id]
	return pos, ok
}

// Select replaces the current selection.
func (m *Model) Select(ids ...string) {
	m.selection = append([]string(nil), ids...)
}

// Selection returns the current selection.
func (m *Model) Selection() []string {
	return append([]string(nil), m.selection...)
}

func (m *Model) takeSnapshot() snapshot {
	s := snapshot{
		nodes:     make(map[string]*pipeline.Node, len(m.nodes)),
		positions: make(map[string]Position, len(m.positions)),
		selection: append([]string(nil), m.selection...),
	}
	for id, n := range m.nodes {
		s.nodes[id] = n.Clone()
	}
	for id, pos := range m.positions {
		s.positions[id] = pos
	}
	return s
}

func (m *Model) restore(s snapshot) {
	m.nodes = s.nodes
	m.positions = s.positions
	m.selection = s.selection
}

// run executes one optimistic command: snapshot, apply to the mirror,
// send to the store; on rejection restore the exact snapshot and surface
// the error synchronously.
func (m *Model) run(ctx context.Context, apply func(), send func() error) *Mutation {
	before := m.takeSnapshot()
	apply()

	if err := send(); err != nil {
		m.restore(before)
		logger.WithContext(ctx).Debug("optimistic mutation rolled back",
			"pipeline", m.pipelineID, "error", err)
		return &Mutation{State: MutationRolledBack, Err: err}
	}
	return &Mutation{State: MutationConfirmed}
}

// ConnectNode optimistically appends sourceID to targetID's inputKey.
func (m *Model) ConnectNode(ctx context.Context, sourceID, targetID, inputKey string) *Mutation {
	return m.run(ctx,
		func() {
			target := m.nodes[targetID]
			if target == nil {
				return
			}
			for _, id := range target.Inputs[inputKey] {
				if id == sourceID {
					return
				}
			}
			if target.Inputs == nil {
				target.Inputs = make(map[string][]string)
			}
			target.Inputs[inputKey] = append(target.Inputs[inputKey], sourceID)
		},
		func() error {
			return m.store.ConnectNode(ctx, m.pipelineID, sourceID, targetID, inputKey)
		},
	)
}

// DeleteNode optimistically removes the node, its layout position, its
// presence in the selection, and its id from every other node's inputs.
func (m *Model) DeleteNode(ctx context.Context, nodeID string) *Mutation {
	return m.run(ctx,
		func() { m.applyDelete(nodeID) },
		func() error { return m.store.DeleteNode(ctx, m.pipelineID, nodeID) },
	)
}

func (m *Model) applyDelete(nodeID string) {
	delete(m.nodes, nodeID)
	delete(m.positions, nodeID)
	kept := m.selection[:0]
	for _, id := range m.selection {
		if id != nodeID {
			kept = append(kept, id)
		}
	}
	m.selection = kept
	for _, other := range m.nodes {
		if scrubbed, changed := pipeline.ScrubInputs(other.Type, other.Inputs, nodeID); changed {
			other.Inputs = scrubbed
		}
	}
}

// ReorderInputs optimistically replaces the slot order and resets the
// node's mirrored status to pending, matching the store's semantics.
func (m *Model) ReorderInputs(ctx context.Context, nodeID, inputKey string, newOrder []string) *Mutation {
	return m.run(ctx,
		func() {
			n := m.nodes[nodeID]
			if n == nil || n.Inputs == nil {
				return
			}
			n.Inputs[inputKey] = append([]string(nil), newOrder...)
			n.Status = pipeline.StatusPending
		},
		func() error {
			return m.store.ReorderInputs(ctx, m.pipelineID, nodeID, inputKey, newOrder)
		},
	)
}

// DeleteNodes issues one store delete per node, sequentially, aborting the
// remainder on the first failure. On failure the mirror restores the full
// pre-batch snapshot — including nodes the store already confirmed
// deleted. Those stay deleted server-side: the mirror is knowingly out of
// sync until the next full reload.
func (m *Model) DeleteNodes(ctx context.Context, nodeIDs []string) *Mutation {
	before := m.takeSnapshot()
	for _, id := range nodeIDs {
		m.applyDelete(id)
	}

	for _, id := range nodeIDs {
		if err := m.store.DeleteNode(ctx, m.pipelineID, id); err != nil {
			m.restore(before)
			logger.WithContext(ctx).Debug("optimistic batch delete rolled back",
				"pipeline", m.pipelineID, "failed_node", id, "error", err)
			return &Mutation{State: MutationRolledBack, Err: err}
		}
	}
	return &Mutation{State: MutationConfirmed}
}
