// Package executor contains the units of logic that perform the real work
// for each node type and persist the outcome through the state manager.
package executor

import (
	"context"
	"sync"

	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

// Executor performs the work for one node type.
type Executor interface {
	// Type is the node type this executor handles.
	Type() pipeline.NodeType
	// Execute runs the full protocol for the node: it loads the node,
	// records started/terminal state and produces the output artifact.
	Execute(ctx context.Context, pipelineID, nodeID string) error
}

// Dispatcher routes a loaded node to its executor by type.
type Dispatcher struct {
	executors map[pipeline.NodeType]Executor
	mu        sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		executors: make(map[pipeline.NodeType]Executor),
	}
}

// Register adds an executor. Registering a second executor for the same
// type is a conflict.
func (d *Dispatcher) Register(e Executor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.executors[e.Type()]; exists {
		return pipeline.NewError(pipeline.ErrCodeConflict, "executor for %s already registered", e.Type())
	}
	d.executors[e.Type()] = e
	return nil
}

// Dispatch picks the executor for the node. A known type with no
// registered executor fails NotImplemented; a type outside the closed set
// fails UnknownType. The two are distinguishable by error code.
func (d *Dispatcher) Dispatch(node *pipeline.Node) (Executor, error) {
	if !pipeline.KnownType(node.Type) {
		return nil, pipeline.NewError(pipeline.ErrCodeUnknownType, "unknown node type %q", node.Type)
	}

	d.mu.RLock()
	e, exists := d.executors[node.Type]
	d.mu.RUnlock()

	if !exists {
		return nil, pipeline.NewError(pipeline.ErrCodeNotImplemented, "no executor implemented for node type %q", node.Type)
	}
	return e, nil
}

// Run loads the node and executes it with its matching executor.
func (d *Dispatcher) Run(ctx context.Context, state *pipeline.StateManager, pipelineID, nodeID string) error {
	node, err := state.GetNode(ctx, pipelineID, nodeID)
	if err != nil {
		return err
	}
	e, err := d.Dispatch(node)
	if err != nil {
		return err
	}
	return e.Execute(ctx, pipelineID, nodeID)
}
