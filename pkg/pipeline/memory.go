package pipeline

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory PipelineStore. It mirrors the semantics of
// the SQLite store: every method holds the write lock for its full
// duration, so each call is atomic with respect to every other.
type MemoryStore struct {
	pipelines map[string]*Pipeline
	nodes     map[string]map[string]*Node // pipelineID -> nodeID -> node
	order     map[string][]string         // pipelineID -> insertion order
	mu        sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pipelines: make(map[string]*Pipeline),
		nodes:     make(map[string]map[string]*Node),
		order:     make(map[string][]string),
	}
}

func (s *MemoryStore) CreatePipeline(ctx context.Context, p *Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pipelines[p.ID]; exists {
		return NewError(ErrCodeConflict, "pipeline %s already exists", p.ID)
	}

	cp := *p
	s.pipelines[p.ID] = &cp
	s.nodes[p.ID] = make(map[string]*Node)
	return nil
}

func (s *MemoryStore) GetPipeline(ctx context.Context, id string) (*Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.pipelines[id]
	if !exists {
		return nil, NewError(ErrCodeNotFound, "pipeline %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) TouchPipeline(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchLocked(id, at)
}

func (s *MemoryStore) touchLocked(id string, at time.Time) error {
	p, exists := s.pipelines[id]
	if !exists {
		return NewError(ErrCodeNotFound, "pipeline %s not found", id)
	}
	p.UpdatedAt = at
	return nil
}

func (s *MemoryStore) UpdatePipelineMetadata(ctx context.Context, id string, m PipelineMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.pipelines[id]
	if !exists {
		return NewError(ErrCodeNotFound, "pipeline %s not found", id)
	}
	p.Metadata = m
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CreateNode(ctx context.Context, n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, exists := s.nodes[n.PipelineID]
	if !exists {
		return NewError(ErrCodeNotFound, "pipeline %s not found", n.PipelineID)
	}
	if _, exists := graph[n.ID]; exists {
		return NewError(ErrCodeConflict, "node %s already exists in pipeline %s", n.ID, n.PipelineID)
	}

	graph[n.ID] = n.Clone()
	s.order[n.PipelineID] = append(s.order[n.PipelineID], n.ID)
	return s.touchLocked(n.PipelineID, n.CreatedAt)
}

func (s *MemoryStore) GetNode(ctx context.Context, pipelineID, nodeID string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, exists := s.nodes[pipelineID][nodeID]
	if !exists {
		return nil, NewError(ErrCodeNotFound, "node %s not found in pipeline %s", nodeID, pipelineID)
	}
	return n.Clone(), nil
}

func (s *MemoryStore) GetNodes(ctx context.Context, pipelineID string, ids []string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph := s.nodes[pipelineID]
	result := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, exists := graph[id]; exists {
			result = append(result, *n.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStore) ListNodes(ctx context.Context, pipelineID string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.pipelines[pipelineID]; !exists {
		return nil, NewError(ErrCodeNotFound, "pipeline %s not found", pipelineID)
	}

	graph := s.nodes[pipelineID]
	result := make([]Node, 0, len(graph))
	for _, id := range s.order[pipelineID] {
		if n, exists := graph[id]; exists {
			result = append(result, *n.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStore) UpdateNodeStructural(ctx context.Context, pipelineID, nodeID string, u StructuralUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[pipelineID][nodeID]
	if !exists {
		return NewError(ErrCodeNotFound, "node %s not found in pipeline %s", nodeID, pipelineID)
	}

	now := time.Now().UTC()
	if u.Title != nil {
		n.Title = *u.Title
	}
	if u.Inputs != nil {
		inputs := make(map[string][]string, len(u.Inputs))
		for k, v := range u.Inputs {
			ids := make([]string, len(v))
			copy(ids, v)
			inputs[k] = ids
		}
		n.Inputs = inputs
	}
	if u.Config != nil {
		n.Config = append([]byte(nil), u.Config...)
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
	n.UpdatedAt = now
	return s.touchLocked(pipelineID, now)
}

func (s *MemoryStore) UpdateNodeState(ctx context.Context, pipelineID, nodeID string, u StateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.nodes[pipelineID][nodeID]
	if !exists {
		return NewError(ErrCodeNotFound, "node %s not found in pipeline %s", nodeID, pipelineID)
	}

	now := time.Now().UTC()
	if u.Status != nil {
		n.Status = *u.Status
	}
	if u.Metadata != nil {
		n.Metadata = ApplyMetadataPatch(n.Metadata, u.Metadata)
	}
	if u.Output != nil {
		o := *u.Output
		n.Output = &o
	}
	n.UpdatedAt = now
	return nil
}

func (s *MemoryStore) DeleteNodeCascade(ctx context.Context, pipelineID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, exists := s.nodes[pipelineID]
	if !exists {
		return NewError(ErrCodeNotFound, "pipeline %s not found", pipelineID)
	}
	if _, exists := graph[nodeID]; !exists {
		return NewError(ErrCodeNotFound, "node %s not found in pipeline %s", nodeID, pipelineID)
	}

	now := time.Now().UTC()
	for id, other := range graph {
		if id == nodeID {
			continue
		}
		if scrubbed, changed := ScrubInputs(other.Type, other.Inputs, nodeID); changed {
			other.Inputs = scrubbed
			other.UpdatedAt = now
		}
	}

	delete(graph, nodeID)
	order := s.order[pipelineID]
	for i, id := range order {
		if id == nodeID {
			s.order[pipelineID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return s.touchLocked(pipelineID, now)
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ PipelineStore = (*MemoryStore)(nil)
