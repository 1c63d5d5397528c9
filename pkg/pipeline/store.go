package pipeline

import (
	"context"
	"time"
)

// StructuralUpdate is a merge update of a node's structural field family.
// Only non-nil fields are written; state fields are never touched, except
// that a reorder of an ordered slot forces Status back to pending.
type StructuralUpdate struct {
	Title  *string
	Inputs map[string][]string
	Config []byte
	Status *NodeStatus
}

// MetadataPatch carries the metadata keys to merge. Nil fields keep their
// stored value; non-nil fields overwrite only that key.
type MetadataPatch struct {
	StartedAt   *time.Time
	CompletedAt *time.Time
	JobID       *string
	CostCents   *int64
	Retries     *int
	Error       *string
}

// StateUpdate is a merge update of a node's state field family, written
// only by executors. Output, when set, replaces the stored output
// wholesale: the output is fully executor-owned so no merge is needed.
type StateUpdate struct {
	Status   *NodeStatus
	Metadata *MetadataPatch
	Output   *NodeOutput
}

// PipelineStore is the authoritative shared store for pipelines and their
// node graphs. Each method is an independent atomic unit; the store gives
// no cross-call ordering guarantees (callers may interleave arbitrarily).
type PipelineStore interface {
	CreatePipeline(ctx context.Context, p *Pipeline) error
	GetPipeline(ctx context.Context, id string) (*Pipeline, error)
	// TouchPipeline bumps the pipeline's updatedAt.
	TouchPipeline(ctx context.Context, id string, at time.Time) error
	// UpdatePipelineMetadata replaces the pipeline's cost/progress
	// aggregate. Only the seeding/editing layer calls this; node
	// mutations never recompute it automatically.
	UpdatePipelineMetadata(ctx context.Context, id string, m PipelineMetadata) error

	CreateNode(ctx context.Context, n *Node) error
	GetNode(ctx context.Context, pipelineID, nodeID string) (*Node, error)
	// GetNodes returns the found nodes in the exact order requested and
	// silently omits ids that do not exist. Callers that care must check
	// the returned count against the request.
	GetNodes(ctx context.Context, pipelineID string, ids []string) ([]Node, error)
	ListNodes(ctx context.Context, pipelineID string) ([]Node, error)

	UpdateNodeStructural(ctx context.Context, pipelineID, nodeID string, u StructuralUpdate) error
	UpdateNodeState(ctx context.Context, pipelineID, nodeID string, u StateUpdate) error

	// DeleteNodeCascade deletes the node and removes its id from every
	// other node's input slots, all-or-nothing.
	DeleteNodeCascade(ctx context.Context, pipelineID, nodeID string) error

	Close() error
}

// ScrubInputs removes id from every slot of a node of type t. A
// capacity-1 slot holding the id is cleared entirely; an unbounded slot
// has the id filtered out with the order of the remaining ids preserved.
// Returns the scrubbed map and whether anything changed. The input map is
// not modified.
func ScrubInputs(t NodeType, inputs map[string][]string, id string) (map[string][]string, bool) {
	if len(inputs) == 0 {
		return inputs, false
	}
	changed := false
	out := make(map[string][]string, len(inputs))
	for key, ids := range inputs {
		keep := make([]string, 0, len(ids))
		for _, ref := range ids {
			if ref == id {
				changed = true
				continue
			}
			keep = append(keep, ref)
		}
		if len(keep) < len(ids) {
			if spec, ok := SlotFor(t, key); ok && spec.MaxConnections == 1 {
				// Single-value slot cleared entirely.
				continue
			}
		}
		out[key] = keep
	}
	if !changed {
		return inputs, false
	}
	return out, true
}

// ApplyMetadataPatch merges patch into current, returning the result.
// A nil current starts from an empty metadata object.
func ApplyMetadataPatch(current *NodeMetadata, patch *MetadataPatch) *NodeMetadata {
	merged := &NodeMetadata{}
	if current != nil {
		*merged = *current
	}
	if patch == nil {
		return merged
	}
	if patch.StartedAt != nil {
		merged.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		merged.CompletedAt = patch.CompletedAt
	}
	if patch.JobID != nil {
		merged.JobID = patch.JobID
	}
	if patch.CostCents != nil {
		merged.CostCents = patch.CostCents
	}
	if patch.Retries != nil {
		merged.Retries = patch.Retries
	}
	if patch.Error != nil {
		merged.Error = patch.Error
	}
	return merged
}
