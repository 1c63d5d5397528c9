package pipeline

import (
	"encoding/json"
	"time"
)

// NodeStatus is the execution state of a node. Structural edits may only
// ever move a node back to pending; the in_progress and terminal states
// are written exclusively by executors through the StateManager.
type NodeStatus string

const (
	StatusPending    NodeStatus = "pending"
	StatusInProgress NodeStatus = "in_progress"
	StatusCompleted  NodeStatus = "completed"
	StatusFailed     NodeStatus = "failed"
)

// NodeType is the closed set of node variants. Dispatch is by exhaustive
// switch on this value, never by probing config fields.
type NodeType string

const (
	TypeAsset        NodeType = "asset"
	TypeTalkingHead  NodeType = "generate-talking-head"
	TypeAnimation    NodeType = "generate-animation"
	TypeVoiceover    NodeType = "generate-voiceover"
	TypeRenderCode   NodeType = "render-code"
	TypeMixAudio     NodeType = "mix-audio"
	TypeMergeVideos  NodeType = "merge-videos"
	TypeComposeVideo NodeType = "compose-video"
)

// KnownType reports whether t is a member of the closed node type set.
func KnownType(t NodeType) bool {
	switch t {
	case TypeAsset, TypeTalkingHead, TypeAnimation, TypeVoiceover,
		TypeRenderCode, TypeMixAudio, TypeMergeVideos, TypeComposeVideo:
		return true
	}
	return false
}

// InitialStatus returns the status a freshly created node of type t starts
// in. Asset nodes are pre-satisfied leaves and begin life completed.
func InitialStatus(t NodeType) NodeStatus {
	if t == TypeAsset {
		return StatusCompleted
	}
	return StatusPending
}

type OutputType string

const (
	OutputVideo OutputType = "video"
	OutputAudio OutputType = "audio"
	OutputImage OutputType = "image"
)

// NodeAsset is present only on asset-type nodes: a pointer to a
// pre-existing external file plus its media kind.
type NodeAsset struct {
	Source string     `json:"source"`
	Kind   OutputType `json:"kind"`
}

// NodeOutput describes the artifact an executor produced. At least one of
// Key (remote object key) or LocalFile must be set for any node consumed
// as a video or audio input.
type NodeOutput struct {
	Type      OutputType `json:"type"`
	LocalFile string     `json:"localFile,omitempty"`
	Key       string     `json:"key,omitempty"`
	Duration  float64    `json:"duration,omitempty"`
	Size      int64      `json:"size,omitempty"`
}

// NodeMetadata is execution bookkeeping. All fields are optional so that
// state writes can merge individual keys without clobbering the rest.
type NodeMetadata struct {
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	JobID       *string    `json:"jobId,omitempty"`
	CostCents   *int64     `json:"costCents,omitempty"`
	Retries     *int       `json:"retries,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Node is one processing step in a pipeline's graph.
//
// Its fields split into two families with distinct writers: structural
// fields (Title, Type, Provider, Inputs, Config, Asset) belong to editing
// operations, state fields (Status, Metadata, Output) belong to executors.
// Store updates are scoped to one family and never overwrite the other.
type Node struct {
	ID         string              `json:"id"`
	PipelineID string              `json:"pipelineId"`
	Title      string              `json:"title"`
	Type       NodeType            `json:"type"`
	Provider   string              `json:"provider,omitempty"`
	Inputs     map[string][]string `json:"inputs,omitempty"`
	Config     json.RawMessage     `json:"config,omitempty"`
	Asset      *NodeAsset          `json:"asset,omitempty"`
	Status     NodeStatus          `json:"status"`
	Metadata   *NodeMetadata       `json:"metadata,omitempty"`
	Output     *NodeOutput         `json:"output,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Clone returns a deep copy of the node. Stores hand out clones so callers
// can never mutate persisted records in place.
func (n *Node) Clone() *Node {
	out := *n
	if n.Inputs != nil {
		out.Inputs = make(map[string][]string, len(n.Inputs))
		for k, v := range n.Inputs {
			ids := make([]string, len(v))
			copy(ids, v)
			out.Inputs[k] = ids
		}
	}
	if n.Config != nil {
		out.Config = append(json.RawMessage(nil), n.Config...)
	}
	if n.Asset != nil {
		a := *n.Asset
		out.Asset = &a
	}
	if n.Metadata != nil {
		m := *n.Metadata
		out.Metadata = &m
	}
	if n.Output != nil {
		o := *n.Output
		out.Output = &o
	}
	return &out
}

// PipelineConfig holds storage hints for a pipeline.
type PipelineConfig struct {
	StorageContainer string `json:"storageContainer,omitempty"`
	WorkDir          string `json:"workDir,omitempty"`
}

// Progress is the per-status node count aggregate. The four status counts
// sum to Total; the counter is maintained by the seeding/editing layer and
// is not recomputed automatically on every mutation.
type Progress struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// PipelineMetadata aggregates cost and progress figures.
type PipelineMetadata struct {
	TotalCostCents int64    `json:"totalCostCents"`
	Progress       Progress `json:"progress"`
}

// Pipeline is one video-production workflow: a directed acyclic graph of
// typed nodes plus shared configuration and bookkeeping.
type Pipeline struct {
	ID        string           `json:"id"`
	Version   int              `json:"version"`
	Title     string           `json:"title"`
	Config    PipelineConfig   `json:"config"`
	Metadata  PipelineMetadata `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NodeSpec is the caller-supplied shape for creating a node. Status,
// metadata and output are never accepted from callers; status is derived
// from the type and the state fields start empty.
type NodeSpec struct {
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Type     NodeType            `json:"type"`
	Provider string              `json:"provider,omitempty"`
	Inputs   map[string][]string `json:"inputs,omitempty"`
	Config   json.RawMessage     `json:"config,omitempty"`
	Asset    *NodeAsset          `json:"asset,omitempty"`
}

// CountProgress recomputes the progress aggregate from a node list.
// Callers that mutate the graph decide when to persist the result; the
// stores themselves never invoke this.
func CountProgress(nodes []Node) Progress {
	var p Progress
	for _, n := range nodes {
		switch n.Status {
		case StatusPending:
			p.Pending++
		case StatusInProgress:
			p.InProgress++
		case StatusCompleted:
			p.Completed++
		case StatusFailed:
			p.Failed++
		}
	}
	p.Total = len(nodes)
	return p
}
