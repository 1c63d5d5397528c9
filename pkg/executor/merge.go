package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jiki-education/video-production-sub000/pkg/infra/logger"
	"github.com/jiki-education/video-production-sub000/pkg/infra/objectstore"
	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

// ObjectStore is the slice of the remote object client the merge executor
// needs.
type ObjectStore interface {
	DownloadAsset(ctx context.Context, nodeID, url string) (string, error)
	UploadAsset(ctx context.Context, localPath, pipelineID, nodeID string) (*objectstore.UploadResult, error)
	ObjectURL(key string) string
}

// MergeVideos is the reference executor. It concatenates the ordered
// segment inputs of a merge-videos node into one video by stream copy,
// uploads the result and persists the outcome.
//
// Protocol: the node is marked in_progress before any asset I/O, so every
// later failure is observable as a terminal failed status with a message.
// There is no lease or timeout; a crash between start and the terminal
// write leaves the node in_progress.
type MergeVideos struct {
	state   *pipeline.StateManager
	objects ObjectStore
	tool    ConcatTool
	workDir string
}

func NewMergeVideos(state *pipeline.StateManager, objects ObjectStore, tool ConcatTool, workDir string) *MergeVideos {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &MergeVideos{
		state:   state,
		objects: objects,
		tool:    tool,
		workDir: workDir,
	}
}

func (e *MergeVideos) Type() pipeline.NodeType {
	return pipeline.TypeMergeVideos
}

func (e *MergeVideos) Execute(ctx context.Context, pipelineID, nodeID string) error {
	node, err := e.state.GetNode(ctx, pipelineID, nodeID)
	if err != nil {
		return err
	}
	if node.Type != pipeline.TypeMergeVideos {
		return pipeline.NewError(pipeline.ErrCodeTypeMismatch,
			"node %s is %s, expected %s", nodeID, node.Type, pipeline.TypeMergeVideos)
	}

	// Started before any asset I/O. From here on every failure must end
	// in a durable failed status before it propagates.
	if err := e.state.MarkStarted(ctx, pipelineID, nodeID); err != nil {
		return err
	}

	outPath := filepath.Join(e.workDir, fmt.Sprintf("%s-%s.mp4", nodeID, uuid.New().String()))
	defer func() {
		// Cleanup never suppresses or replaces the run's result.
		if _, err := os.Stat(outPath); err == nil {
			if err := os.Remove(outPath); err != nil {
				logger.WithContext(ctx).Warn("failed to remove temp merge output",
					"path", outPath, "error", err)
			}
		}
	}()

	output, err := e.merge(ctx, node, outPath)
	if err != nil {
		if failErr := e.state.MarkFailed(ctx, pipelineID, nodeID, err.Error()); failErr != nil {
			logger.WithContext(ctx).Error("failed to record node failure",
				"pipeline", pipelineID, "node", nodeID, "error", failErr)
		}
		return err
	}

	return e.state.MarkCompleted(ctx, pipelineID, nodeID, *output)
}

func (e *MergeVideos) merge(ctx context.Context, node *pipeline.Node, outPath string) (*pipeline.NodeOutput, error) {
	segments := node.Inputs["segments"]
	if len(segments) == 0 {
		return nil, pipeline.NewError(pipeline.ErrCodeValidation, "no segments to merge")
	}
	if len(segments) == 1 {
		return nil, pipeline.NewError(pipeline.ErrCodeValidation, "merge requires at least 2 segments")
	}

	refs, err := e.state.GetNodes(ctx, node.PipelineID, segments)
	if err != nil {
		return nil, err
	}
	if len(refs) < len(segments) {
		return nil, pipeline.NewError(pipeline.ErrCodeValidation,
			"segment nodes not found: %s", strings.Join(missingIDs(segments, refs), ", "))
	}

	// Downloads are strictly sequential in declared order: the order is
	// the merge order, and concurrent partial writes to the shared cache
	// must not corrupt inputs.
	localPaths := make([]string, 0, len(refs))
	for _, ref := range refs {
		path, err := e.resolveSegment(ctx, node.ID, &ref)
		if err != nil {
			return nil, err
		}
		localPaths = append(localPaths, path)
	}

	// Re-verify right before handing the list to the tool.
	for _, path := range localPaths {
		if _, err := os.Stat(path); err != nil {
			return nil, pipeline.NewError(pipeline.ErrCodeValidation,
				"segment file missing on disk: %s", path)
		}
	}

	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	result, err := e.tool.Concat(ctx, localPaths, outPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, pipeline.NewError(pipeline.ErrCodeExternalTool,
			"merged output missing: %v", err)
	}

	uploaded, err := e.objects.UploadAsset(ctx, outPath, node.PipelineID, node.ID)
	if err != nil {
		return nil, err
	}

	return &pipeline.NodeOutput{
		Type:     pipeline.OutputVideo,
		Key:      uploaded.Key,
		Duration: result.Duration,
		Size:     info.Size(),
	}, nil
}

// resolveSegment turns a referenced node's output into a local file. A
// remote key is downloaded through the node-scoped cache; a local-file
// pointer is used as-is. An output with neither pointer cannot be merged.
func (e *MergeVideos) resolveSegment(ctx context.Context, nodeID string, ref *pipeline.Node) (string, error) {
	out := ref.Output
	if out == nil || (out.Key == "" && out.LocalFile == "") {
		return "", pipeline.NewError(pipeline.ErrCodeValidation,
			"segment node %s has no usable output", ref.ID)
	}

	if out.Key != "" {
		return e.objects.DownloadAsset(ctx, nodeID, e.objects.ObjectURL(out.Key))
	}
	return out.LocalFile, nil
}

// missingIDs returns the requested ids absent from the loaded nodes, in
// request order.
func missingIDs(requested []string, loaded []pipeline.Node) []string {
	found := make(map[string]bool, len(loaded))
	for _, n := range loaded {
		found[n.ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

var _ Executor = (*MergeVideos)(nil)
