package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

func TestNewFFmpegTool_DefaultsToPathLookup(t *testing.T) {
	tool := NewFFmpegTool("", "")
	assert.Equal(t, "ffmpeg", tool.FFmpegPath)
	assert.Equal(t, "ffprobe", tool.FFprobePath)
}

func TestFFmpegTool_Concat_ToolFailure_IsExternalTool(t *testing.T) {
	dir := t.TempDir()
	in1 := filepath.Join(dir, "a.mp4")
	in2 := filepath.Join(dir, "b.mp4")
	require.NoError(t, os.WriteFile(in1, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(in2, []byte("b"), 0o644))

	tool := NewFFmpegTool(filepath.Join(dir, "no-such-ffmpeg"), "")
	out := filepath.Join(dir, "out.mp4")

	_, err := tool.Concat(context.Background(), []string{in1, in2}, out)
	assert.True(t, pipeline.IsExternalTool(err))

	_, statErr := os.Stat(out + ".segments.txt")
	assert.True(t, os.IsNotExist(statErr), "segment list is removed on failure")
}
