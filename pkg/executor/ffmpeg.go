package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

// ConcatResult reports what the merge tool produced.
type ConcatResult struct {
	// Duration is the merged file's duration in seconds as reported by
	// the tool.
	Duration float64
}

// ConcatTool concatenates video files without re-encoding. The tool is
// expected to fail loudly on incompatible codecs or containers; no codec
// compatibility is checked beforehand.
type ConcatTool interface {
	Concat(ctx context.Context, inputs []string, output string) (*ConcatResult, error)
}

// FFmpegTool runs ffmpeg's concat demuxer with stream copy, then reads
// the merged duration back with ffprobe.
type FFmpegTool struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpegTool(ffmpegPath, ffprobePath string) *FFmpegTool {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegTool{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

func (t *FFmpegTool) Concat(ctx context.Context, inputs []string, output string) (*ConcatResult, error) {
	listPath := output + ".segments.txt"
	var list strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("resolve input path %s: %w", in, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write segment list: %w", err)
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, t.FFmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		output,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, pipeline.NewError(pipeline.ErrCodeExternalTool,
			"ffmpeg concat failed: %v, output: %s", err, string(out))
	}

	duration, err := t.probeDuration(ctx, output)
	if err != nil {
		return nil, err
	}

	return &ConcatResult{Duration: duration}, nil
}

func (t *FFmpegTool) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, pipeline.NewError(pipeline.ErrCodeExternalTool,
			"ffprobe duration failed: %v", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, pipeline.NewError(pipeline.ErrCodeExternalTool,
			"parse ffprobe duration %q: %v", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

var _ ConcatTool = (*FFmpegTool)(nil)
