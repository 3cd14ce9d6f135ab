package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// AudioTool probes and slices audio files. The production implementation
// shells out to ffprobe/ffmpeg; tests substitute a fake.
type AudioTool interface {
	Duration(ctx context.Context, path string) (float64, error)
	Cut(ctx context.Context, src string, startSec, durSec float64, dest string) error
}

// FFmpegTool drives the ffmpeg and ffprobe binaries.
type FFmpegTool struct{}

// CheckBinaries verifies ffmpeg and ffprobe are on PATH.
func (FFmpegTool) CheckBinaries() error {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing dependency: %s is not installed or not on PATH", bin)
		}
	}
	return nil
}

func (FFmpegTool) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: parse duration: %w", path, err)
	}
	return dur, nil
}

func (FFmpegTool) Cut(ctx context.Context, src string, startSec, durSec float64, dest string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin", "-y",
		"-ss", strconv.FormatFloat(startSec, 'f', 3, 64),
		"-t", strconv.FormatFloat(durSec, 'f', 3, 64),
		"-i", src,
		"-vn",
		"-acodec", "copy",
		dest,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg cut %s: %w: %s", src, err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
