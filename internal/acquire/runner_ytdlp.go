package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FetchResult is what a Runner produced inside the attempt directory.
type FetchResult struct {
	MediaPath       string
	CaptionsPath    string
	DurationSeconds float64
}

// Runner executes one download attempt with one strategy. The production
// runner shells out to yt-dlp; tests substitute a simulated upstream.
type Runner interface {
	Fetch(ctx context.Context, videoID string, strategy Strategy, destDir string) (FetchResult, error)
}

// YTDLPRunner drives the yt-dlp binary.
type YTDLPRunner struct {
	// Binary overrides the executable name, for tests and packaging.
	Binary string
}

func (r *YTDLPRunner) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return "yt-dlp"
}

// CheckBinary verifies yt-dlp is installed and on PATH.
func (r *YTDLPRunner) CheckBinary() error {
	if _, err := exec.LookPath(r.binary()); err != nil {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", r.binary())
	}
	return nil
}

// Fetch downloads one video with one strategy's client profile into
// destDir. The output template is fixed so the acquirer can locate the
// artifact without parsing progress output.
func (r *YTDLPRunner) Fetch(ctx context.Context, videoID string, strategy Strategy, destDir string) (FetchResult, error) {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"-f", strategy.Format,
		"-o", filepath.Join(destDir, "media.%(ext)s"),
		"--write-info-json",
		"--user-agent", strategy.UserAgent,
		"--extractor-args", "youtube:player_client=" + strategy.PlayerClient,
	}
	if strategy.WantCaptions {
		args = append(args,
			"--write-subs",
			"--write-auto-subs",
			"--sub-langs", "en.*",
			"--convert-subs", "srt",
		)
	}
	args = append(args, "https://www.youtube.com/watch?v="+videoID)

	cmd := exec.CommandContext(ctx, r.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	combined := stdout.String() + "\n" + stderr.String()
	if classified := classifyOutput(combined); classified != nil {
		return FetchResult{}, fmt.Errorf("yt-dlp %s: %w", strategy.Name, classified)
	}
	if runErr != nil {
		return FetchResult{}, fmt.Errorf("yt-dlp %s: %w: %s", strategy.Name, runErr, lastLine(stderr.String()))
	}

	return collectResult(destDir)
}

func collectResult(destDir string) (FetchResult, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, "media.*"))
	if err != nil {
		return FetchResult{}, err
	}
	var res FetchResult
	for _, m := range matches {
		switch {
		case strings.HasSuffix(m, ".info.json"):
			res.DurationSeconds = readDuration(m)
		case strings.HasSuffix(m, ".srt") || strings.HasSuffix(m, ".vtt"):
			res.CaptionsPath = m
		case strings.HasSuffix(m, ".part"):
			// Leftover partial; the acquirer removes the attempt dir.
		default:
			res.MediaPath = m
		}
	}
	if res.MediaPath == "" {
		return FetchResult{}, fmt.Errorf("yt-dlp produced no media file in %s", destDir)
	}
	return res, nil
}

func readDuration(infoPath string) float64 {
	data, err := os.ReadFile(infoPath)
	if err != nil {
		return 0
	}
	var info struct {
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return 0
	}
	return info.Duration
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
