package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"media-fetch-tg/internal/quality"
)

const defaultTimeout = 15 * time.Minute

// YtDlp shells out to the yt-dlp binary. For audio selections the output
// is transcoded to mp3; video selections are muxed into mp4. A height cap
// falls back to the best available stream when no stream fits, which is
// yt-dlp's behavior for the "/best" format tail; the substitution is not
// surfaced to the caller.
type YtDlp struct {
	// Binary defaults to "yt-dlp" from PATH.
	Binary string
	// Timeout bounds one extraction, defaulting to 15m.
	Timeout time.Duration
}

func (y *YtDlp) Extract(
	ctx context.Context, url string, sel quality.Selection, dir string,
) (*Media, error) {

	timeout := y.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := y.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	args := formatArgs(sel)
	args = append(args,
		"--no-playlist",
		// Quiet keeps progress noise off stdout so only the JSON line remains.
		"-q", "--print-json",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		url,
	)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to run %s: %s: %w", binary, stderrTail(stderr), err)
	}
	log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("extraction finished")

	var info struct {
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
		Filename string  `json:"_filename"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	path := info.Filename
	if sel.Audio {
		// The mp3 postprocessor swaps the extension after the metadata is printed.
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".mp3"
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output file: %w", err)
	}

	return &Media{
		Path:     path,
		Title:    info.Title,
		Size:     stat.Size(),
		Duration: time.Duration(info.Duration) * time.Second,
	}, nil
}

func formatArgs(sel quality.Selection) []string {
	if sel.Audio {
		return []string{
			"-f", "bestaudio/best",
			"-x", "--audio-format", "mp3", "--audio-quality", "192K",
		}
	}
	if sel.Height > 0 {
		format := fmt.Sprintf(
			"bestvideo[height<=%d]+bestaudio/best[height<=%d]/best", sel.Height, sel.Height)
		return []string{"-f", format, "--merge-output-format", "mp4"}
	}
	return []string{"-f", "bestvideo+bestaudio/best", "--merge-output-format", "mp4"}
}

func stderrTail(stderr *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
