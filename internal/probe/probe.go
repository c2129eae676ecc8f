// Package probe validates media file integrity and extracts duration via an
// external stream-inspection tool (ffprobe). Not a transcoder: this is a
// pass/fail probe plus one duration field, nothing more.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Info is the trimmed result of a probe: whether the file is valid media,
// and its duration if so.
type Info struct {
	Valid    bool
	Duration time.Duration
}

// Config holds the probe service's settings.
type Config struct {
	FFprobePath string // empty = search PATH
}

// Service probes media files with ffprobe.
type Service struct {
	binaryPath string
	logger     zerolog.Logger
}

// NewService locates ffprobe (explicit path, then PATH) and builds a Service.
func NewService(cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		binaryPath: findFFprobe(cfg.FFprobePath),
		logger:     logger.With().Str("component", "probe").Logger(),
	}
}

func findFFprobe(explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}
	if path, err := exec.LookPath("ffprobe"); err == nil {
		return path
	}
	return ""
}

// IsAvailable reports whether ffprobe was found.
func (s *Service) IsAvailable() bool {
	return s.binaryPath != ""
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
}

// Probe runs ffprobe against path and reports whether it decodes as media
// with at least one video stream. A non-zero exit or missing video stream
// marks the file invalid rather than returning an error: invalidity is a
// normal, expected outcome for corrupt downloads.
func (s *Service) Probe(ctx context.Context, path string) (Info, error) {
	if s.binaryPath == "" {
		return Info{}, fmt.Errorf("probe: ffprobe not found")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, s.binaryPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.logger.Debug().Err(err).Str("path", path).Str("stderr", stderr.String()).Msg("ffprobe exited non-zero, treating as invalid media")
		return Info{Valid: false}, nil
	}

	return parseFFprobeOutput(stdout.Bytes()), nil
}

// parseFFprobeOutput interprets ffprobe's JSON output: valid only if it
// parses and carries at least one video stream.
func parseFFprobeOutput(data []byte) Info {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Info{Valid: false}
	}

	hasVideo := false
	for _, stream := range out.Streams {
		if stream.CodecType == "video" {
			hasVideo = true
			break
		}
	}
	if !hasVideo {
		return Info{Valid: false}
	}

	duration := time.Duration(0)
	if out.Format.Duration != "" {
		if f, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			duration = time.Duration(f * float64(time.Second))
		}
	}

	return Info{Valid: true, Duration: duration}
}
