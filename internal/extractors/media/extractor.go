// Package media extracts timed transcripts from audio and video files
// by shelling out to ffmpeg and transcribing bounded windows.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// DefaultSegmentDuration is the transcription window in seconds.
const DefaultSegmentDuration = 300

// durationPattern matches ffmpeg's "Duration: 00:05:30.12" banner line.
var durationPattern = regexp.MustCompile(`Duration: (\d+):(\d+):(\d+\.?\d*)`)

// CommandRunner executes an external command and returns its combined
// output. Abstracted for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Extractor converts media to mono 16 kHz audio windows and
// transcribes each window independently. One failed window logs and
// leaves a gap; all windows failing is an extraction failure.
type Extractor struct {
	transcriber     driven.GenerationService
	runner          CommandRunner
	ffmpegPath      string
	segmentDuration int
}

// Option configures the extractor.
type Option func(*Extractor)

// WithRunner overrides the subprocess runner. Used in tests.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithFFmpegPath overrides the ffmpeg binary location.
func WithFFmpegPath(path string) Option {
	return func(e *Extractor) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

// WithSegmentDuration sets the transcription window in seconds.
func WithSegmentDuration(seconds int) Option {
	return func(e *Extractor) {
		if seconds > 0 {
			e.segmentDuration = seconds
		}
	}
}

// New creates a media extractor. transcriber must be non-nil for
// extraction to succeed.
func New(transcriber driven.GenerationService, opts ...Option) *Extractor {
	e := &Extractor{
		transcriber:     transcriber,
		runner:          execRunner{},
		ffmpegPath:      "ffmpeg",
		segmentDuration: DefaultSegmentDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether this extractor handles the file type.
func (e *Extractor) Supports(fileType domain.FileType) bool {
	return fileType == domain.FileTypeAudio || fileType == domain.FileTypeVideo
}

// Extract probes the media duration, then transcribes it window by
// window into timed segments. Each completed window reports progress,
// giving the caller a cancellation point between windows.
func (e *Extractor) Extract(ctx context.Context, path string, progress driven.ProgressFunc) (domain.ExtractedContent, error) {
	if e.transcriber == nil {
		return domain.ExtractedContent{}, fmt.Errorf("no transcription client configured: %w", domain.ErrExtractionFailed)
	}

	duration, err := e.probeDuration(ctx, path)
	if err != nil {
		return domain.ExtractedContent{}, err
	}

	var segments []domain.TimedSegment
	failures := 0
	window := float64(e.segmentDuration)

	for start := 0.0; start < duration; start += window {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedContent{}, err
		}

		end := start + window
		if end > duration {
			end = duration
		}

		text, err := e.transcribeWindow(ctx, path, start, end-start)
		if err != nil {
			logger.Warn("transcription window %.0f-%.0fs of %s failed: %v", start, end, path, err)
			failures++
		} else if text = strings.TrimSpace(text); text != "" {
			segments = append(segments, domain.TimedSegment{Start: start, End: end, Text: text})
		}

		if progress != nil {
			if err := progress(end / duration); err != nil {
				return domain.ExtractedContent{}, err
			}
		}
	}

	if len(segments) == 0 && failures > 0 {
		return domain.ExtractedContent{}, fmt.Errorf("all transcription windows failed for %s: %w", path, domain.ErrExtractionFailed)
	}
	return domain.ExtractedContent{Segments: segments}, nil
}

// probeDuration parses the media duration off ffmpeg's banner output.
func (e *Extractor) probeDuration(ctx context.Context, path string) (float64, error) {
	out, _ := e.runner.Run(ctx, e.ffmpegPath, "-i", path, "-hide_banner", "-f", "null", "-")
	// ffmpeg exits non-zero for "-f null" on some inputs; the banner
	// is still printed, so the error is ignored and only the parse
	// result matters.
	m := durationPattern.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("could not determine media duration for %s: %w", path, domain.ErrExtractionFailed)
	}

	hours, _ := strconv.ParseFloat(string(m[1]), 64)
	minutes, _ := strconv.ParseFloat(string(m[2]), 64)
	seconds, _ := strconv.ParseFloat(string(m[3]), 64)
	return hours*3600 + minutes*60 + seconds, nil
}

// transcribeWindow extracts one window as mono 16 kHz MP3 and sends it
// to the transcriber.
func (e *Extractor) transcribeWindow(ctx context.Context, path string, start, length float64) (string, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("recall_audio_%s.mp3", uuid.New().String()))
	defer os.Remove(tmp)

	out, err := e.runner.Run(ctx, e.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", length),
		"-i", path,
		"-vn",
		"-acodec", "libmp3lame",
		"-ac", "1",
		"-ar", "16000",
		"-y",
		tmp,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg window extraction: %s: %w", strings.TrimSpace(string(out)), err)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("read window audio: %w", err)
	}
	return e.transcriber.Transcribe(ctx, data, "audio/mpeg")
}
