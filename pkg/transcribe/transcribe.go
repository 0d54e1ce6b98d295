// Package transcribe turns creator videos into the text transcripts the
// agent's style-reference tools read: ffmpeg strips the audio track, a
// whisper model transcribes it.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quillworksco/quill/pkg/logger"
)

// DefaultModel is the whisper model requested when none is configured.
const DefaultModel = "whisper-large-v3"

// videoExtensions are the file types treated as source videos.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".avi":  {},
}

// Config carries the transcription backend settings. BaseURL points at any
// OpenAI-compatible audio endpoint; Groq's is the usual choice for
// whisper-large-v3.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	FFmpegPath string
}

// Transcriber extracts audio with ffmpeg and transcribes it.
type Transcriber struct {
	client *openai.Client
	model  string
	ffmpeg string
	log    *slog.Logger
}

// New creates a transcriber from config. A nil log discards output.
func New(cfg Config, log *slog.Logger) *Transcriber {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Transcriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		ffmpeg: cfg.FFmpegPath,
		log:    log,
	}
}

// ExtractAudio writes the video's audio track as 16kHz mono mp3, the
// cheapest format the transcription endpoints accept.
func (t *Transcriber) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		audioPath)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("extracting audio from %s: %w: %s",
			filepath.Base(videoPath), err, bytes.TrimSpace(out))
	}

	return nil
}

// TranscribeAudio sends one audio file to the whisper endpoint.
func (t *Transcriber) TranscribeAudio(ctx context.Context, audioPath string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", filepath.Base(audioPath), err)
	}

	return resp.Text, nil
}

// ProcessVideo extracts a video's audio into a temp file and transcribes it.
func (t *Transcriber) ProcessVideo(ctx context.Context, videoPath string) (string, error) {
	tmp, err := os.MkdirTemp("", "quill-transcribe-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	audioPath := filepath.Join(tmp, stem+".mp3")

	if err := t.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return "", err
	}

	return t.TranscribeAudio(ctx, audioPath)
}

// Report summarizes one library pass.
type Report struct {
	Transcribed int
	Skipped     int
	Failed      int
}

// ProcessLibrary walks videosDir, laid out as one directory per creator,
// and writes a .txt transcript per video into the matching creator
// directory under transcriptsDir. Videos whose transcript already exists
// are skipped; per-video failures are logged and counted, not fatal.
func (t *Transcriber) ProcessLibrary(ctx context.Context, videosDir, transcriptsDir string) (*Report, error) {
	creators, err := os.ReadDir(videosDir)
	if err != nil {
		return nil, fmt.Errorf("reading videos dir: %w", err)
	}

	report := &Report{}
	for _, creator := range creators {
		if !creator.IsDir() {
			continue
		}

		videos, err := os.ReadDir(filepath.Join(videosDir, creator.Name()))
		if err != nil {
			t.log.Warn("reading creator videos failed", "creator", creator.Name(), "error", err)
			report.Failed++
			continue
		}

		for _, video := range videos {
			if video.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(video.Name()))
			if _, ok := videoExtensions[ext]; !ok {
				continue
			}

			if err := ctx.Err(); err != nil {
				return report, err
			}

			stem := strings.TrimSuffix(video.Name(), filepath.Ext(video.Name()))
			target := filepath.Join(transcriptsDir, creator.Name(), stem+".txt")
			if _, err := os.Stat(target); err == nil {
				report.Skipped++
				continue
			}

			text, err := t.ProcessVideo(ctx, filepath.Join(videosDir, creator.Name(), video.Name()))
			if err != nil {
				t.log.Warn("transcribing video failed",
					"creator", creator.Name(), "video", video.Name(), "error", err)
				report.Failed++
				continue
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return report, fmt.Errorf("creating transcript dir: %w", err)
			}
			if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
				return report, fmt.Errorf("writing transcript: %w", err)
			}

			t.log.Info("transcribed video", "creator", creator.Name(), "video", video.Name())
			report.Transcribed++
		}
	}

	return report, nil
}
