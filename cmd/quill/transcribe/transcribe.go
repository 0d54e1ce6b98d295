// Package transcribecmder provides the transcribe command filling the
// creator transcript library from video files.
package transcribecmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillworksco/quill/pkg/cliui"
	"github.com/quillworksco/quill/pkg/config"
	"github.com/quillworksco/quill/pkg/logger"
	"github.com/quillworksco/quill/pkg/transcribe"
)

type transcribeCommander struct {
	videosDir      string
	transcriptsDir string
	baseURL        string
	model          string
	ffmpegPath     string
	debug          bool
}

var transcribeFlags = config.FlagSet{
	config.FlagTranscriptsDir: {
		Name: "transcripts-dir", ViperKey: "transcribe.transcripts_dir",
		Description: "Directory transcripts are written to",
	},
	config.FlagTranscribeModel: {
		Name: "model", Shorthand: "m", ViperKey: "transcribe.model",
		Description: "Whisper model used for transcription",
	},
	config.FlagFFmpeg: {
		Name: "ffmpeg", ViperKey: "transcribe.ffmpeg_path",
		Description: "Path to the ffmpeg binary",
	},
}

var transcribeFlagKeys = []string{
	config.FlagTranscriptsDir,
	config.FlagTranscribeModel,
	config.FlagFFmpeg,
}

const transcribeLongDesc string = `Transcribe creator videos into the transcript library.

The videos directory holds one subdirectory per creator containing video
files. Each video's audio is extracted with ffmpeg and transcribed; the
text lands in the transcripts directory under the same creator name, where
a running "quill serve" picks it up without a restart.

Videos that already have a transcript are skipped, so re-running is cheap.

The transcription API key is read from the GROQ_API_KEY environment
variable (or OPENAI_API_KEY when the default endpoint is overridden).

Examples:
  quill transcribe ./videos
  quill transcribe ./videos --transcripts-dir ./transcriptions`

const transcribeShortDesc string = "Transcribe creator videos into the transcript library"

func NewTranscribeCmd() *cobra.Command {
	cmder := &transcribeCommander{}

	cmd := &cobra.Command{
		Use:   "transcribe <videos-dir>",
		Short: transcribeShortDesc,
		Long:  transcribeLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, transcribeFlags, transcribeFlagKeys)

			cmder.transcriptsDir = v.GetString("transcribe.transcripts_dir")
			cmder.baseURL = v.GetString("transcribe.base_url")
			cmder.model = v.GetString("transcribe.model")
			cmder.ffmpegPath = v.GetString("transcribe.ffmpeg_path")

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.videosDir = args[0]
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, transcribeFlags, config.FlagTranscriptsDir, &cmder.transcriptsDir)
	config.AddStringFlag(cmd, transcribeFlags, config.FlagTranscribeModel, &cmder.model)
	config.AddStringFlag(cmd, transcribeFlags, config.FlagFFmpeg, &cmder.ffmpegPath)

	return cmd
}

func (c *transcribeCommander) run() error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("no transcription API key: set GROQ_API_KEY or OPENAI_API_KEY")
	}

	t := transcribe.New(transcribe.Config{
		BaseURL:    c.baseURL,
		APIKey:     apiKey,
		Model:      c.model,
		FFmpegPath: c.ffmpegPath,
	}, log)

	var report *transcribe.Report
	err := cliui.Step(os.Stdout, fmt.Sprintf("Transcribing videos from %s", c.videosDir), func() error {
		var err error
		report, err = t.ProcessLibrary(context.Background(), c.videosDir, c.transcriptsDir)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s %d transcribed, %d skipped, %d failed\n\n",
		cliui.Mark(nil),
		report.Transcribed,
		report.Skipped,
		report.Failed,
	)

	if report.Failed > 0 {
		return fmt.Errorf("%d videos failed to transcribe", report.Failed)
	}

	return nil
}
