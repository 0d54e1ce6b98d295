// Package quillcmder
package quillcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/quillworksco/quill/cmd/quill/chat"
	configcmder "github.com/quillworksco/quill/cmd/quill/config"
	servecmder "github.com/quillworksco/quill/cmd/quill/serve"
	sessionscmder "github.com/quillworksco/quill/cmd/quill/sessions"
	transcribecmder "github.com/quillworksco/quill/cmd/quill/transcribe"
	versioncmder "github.com/quillworksco/quill/cmd/version"
)

const quillLongDesc string = `Quill is a marketing copywriter agent with a memory.

Run the server:
  quill serve            Run the agent API server

Talk to it:
  quill chat             Interactive chat session with the agent
  quill sessions         List and manage saved sessions

Feed its style library:
  quill transcribe       Transcribe creator videos into the transcript library`

const quillShortDesc string = "Quill - Copywriter Agent"

func NewQuillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quill",
		Short: quillShortDesc,
		Long:  quillLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing config.toml (default: .quill resolution)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(transcribecmder.NewTranscribeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
