package sessionscmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworksco/quill/pkg/cliui"
	"github.com/quillworksco/quill/pkg/config"
	"github.com/quillworksco/quill/pkg/runapi"
)

const deleteLongDesc string = `Delete a session and all of its runs.

The id must be the full session id as reported by the server.

Examples:
  quill sessions delete 4f7c2a9e-1b22-4cbe-9c1a-8b2f3d4e5f60`

const deleteShortDesc string = "Delete a session and its runs"

func newDeleteCmd() *cobra.Command {
	targets := &sessionsTargets{}

	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindTargets(cmd, targets)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runDelete(targets, args[0])
		},
	}

	config.AddStringFlag(cmd, sessionsFlags, config.FlagAPITarget, &targets.apiTarget)

	return cmd
}

func runDelete(targets *sessionsTargets, sessionID string) error {
	client := runapi.NewClient(targets.apiTarget)

	if err := client.DeleteSession(context.Background(), sessionID); err != nil {
		if errors.Is(err, runapi.ErrNotFound) {
			return fmt.Errorf("no session with id %q", sessionID)
		}
		return err
	}

	fmt.Printf("\n  %s Deleted session %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(sessionID),
	)

	return nil
}
