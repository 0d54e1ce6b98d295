package sessionscmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillworksco/quill/pkg/cliui"
	"github.com/quillworksco/quill/pkg/config"
	"github.com/quillworksco/quill/pkg/history"
	"github.com/quillworksco/quill/pkg/runapi"
	"github.com/quillworksco/quill/pkg/utils"
)

const listLongDesc string = `List saved sessions, newest activity first.

Sessions without a stored title get one derived from their first message.

Examples:
  quill sessions list
  quill sessions list --agent copywriter`

const listShortDesc string = "List saved sessions"

func newListCmd() *cobra.Command {
	targets := &sessionsTargets{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindTargets(cmd, targets)
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runList(targets)
		},
	}

	config.AddStringFlag(cmd, sessionsFlags, config.FlagAPITarget, &targets.apiTarget)
	config.AddStringFlag(cmd, sessionsFlags, config.FlagAgentID, &targets.agentID)

	return cmd
}

func runList(targets *sessionsTargets) error {
	ctx := context.Background()
	client := runapi.NewClient(targets.apiTarget)

	sessions, err := client.ListSessions(ctx, targets.agentID)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No saved sessions."))
		return nil
	}

	fmt.Println()
	for _, sess := range sessions {
		title := sess.Title
		if title == "" {
			// Older sessions may predate server-side titling; derive one
			// from the recorded runs.
			if records, err := client.SessionRuns(ctx, sess.SessionID); err == nil {
				title = history.Title(records)
			} else {
				title = "Untitled session"
			}
		}

		updated := time.Unix(int64(sess.UpdatedAt), 0)
		fmt.Printf("  %s  %s  %s\n",
			cliui.NameStyle.Render(utils.Truncate(sess.SessionID, 8)),
			cliui.ValueStyle.Render(title),
			cliui.DimStyle.Render(updated.Format("2006-01-02 15:04")),
		)
	}
	fmt.Println()

	return nil
}
