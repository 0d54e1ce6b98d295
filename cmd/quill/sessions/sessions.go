// Package sessionscmder provides the sessions command for listing and
// managing saved agent sessions.
package sessionscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillworksco/quill/pkg/config"
)

type sessionsTargets struct {
	apiTarget string
	agentID   string
}

var sessionsFlags = config.FlagSet{
	config.FlagAPITarget: {
		Name: "api-target", Shorthand: "a", ViperKey: "client.api_target",
		Description: "Quill API server URL",
	},
	config.FlagAgentID: {
		Name: "agent", ViperKey: "client.agent_id",
		Description: "Agent id to filter sessions by",
	},
}

var sessionsFlagKeys = []string{config.FlagAPITarget, config.FlagAgentID}

const sessionsLongDesc string = `List and manage saved agent sessions.

Use subcommands to list or delete sessions:
  quill sessions list            List saved sessions
  quill sessions delete <id>     Delete a session and its runs

Examples:
  quill sessions list
  quill sessions delete 4f7c2a9e-1b22-4cbe-9c1a-8b2f3d4e5f60`

const sessionsShortDesc string = "List and manage saved sessions"

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

// bindTargets resolves the API target and agent filter through the standard
// precedence chain (flags, env, config file, defaults).
func bindTargets(cmd *cobra.Command, t *sessionsTargets) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, sessionsFlags, sessionsFlagKeys)

	t.apiTarget = v.GetString("client.api_target")
	t.agentID = v.GetString("client.agent_id")

	return nil
}
