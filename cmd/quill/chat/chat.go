// Package chatcmder provides the chat command for interactive sessions with
// the quill agent.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillworksco/quill/pkg/cliui"
	"github.com/quillworksco/quill/pkg/config"
	"github.com/quillworksco/quill/pkg/dotdir"
	"github.com/quillworksco/quill/pkg/history"
	"github.com/quillworksco/quill/pkg/logger"
	"github.com/quillworksco/quill/pkg/run"
	"github.com/quillworksco/quill/pkg/runapi"
	"github.com/quillworksco/quill/pkg/stream"
	"github.com/quillworksco/quill/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("quill> ")
)

type chatCommander struct {
	apiTarget string
	agentID   string
	sessionID string
	fresh     bool
	pick      bool
	debug     bool

	logger *slog.Logger
}

var chatFlags = config.FlagSet{
	config.FlagAPITarget: {
		Name: "api-target", Shorthand: "a", ViperKey: "client.api_target",
		Description: "Quill API server URL",
	},
	config.FlagAgentID: {
		Name: "agent", ViperKey: "client.agent_id",
		Description: "Agent id to chat with",
	},
}

var chatFlagKeys = []string{config.FlagAPITarget, config.FlagAgentID}

const chatLongDesc string = `Start an interactive chat session with the quill agent.

The last session is resumed automatically; its conversation history is
replayed before the prompt. Use --new to start a fresh session, or
--session to attach to a specific one (see "quill sessions").

Inside the chat:
  /new       start a fresh session
  /sessions  browse saved sessions (open or delete)
  /exit      quit (Ctrl+D also works)

Examples:
  quill chat
  quill chat --new
  quill chat --pick
  quill chat --session 4f7c2a9e --api-target http://localhost:7777`

const chatShortDesc string = "Interactive chat with the quill agent"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, chatFlags, chatFlagKeys)

			cmder.apiTarget = v.GetString("client.api_target")
			cmder.agentID = v.GetString("client.agent_id")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, chatFlags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, chatFlags, config.FlagAgentID, &cmder.agentID)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Session id to resume")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a fresh session")
	cmd.Flags().BoolVar(&cmder.pick, "pick", false, "Pick the session to resume from a browser")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	ctx := context.Background()

	client := runapi.NewClient(c.apiTarget)
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("cannot reach %s (is \"quill serve\" running?): %w", c.apiTarget, err)
	}
	if err := c.resolveAgent(ctx, client); err != nil {
		return err
	}

	ddm := dotdir.NewManager()
	if c.fresh {
		if err := ddm.ClearSession(""); err != nil {
			return fmt.Errorf("clearing session state: %w", err)
		}
	}

	if c.pick {
		chosen, err := runSessionPicker(ctx, client, c.agentID)
		if err != nil {
			return fmt.Errorf("browsing sessions: %w", err)
		}
		c.sessionID = chosen
	} else if err := c.resolveSession(ddm); err != nil {
		return err
	}

	fmt.Println()
	if c.sessionID != "" {
		c.replayHistory(ctx, client)
	} else {
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Agent:"),
		cliui.NameStyle.Render(c.agentID),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new for a fresh session, /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/new" {
			c.sessionID = ""
			if err := ddm.ClearSession(""); err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			}
			fmt.Printf("  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}
		if input == "/sessions" {
			chosen, err := runSessionPicker(ctx, client, c.agentID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
				continue
			}
			if chosen != "" && chosen != c.sessionID {
				c.sessionID = chosen
				fmt.Println()
				c.replayHistory(ctx, client)
			}
			continue
		}

		result, err := c.sendAndStream(ctx, client, input)
		if result != nil && result.SessionID != "" && result.SessionID != c.sessionID {
			// First run of a fresh session: remember it for next time.
			c.sessionID = result.SessionID
			state := &dotdir.SessionState{
				AgentID:   c.agentID,
				SessionID: result.SessionID,
				Title:     history.Summarize(input, history.DefaultSummaryLength),
			}
			if err := ddm.SaveSession(state, ""); err != nil {
				c.logger.Warn("saving session state failed", "error", err)
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "\n  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// resolveSession picks the session to attach to: the --session flag wins,
// then the saved state from the last chat.
func (c *chatCommander) resolveSession(ddm *dotdir.Manager) error {
	if c.sessionID != "" {
		return nil
	}

	state, err := ddm.LoadSessionState("")
	if err != nil {
		return fmt.Errorf("loading session state: %w", err)
	}
	if state != nil && state.AgentID == c.agentID {
		c.sessionID = state.SessionID
	}

	return nil
}

// replayHistory prints the resumed session's conversation. Failures fall
// back to a fresh session rather than aborting the chat.
func (c *chatCommander) replayHistory(ctx context.Context, client *runapi.Client) {
	records, err := client.SessionRuns(ctx, c.sessionID)
	if err != nil {
		fmt.Printf("  %s Could not resume session %s, starting fresh\n",
			cliui.DimStyle.Render("●"),
			cliui.DimStyle.Render(utils.Truncate(c.sessionID, 8)),
		)
		c.sessionID = ""
		return
	}

	messages := history.Reconstruct(records)
	fmt.Printf("  %s Resuming %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(utils.Truncate(c.sessionID, 8)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(messages))),
	)

	for _, msg := range messages {
		switch msg.Role {
		case run.RoleUser:
			fmt.Printf("%s%s\n", userPrompt, msg.Content)
		case run.RoleAssistant:
			rendered, err := cliui.RenderMarkdown(msg.Content)
			if err != nil {
				rendered = msg.Content
			}
			fmt.Printf("%s%s\n", assistantPrompt, strings.TrimSpace(rendered))
		}
		fmt.Println()
	}
}

// resolveAgent checks the configured agent against the server's roster and
// falls back to the first served agent when it is not there.
func (c *chatCommander) resolveAgent(ctx context.Context, client *runapi.Client) error {
	agents, err := client.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("listing agents: %w", err)
	}
	if len(agents) == 0 {
		return fmt.Errorf("server at %s has no agents configured", c.apiTarget)
	}

	for _, a := range agents {
		if a.AgentID == c.agentID {
			return nil
		}
	}

	fmt.Printf("  %s\n", cliui.DimStyle.Render(
		fmt.Sprintf("agent %q not served, using %q", c.agentID, agents[0].AgentID)))
	c.agentID = agents[0].AgentID
	return nil
}

// sendAndStream starts a run and prints the answer as it streams. The
// partial result is returned even on error so the session id survives.
func (c *chatCommander) sendAndStream(ctx context.Context, client *runapi.Client, input string) (*stream.Result, error) {
	body, err := client.StartRun(ctx, c.agentID, c.sessionID, input)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	fmt.Print(assistantPrompt)

	var printed int
	consumer := stream.NewConsumer()
	consumer.OnContent = func(text string) {
		if len(text) > printed {
			fmt.Print(text[printed:])
			printed = len(text)
		}
	}

	result, err := consumer.Consume(stream.NewExtractor(body))
	if err != nil {
		return result, err
	}

	if len(result.Tools) > 0 {
		names := make([]string, 0, len(result.Tools))
		for _, t := range result.Tools {
			names = append(names, t.Name)
		}
		fmt.Printf("\n  %s\n", cliui.DimStyle.Render("tools: "+strings.Join(names, ", ")))
	}

	return result, nil
}
