package chatcmder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/quillworksco/quill/pkg/run"
	"github.com/quillworksco/quill/pkg/runapi"
	"github.com/quillworksco/quill/pkg/utils"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

var (
	pickerTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	pickerMutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pickerErrStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	pickerHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("212")).Bold(true)
	pickerRuleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Delete key.Binding
	Quit   key.Binding
}

func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Open, k.Delete, k.Quit}
}

func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up}, {k.Open, k.Delete, k.Quit}}
}

func pickerKeys() pickerKeyMap {
	return pickerKeyMap{
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Open:   key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "open")),
		Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "cancel")),
	}
}

type sessionDeletedMsg struct {
	sessionID string
	err       error
}

type pickerModel struct {
	client   *runapi.Client
	sessions []*run.Session
	cursor   int
	width    int
	choice   string
	status   string
	keys     pickerKeyMap
	help     help.Model
}

func newPickerModel(client *runapi.Client, sessions []*run.Session) pickerModel {
	return pickerModel{
		client:   client,
		sessions: sessions,
		keys:     pickerKeys(),
		help:     help.New(),
	}
}

func (m pickerModel) Init() bubbletea.Cmd {
	return nil
}

func (m pickerModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case sessionDeletedMsg:
		if msg.err != nil {
			m.status = pickerErrStyle.Render(fmt.Sprintf("delete failed: %v", msg.err))
			return m, nil
		}
		kept := m.sessions[:0]
		for _, sess := range m.sessions {
			if sess.SessionID != msg.sessionID {
				kept = append(kept, sess)
			}
		}
		m.sessions = kept
		if m.cursor >= len(m.sessions) && m.cursor > 0 {
			m.cursor = len(m.sessions) - 1
		}
		m.status = pickerMutedStyle.Render("session deleted")
		if len(m.sessions) == 0 {
			return m, bubbletea.Quit
		}
		return m, nil
	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m pickerModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, bubbletea.Quit
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Open):
		if len(m.sessions) > 0 {
			m.choice = m.sessions[m.cursor].SessionID
			return m, bubbletea.Quit
		}
	case key.Matches(msg, m.keys.Delete):
		if len(m.sessions) > 0 {
			return m, deleteSessionCmd(m.client, m.sessions[m.cursor].SessionID)
		}
	}
	return m, nil
}

func deleteSessionCmd(client *runapi.Client, sessionID string) bubbletea.Cmd {
	return func() bubbletea.Msg {
		err := client.DeleteSession(context.Background(), sessionID)
		return sessionDeletedMsg{sessionID: sessionID, err: err}
	}
}

func (m pickerModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	lines := []string{
		pickerTitleStyle.Render("quill sessions"),
		pickerRuleStyle.Render(strings.Repeat("─", width)),
	}

	if len(m.sessions) == 0 {
		lines = append(lines, pickerMutedStyle.Render("no saved sessions"))
	}

	for i, sess := range m.sessions {
		title := sess.Title
		if title == "" {
			title = "Untitled session"
		}
		updated := time.Unix(int64(sess.UpdatedAt), 0).Format("2006-01-02 15:04")
		line := fmt.Sprintf(" %s  %-32s %s",
			utils.Truncate(sess.SessionID, 8), title, updated)

		if i == m.cursor {
			lines = append(lines, pickerHighlightStyle.Render(">"+line))
		} else {
			lines = append(lines, " "+line)
		}
	}

	lines = append(lines, "")
	if m.status != "" {
		lines = append(lines, m.status)
	}
	lines = append(lines, m.help.View(m.keys))

	return strings.Join(lines, "\n")
}

// runSessionPicker shows the session browser and returns the chosen session
// id, or empty when the user cancels. Deleting from the picker is immediate.
func runSessionPicker(ctx context.Context, client *runapi.Client, agentID string) (string, error) {
	sessions, err := client.ListSessions(ctx, agentID)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", nil
	}

	program := bubbletea.NewProgram(newPickerModel(client, sessions),
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	final, err := program.Run()
	if err != nil {
		return "", err
	}

	model, ok := final.(pickerModel)
	if !ok {
		return "", nil
	}
	return model.choice, nil
}
