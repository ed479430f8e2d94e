package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"codex/cmd/codex/ui"
	"codex/internal/assistant"
	"codex/internal/editor"
	"codex/internal/workspace"
)

var chatCmd = &cobra.Command{
	Use:   "chat [project]",
	Short: "Chat with the assistant about a project",
	Long: `Opens an interactive chat. Enter sends, Alt+Enter inserts a newline.

Commands:
  /mode agent|ask   switch chat mode
  /model <id>       select a model (/model lists them)
  /key <api-key>    store the API key and resend a held message
  /open <path>      focus a file for context
  /clear            clear the chat history
  /quit             exit`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		ws, ix, err := a.openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		tabs := editor.NewTabs()
		s, err := a.newSession(ctx, ws, ix, tabs)
		if err != nil {
			return err
		}
		st, _ := a.settings.Load(ctx)
		p, err := ws.Snapshot()
		if err != nil {
			return err
		}
		m := newChatModel(ctx, s, ws, tabs, p.Name, ui.NewStyles(ui.ThemeFor(st.Theme)))
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
}

// replyMsg reports the end of a chat turn.
type replyMsg struct{ err error }

// chatModel is the bubbletea model of the terminal chat.
type chatModel struct {
	ctx     context.Context
	session *assistant.Session
	ws      *workspace.Workspace
	tabs    *editor.Tabs
	project string
	styles  ui.Styles

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width    int
	height   int
	busy     bool
	status   string
	ready    bool
	quitting bool
}

func newChatModel(ctx context.Context, s *assistant.Session, ws *workspace.Workspace, tabs *editor.Tabs, name string, styles ui.Styles) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask the assistant..."
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return chatModel{
		ctx:      ctx,
		session:  s,
		ws:       ws,
		tabs:     tabs,
		project:  name,
		styles:   styles,
		textarea: ta,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textarea.SetWidth(msg.Width)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-m.textarea.Height()-3, 3)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-4, 20)),
		)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" || m.busy {
				return m, nil
			}
			m.textarea.Reset()
			return m.submit(input)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		m.busy = false
		m.status = ""
		switch {
		case errors.Is(msg.err, assistant.ErrAPIKeyRequired):
			m.status = m.styles.Warning.Render("An API key is required. Enter it with /key <api-key>.")
		case msg.err != nil:
			m.status = m.styles.Error.Render(msg.err.Error())
		}
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles a slash command or starts a chat turn.
func (m chatModel) submit(input string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(input, "/") {
		return m.run(func() error { return m.session.ProcessMessage(m.ctx, input, m.tabs) })
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	arg = strings.TrimSpace(arg)
	m.status = ""
	switch name {
	case "quit", "exit":
		m.quitting = true
		return m, tea.Quit
	case "mode":
		if err := m.session.SetMode(assistant.Mode(arg)); err != nil {
			m.status = m.styles.Error.Render(err.Error())
		}
	case "model":
		if arg == "" {
			var ids []string
			for _, model := range m.session.Models() {
				ids = append(ids, model.ID)
			}
			m.status = m.styles.Muted.Render("models: " + strings.Join(ids, ", "))
			break
		}
		if err := m.session.SetModel(arg); err != nil {
			m.status = m.styles.Error.Render(err.Error())
		}
	case "key":
		return m.run(func() error { return m.session.SaveAPIKey(m.ctx, arg) })
	case "open":
		f, err := m.ws.FileByPath(arg)
		if err != nil {
			m.status = m.styles.Error.Render(err.Error())
			break
		}
		m.tabs.Open(f)
		m.status = m.styles.Muted.Render("focused " + f.Path)
	case "clear":
		if err := m.session.ClearHistory(m.ctx); err != nil {
			m.status = m.styles.Error.Render(err.Error())
		}
	default:
		m.status = m.styles.Warning.Render("unknown command /" + name)
	}
	m.refresh()
	return m, nil
}

// run executes fn off the update loop and reports its result as a replyMsg.
func (m chatModel) run(fn func() error) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return replyMsg{err: fn()} })
}

// refresh re-renders the history into the viewport.
func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	var sb strings.Builder
	for _, msg := range m.session.Messages() {
		if msg.Role == assistant.RoleUser {
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			sb.WriteString(msg.Content + "\n\n")
			continue
		}
		sb.WriteString(m.styles.AgentLabel.Render("CodeX AI"))
		if badge := m.styles.BadgeFor(msg.Label()); badge != "" {
			sb.WriteString(" " + badge)
		}
		sb.WriteString("\n")
		sb.WriteString(m.styles.AgentResponse.Render(m.render(msg.Content)) + "\n\n")
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m *chatModel) render(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func (m chatModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	model := m.session.CurrentModel()
	header := m.styles.Header.Render(fmt.Sprintf("codex · %s · %s · %s", m.project, m.session.Mode(), model.Name))

	footer := m.status
	if m.busy {
		footer = m.spinner.View() + " " + m.styles.Muted.Render("thinking...")
	}
	if footer == "" {
		focus := "no file focused"
		if t, ok := m.tabs.Active(); ok {
			focus = t.Path
		}
		footer = m.styles.Muted.Render(focus + " · enter send · alt+enter newline · esc quit")
	}

	return strings.Join([]string{
		header,
		m.viewport.View(),
		m.textarea.View(),
		m.styles.Footer.Render(footer),
	}, "\n")
}
