package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"codex/internal/assistant"
	"codex/internal/editor"
)

var (
	askMode  string
	askModel string
	askFile  string
	askRaw   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [project] [message...]",
	Short: "Send one message to the assistant and print the reply",
	Long: `Runs a single chat turn against a project. In agent mode the reply's
actions are applied to the project; in ask mode nothing is changed.

Example:
  codex ask site --file /index.html "add a footer with the current year"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "", "Chat mode (agent, ask)")
	askCmd.Flags().StringVar(&askModel, "model", "", "Model ID")
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "Path of the file in focus")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print markdown without rendering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		ws, ix, err := a.openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		tabs := editor.NewTabs()
		if askFile != "" {
			f, err := ws.FileByPath(askFile)
			if err != nil {
				return err
			}
			tabs.Open(f)
		}
		s, err := a.newSession(ctx, ws, ix, tabs)
		if err != nil {
			return err
		}
		if askMode != "" {
			if err := s.SetMode(assistant.Mode(askMode)); err != nil {
				return err
			}
		}
		if askModel != "" {
			if err := s.SetModel(askModel); err != nil {
				return err
			}
		}

		var replies []assistant.Message
		s.OnMessage(func(m assistant.Message) {
			if m.Role == assistant.RoleAI {
				replies = append(replies, m)
			}
		})

		err = s.ProcessMessage(ctx, strings.Join(args[1:], " "), tabs)
		if errors.Is(err, assistant.ErrAPIKeyRequired) {
			return fmt.Errorf("%w: run \"codex key set\" first", err)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, m := range replies {
			text := m.Content
			if label := m.Label(); label != "" {
				text = "**" + label + "** " + text
			}
			fmt.Fprintln(out, renderMarkdown(text, askRaw))
		}
		for _, t := range tabs.List() {
			if t.Kind == editor.TabDiff {
				fmt.Fprintf(out, "changed: %s\n", t.Path)
			}
		}
		return nil
	})
}

// renderMarkdown renders text for the terminal, returning it unchanged when
// raw is set or rendering fails.
func renderMarkdown(text string, raw bool) string {
	if raw {
		return text
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
