// Package ui provides the visual styling for the codex terminal chat.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Light Mode Colors (Default)
	LightBackground = lipgloss.Color("#f5f6f8")
	LightForeground = lipgloss.Color("#1b2430")
	LightPrimary    = lipgloss.Color("#2563eb") // Editor blue
	LightAccent     = lipgloss.Color("#0e9f6e")
	LightMuted      = lipgloss.Color("#8a94a6")
	LightBorder     = lipgloss.Color("#d8dde5")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark Mode Colors
	DarkBackground = lipgloss.Color("#1e1e1e")
	DarkForeground = lipgloss.Color("#d4d4d4")
	DarkPrimary    = lipgloss.Color("#569cd6")
	DarkAccent     = lipgloss.Color("#4ec9b0")
	DarkMuted      = lipgloss.Color("#6a6a6a")
	DarkBorder     = lipgloss.Color("#3c3c3c")
	DarkCard       = lipgloss.Color("#252526")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#f14c4c")
	Success     = lipgloss.Color("#4ec94e")
	Warning     = lipgloss.Color("#cca700")
	Info        = lipgloss.Color("#3794ff")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// ThemeFor maps an editor theme setting ("dark" or "light") to a Theme. An
// empty name falls back to DetectTheme.
func ThemeFor(name string) Theme {
	switch name {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	}
	return DetectTheme()
}

// DetectTheme guesses the terminal background from COLORFGBG, defaulting to
// dark like the editor.
func DetectTheme() Theme {
	// Format is usually "foreground;background"
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && bg >= 7 && bg != 8 {
			return LightTheme()
		}
	}
	return DarkTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	Header lipgloss.Style
	Footer lipgloss.Style

	Muted lipgloss.Style
	Bold  lipgloss.Style

	Prompt        lipgloss.Style
	UserLabel     lipgloss.Style
	AgentLabel    lipgloss.Style
	AgentResponse lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style

	Spinner lipgloss.Style
	Badge   lipgloss.Style
	Divider lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		UserLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		AgentLabel: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		AgentResponse: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(theme.Card).
			Padding(0, 1).
			Bold(true),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),
	}
}

// DefaultStyles returns styles with auto-detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// BadgeFor colors an action badge: NEW green, UPDATED blue, DELETED red.
func (s Styles) BadgeFor(label string) string {
	if label == "" {
		return ""
	}
	style := s.Badge
	switch label {
	case "UPDATED":
		style = style.Background(Info)
	case "DELETED":
		style = style.Background(Destructive)
	default:
		style = style.Background(Success)
	}
	return style.Render(label)
}
