package tui

import (
	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

type Styles struct {
	flavor catppuccin.Flavor
}

func NewStyles(themeName string) *Styles {
	flavor := flavorFromName(themeName)
	return &Styles{flavor: flavor}
}

func flavorFromName(name string) catppuccin.Flavor {
	switch name {
	case "latte":
		return catppuccin.Latte
	case "frappe":
		return catppuccin.Frappe
	case "macchiato":
		return catppuccin.Macchiato
	case "mocha":
		return catppuccin.Mocha
	default:
		return catppuccin.Mocha
	}
}

// SyntaxTheme names the chroma style matching the flavor.
func (s *Styles) SyntaxTheme() string {
	return "catppuccin-" + s.flavor.Name()
}

func (s *Styles) color(c catppuccin.Color) lipgloss.Color {
	return lipgloss.Color(c.Hex)
}

func (s *Styles) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(s.color(s.flavor.Mauve()))
}

func (s *Styles) SubtitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Subtext0()))
}

func (s *Styles) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Overlay0()))
}

func (s *Styles) BoxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.color(s.flavor.Surface1())).
		Padding(1, 2)
}

func (s *Styles) InfoStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Text()))
}

func (s *Styles) AccentStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Teal()))
}

func (s *Styles) ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Red())).
		Bold(true)
}

func (s *Styles) SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Green()))
}

func (s *Styles) DisabledStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Surface2()))
}

func (s *Styles) SidebarStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(s.color(s.flavor.Surface1()))
}

// StatusDotStyle colours the status bullet: green when running, red when
// stopped, grey while unknown.
func (s *Styles) StatusDotStyle(known, running bool) lipgloss.Style {
	c := s.flavor.Overlay0()
	if known {
		c = s.flavor.Red()
		if running {
			c = s.flavor.Green()
		}
	}
	return lipgloss.NewStyle().Foreground(s.color(c))
}

// ButtonStyle renders header buttons such as START/STOP and SAVE.
func (s *Styles) ButtonStyle(active bool) lipgloss.Style {
	st := lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(s.color(s.flavor.Base()))
	if active {
		return st.Background(s.color(s.flavor.Mauve()))
	}
	return st.Background(s.color(s.flavor.Surface2()))
}

func (s *Styles) TabStyle(active bool) lipgloss.Style {
	st := lipgloss.NewStyle().Padding(0, 1)
	if active {
		return st.Bold(true).
			Foreground(s.color(s.flavor.Mauve())).
			Underline(true)
	}
	return st.Foreground(s.color(s.flavor.Subtext0()))
}

func (s *Styles) PanelHeaderStyle(focused bool) lipgloss.Style {
	if focused {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(s.color(s.flavor.Teal()))
	}
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Overlay1()))
}

func (s *Styles) AlertStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.color(s.flavor.Red())).
		Padding(1, 2)
}

func (s *Styles) InfoStatusStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Subtext1()))
}
