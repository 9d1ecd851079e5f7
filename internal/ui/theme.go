package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme is the set of styles used to draw the dashboard.
type Theme struct {
	Name      string
	Base      tcell.Style
	Header    tcell.Style
	Muted     tcell.Style
	Border    tcell.Style
	Healthy   tcell.Style
	Unhealthy tcell.Style
	Error     tcell.Style
	Running   tcell.Style
	Notice    tcell.Style
}

var themes = map[string]Theme{
	"dark": {
		Name:      "dark",
		Base:      tcell.StyleDefault,
		Header:    tcell.StyleDefault.Bold(true),
		Muted:     tcell.StyleDefault.Foreground(tcell.ColorGray),
		Border:    tcell.StyleDefault.Foreground(tcell.ColorSilver),
		Healthy:   tcell.StyleDefault.Foreground(tcell.ColorGreen),
		Unhealthy: tcell.StyleDefault.Foreground(tcell.ColorRed),
		Error:     tcell.StyleDefault.Foreground(tcell.ColorYellow),
		Running:   tcell.StyleDefault.Foreground(tcell.ColorAqua),
		Notice:    tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true),
	},
	"light": {
		Name:      "light",
		Base:      tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite),
		Header:    tcell.StyleDefault.Foreground(tcell.ColorNavy).Background(tcell.ColorWhite).Bold(true),
		Muted:     tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.ColorWhite),
		Border:    tcell.StyleDefault.Foreground(tcell.ColorGray).Background(tcell.ColorWhite),
		Healthy:   tcell.StyleDefault.Foreground(tcell.ColorDarkGreen).Background(tcell.ColorWhite),
		Unhealthy: tcell.StyleDefault.Foreground(tcell.ColorMaroon).Background(tcell.ColorWhite),
		Error:     tcell.StyleDefault.Foreground(tcell.ColorOlive).Background(tcell.ColorWhite),
		Running:   tcell.StyleDefault.Foreground(tcell.ColorTeal).Background(tcell.ColorWhite),
		Notice:    tcell.StyleDefault.Foreground(tcell.ColorPurple).Background(tcell.ColorWhite).Bold(true),
	},
	"mono": {
		Name:      "mono",
		Base:      tcell.StyleDefault,
		Header:    tcell.StyleDefault.Bold(true),
		Muted:     tcell.StyleDefault.Dim(true),
		Border:    tcell.StyleDefault,
		Healthy:   tcell.StyleDefault,
		Unhealthy: tcell.StyleDefault.Reverse(true),
		Error:     tcell.StyleDefault.Underline(true),
		Running:   tcell.StyleDefault.Bold(true),
		Notice:    tcell.StyleDefault.Bold(true),
	},
}

// ThemeByName returns the named theme, falling back to dark.
func ThemeByName(name string) Theme {
	if theme, ok := themes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return theme
	}
	return themes["dark"]
}
