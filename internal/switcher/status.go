package switcher

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/bryanchriswhite/ScreenCycler/internal/config"
)

// Class summarises how the displayed layout relates to the hardware.
type Class string

const (
	// ClassNormal: displayed is available but not active.
	ClassNormal Class = "normal"
	// ClassActive: displayed is the active layout.
	ClassActive Class = "active"
	// ClassUnavailable: displayed is not in the Available Set.
	ClassUnavailable Class = "unavailable"
	// ClassDegraded: active is not in the Available Set.
	ClassDegraded Class = "degraded"
)

// Status is what a host surface renders after a cycle.
type Status struct {
	FullText  string   `json:"full_text"`
	Displayed string   `json:"displayed"`
	Active    string   `json:"active"`
	Class     Class    `json:"class"`
	Degraded  bool     `json:"degraded"`
	Color     string   `json:"color,omitempty"`
	Available []string `json:"available"`
	Error     string   `json:"error,omitempty"`
}

// noOutputsText is shown when nothing is connected.
const noOutputsText = "no outputs"

func classify(displayed, active string, available func(string) bool, degraded bool) Class {
	switch {
	case degraded:
		return ClassDegraded
	case displayed == active:
		return ClassActive
	case !available(displayed):
		return ClassUnavailable
	default:
		return ClassNormal
	}
}

// Color maps a class to the configured color; normal has none.
func Color(class Class, colors config.ColorConfig) string {
	switch class {
	case ClassActive:
		return colors.Good
	case ClassUnavailable:
		return colors.Bad
	case ClassDegraded:
		return colors.Degraded
	}
	return ""
}

// Center pads s with spaces to width cells. When the padding is odd the
// extra space goes on the right.
func Center(s string, width int) string {
	pad := width - runewidth.StringWidth(s)
	if pad <= 0 {
		return s
	}
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
