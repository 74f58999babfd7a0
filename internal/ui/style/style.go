// Package style provides brand colors and icons shared by the CLI output.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/monorun/internal/core/domain"
)

// Brand Colors.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Mist   = lipgloss.Color("#98A2B3")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Circle  = "○"
)

// StatusIcon returns the icon and color used to report an operation status.
func StatusIcon(status domain.OperationStatus) (string, lipgloss.Color) {
	switch status {
	case domain.StatusSuccess:
		return Check, Green
	case domain.StatusSuccessWithWarning:
		return Warning, Yellow
	case domain.StatusFailure:
		return Cross, Red
	case domain.StatusBlocked:
		return Circle, Red
	case domain.StatusSkipped:
		return Tilde, Iris
	case domain.StatusNoOp:
		return Dot, Slate
	default:
		return Circle, Mist
	}
}
