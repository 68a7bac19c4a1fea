package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Styles shared by every view. They are rebuilt by Apply.
var (
	// HeaderStyle is used for the application title bar.
	HeaderStyle lipgloss.Style
	// StatusBarStyle is used for the bottom status bar.
	StatusBarStyle lipgloss.Style
	// PanelStyle wraps overlay content such as help and the palette.
	PanelStyle lipgloss.Style
	// ListItemStyle is the base style for items in a list.
	ListItemStyle lipgloss.Style
	// SelectedItemStyle highlights the focused list item.
	SelectedItemStyle lipgloss.Style
	HelpStyle         lipgloss.Style
	DimmedStyle       lipgloss.Style
	// PendingStyle marks a local change the server has not confirmed.
	PendingStyle lipgloss.Style
	ToastInfoStyle  lipgloss.Style
	ToastErrorStyle lipgloss.Style
	FieldErrorStyle lipgloss.Style
)

func init() {
	Apply(false)
}

// Apply rebuilds the shared styles. High contrast drops the subtle
// backgrounds and uses full-strength foregrounds.
func Apply(highContrast bool) {
	subtle, dim := ColorSubtle, ColorGray
	if highContrast {
		subtle = lipgloss.AdaptiveColor{Dark: "#000000", Light: "#FFFFFF"}
		dim = ColorWhite
	}

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWhite).
		Background(ColorBlue).
		Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Background(subtle).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	ListItemStyle = lipgloss.NewStyle().
		PaddingLeft(2)

	SelectedItemStyle = lipgloss.NewStyle().
		PaddingLeft(1).
		Bold(true).
		Foreground(ColorBlue).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorBlue)

	HelpStyle = lipgloss.NewStyle().
		Foreground(dim).
		Italic(!highContrast)

	DimmedStyle = lipgloss.NewStyle().
		Foreground(dim)

	PendingStyle = lipgloss.NewStyle().
		Foreground(ColorYellow).
		Italic(true)

	ToastInfoStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Background(ColorBlue).
		Padding(0, 1)

	ToastErrorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWhite).
		Background(ColorRed).
		Padding(0, 1)

	FieldErrorStyle = lipgloss.NewStyle().
		Foreground(ColorRed)
}

// PushStateStyle returns the indicator style for a push transport state.
func PushStateStyle(state string) lipgloss.Style {
	base := HeaderStyle.Bold(false)

	switch state {
	case "connected":
		return base.Foreground(ColorGreen)
	case "connecting", "reconnecting":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorRed)
	}
}

// KindStyle returns a color-coded badge style for a notification type.
func KindStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch kind {
	case "bill_due", "payment_due":
		return base.Foreground(ColorOrange)
	case "task_assigned", "task_due":
		return base.Foreground(ColorBlue)
	case "announcement":
		return base.Foreground(ColorMagenta)
	case "message", "poll":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}
