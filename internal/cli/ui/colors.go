package ui

import "github.com/fatih/color"

// Цвета консольного вывода
var (
	Red    = color.New(color.FgRed)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Cyan   = color.New(color.FgCyan)
	Gray   = color.New(color.FgHiBlack)
	Bold   = color.New(color.Bold)
	Title  = color.New(color.FgCyan, color.Bold)
)

// Icon константы
const (
	IconCheckmark = "✓"
	IconCross     = "✗"
	IconPlay      = "▶"
	IconClock     = "⏳"
	IconSkip      = "⤼"
	IconDocument  = "📝"
	IconCog       = "⚙️"
	IconGlobe     = "🌐"
	IconList      = "📋"
	IconChart     = "📊"
	IconTime      = "🕐"
	IconWarning   = "⚠"
)
