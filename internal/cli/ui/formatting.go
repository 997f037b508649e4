package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// FormatStatus возвращает иконку, цвет и текст для статуса теста или запуска
func FormatStatus(status string) (icon string, c *color.Color, text string) {
	switch status {
	case "passed":
		return IconCheckmark, Green, "пройден"
	case "failed":
		return IconCross, Red, "упал"
	case "broken":
		return IconCross, Yellow, "сломан"
	case "skipped":
		return IconSkip, Gray, "пропущен"
	case "running":
		return IconPlay, Cyan, "выполняется"
	default:
		return IconClock, Yellow, status
	}
}

// Status форматирует статус одной строкой с иконкой
func Status(status string) string {
	icon, c, text := FormatStatus(status)
	return c.Sprintf("%s %s", icon, text)
}

// Check печатает строку проверки: ✓ или ✗ и сообщение
func Check(w io.Writer, ok bool, format string, args ...any) {
	if ok {
		Green.Fprintf(w, "   %s ", IconCheckmark)
	} else {
		Red.Fprintf(w, "   %s ", IconCross)
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Detail печатает вложенную строку с деталями
func Detail(w io.Writer, format string, args ...any) {
	Gray.Fprintf(w, "   - "+format+"\n", args...)
}

// Rule печатает разделитель
func Rule(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
}
