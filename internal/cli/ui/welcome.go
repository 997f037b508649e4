package ui

import (
	"fmt"
	"io"
)

// PrintBanner выводит заголовок CLI
func PrintBanner(w io.Writer, version string) {
	Title.Fprintf(w, "%s autotest %s\n", IconGlobe, version)
	Gray.Fprintln(w, "Фреймворк браузерных автотестов на Playwright")
	fmt.Fprintln(w)
}
