package browser

import (
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// LoadState переводит имя состояния загрузки в значение Playwright.
// Неизвестные имена считаются "load".
func LoadState(state string) *playwright.LoadState {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "domcontentloaded":
		return playwright.LoadStateDomcontentloaded
	case "networkidle":
		return playwright.LoadStateNetworkidle
	default:
		return playwright.LoadStateLoad
	}
}

// WaitUntil аналог LoadState для опций навигации.
func WaitUntil(state string) *playwright.WaitUntilState {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "domcontentloaded":
		return playwright.WaitUntilStateDomcontentloaded
	case "networkidle":
		return playwright.WaitUntilStateNetworkidle
	case "commit":
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateLoad
	}
}

func WaitForLoadState(page playwright.Page, state string, timeout time.Duration) error {
	opts := playwright.PageWaitForLoadStateOptions{State: LoadState(state)}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	return page.WaitForLoadState(opts)
}
