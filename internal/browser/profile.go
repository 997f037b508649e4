package browser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/playwright-community/playwright-go"

	"autotest/internal/config"
)

var ErrNoRemoteURL = errors.New("remote execution requested but no remote URL configured (set remote_url, PW_REMOTE_URL or grid_url)")

// BrowserType сопоставляет browserName профиля с типом браузера Playwright.
// Неизвестные имена запускаются в chromium.
func BrowserType(browserName string) string {
	switch strings.ToLower(strings.TrimSpace(browserName)) {
	case "firefox":
		return TypeFirefox
	case "webkit", "safari":
		return TypeWebKit
	default:
		return TypeChromium
	}
}

// Channel возвращает канал сборки для брендированных chromium браузеров.
func Channel(browserName string) string {
	switch strings.ToLower(strings.TrimSpace(browserName)) {
	case "chrome":
		return "chrome"
	case "msedge", "edge":
		return "msedge"
	default:
		return ""
	}
}

// Headless профиль переопределяет общую настройку headless.
func Headless(p config.Profile, s config.Settings) bool {
	if p.Headless != nil {
		return *p.Headless
	}
	return s.Headless
}

// ViewportSize размер окна из профиля, иначе из config.yaml, иначе 1920x1080.
func ViewportSize(p config.Profile, s config.Settings) (int, int) {
	width, height := s.BrowserWidth, s.BrowserHeight
	if p.Viewport != nil {
		width, height = p.Viewport.Width, p.Viewport.Height
	}
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}
	return width, height
}

func LaunchOptions(p config.Profile, s config.Settings) playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(Headless(p, s)),
	}
	if len(p.Args) > 0 {
		opts.Args = p.Args
	}
	if s.SlowMotion > 0 {
		opts.SlowMo = playwright.Float(s.SlowMotion)
	}
	if ch := Channel(p.BrowserName); ch != "" && BrowserType(p.BrowserName) == TypeChromium {
		opts.Channel = playwright.String(ch)
	}
	return opts
}

func ContextOptions(p config.Profile, s config.Settings) playwright.BrowserNewContextOptions {
	width, height := ViewportSize(p, s)

	locale := s.Locale
	if locale == "" {
		locale = "en-US"
	}

	opts := playwright.BrowserNewContextOptions{
		Viewport:        &playwright.Size{Width: width, Height: height},
		Locale:          playwright.String(locale),
		AcceptDownloads: playwright.Bool(true),
	}
	if s.UserAgent != "" {
		opts.UserAgent = playwright.String(s.UserAgent)
	}
	if s.Timezone != "" {
		opts.TimezoneId = playwright.String(s.Timezone)
	}
	if len(s.Permissions) > 0 {
		opts.Permissions = s.Permissions
	}
	return opts
}

// ResolveRemote определяет режим запуска. Приоритет адреса: явный
// Options.RemoteURL, затем профиль (remote: true, remote_url), затем
// PW_REMOTE/PW_REMOTE_URL, затем grid_url из config.yaml.
func ResolveRemote(p config.Profile, s config.Settings, o Options) (bool, string, error) {
	if o.RemoteURL != "" {
		return true, o.RemoteURL, nil
	}

	var remoteURL string
	switch {
	case p.Remote:
		remoteURL = firstNonEmpty(p.RemoteURL, o.EnvRemoteURL, s.GridURL)
	case o.Remote:
		remoteURL = firstNonEmpty(o.EnvRemoteURL, p.RemoteURL, s.GridURL)
	default:
		return false, "", nil
	}

	if remoteURL == "" {
		return true, "", ErrNoRemoteURL
	}
	return true, remoteURL, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Capabilities сопоставляет профиль с capabilities в стиле Selenium Grid/Moon.
func Capabilities(p config.Profile, s config.Settings) map[string]any {
	browserName := p.BrowserName
	if browserName == "" {
		browserName = TypeChromium
	}
	platform := p.PlatformName
	if platform == "" {
		platform = "linux"
	}
	width, height := ViewportSize(p, s)

	caps := map[string]any{
		"browserName":  browserName,
		"platformName": platform,
	}
	if p.BrowserVersion != "" {
		caps["browserVersion"] = p.BrowserVersion
	}

	vendor := map[string]any{
		"screenResolution": fmt.Sprintf("%dx%dx24", width, height),
		"enableVNC":        p.EnableVNC,
		"enableVideo":      p.EnableVideo,
		"name":             p.Name,
	}
	caps["moon:options"] = vendor
	caps["selenoid:options"] = vendor

	pwOpts := map[string]any{"headless": Headless(p, s)}
	if len(p.Args) > 0 {
		pwOpts["args"] = p.Args
	}
	caps["playwright:options"] = pwOpts

	return caps
}

// wsEndpoint переводит http(s) адрес грида в ws(s) для BrowserType.Connect.
func wsEndpoint(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid remote URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid remote URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	return u.String(), nil
}
