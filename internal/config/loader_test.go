package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browsersMatrixYAML = `
default_browser: firefox_latest
matrix:
  - name: chrome_127
    browserName: chromium
    browserVersion: "127.0"
    headless: false
    viewport:
      width: 1280
      height: 720
  - name: firefox_latest
    browserName: firefox
    remote: true
    remote_url: ws://grid:4444/playwright
`

const browsersLegacyYAML = `
browsers:
  webkit_16:
    browserName: webkit
  chrome_127:
    browserName: chrome
    browserVersion: "127.0"
`

func writeConfig(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
	}
	return dir
}

func TestLoader_LoadCachesFile(t *testing.T) {
	dir := writeConfig(t, map[string]string{"config": "base_url: http://one\n"})
	l := NewLoader(dir, nil)

	first, err := l.Load("config")
	require.NoError(t, err)
	assert.Equal(t, "http://one", first["base_url"])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("base_url: http://two\n"), 0o644))

	cached, err := l.Load("config")
	require.NoError(t, err)
	assert.Equal(t, "http://one", cached["base_url"])

	reloaded, err := l.Reload("config")
	require.NoError(t, err)
	assert.Equal(t, "http://two", reloaded["base_url"])
}

func TestLoader_ClearCache(t *testing.T) {
	dir := writeConfig(t, map[string]string{"config": "a: 1\n"})
	l := NewLoader(dir, nil)

	_, err := l.Load("config")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: 2\n"), 0o644))

	l.ClearCache()
	data, err := l.Load("config")
	require.NoError(t, err)
	assert.Equal(t, 2, data["a"])
}

func TestLoader_MissingFile(t *testing.T) {
	l := NewLoader(t.TempDir(), nil)

	_, err := l.Load("config")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "fallback", l.Get("base_url", "config", "fallback"))
}

func TestLoader_EmptyFile(t *testing.T) {
	dir := writeConfig(t, map[string]string{"config": ""})
	l := NewLoader(dir, nil)

	data, err := l.Load("config")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLoader_Get(t *testing.T) {
	dir := writeConfig(t, map[string]string{
		"config":   "base_url: http://shop\nretries: 3\n",
		"browsers": browsersLegacyYAML,
	})
	l := NewLoader(dir, nil)

	tests := []struct {
		name   string
		key    string
		config string
		def    any
		want   any
	}{
		{"simple key", "base_url", "config", nil, "http://shop"},
		{"int value", "retries", "config", 0, 3},
		{"missing key", "missing", "config", "default_value", "default_value"},
		{"nested key", "browsers.chrome_127.browserName", "browsers", nil, "chrome"},
		{"missing nested key", "browsers.chrome_127.nope", "browsers", "x", "x"},
		{"through scalar", "browsers.chrome_127.browserName.deeper", "browsers", "x", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Get(tt.key, tt.config, tt.def))
		})
	}
}

func TestLoader_DefaultBrowser(t *testing.T) {
	l := NewLoader(writeConfig(t, map[string]string{"browsers": browsersMatrixYAML}), nil)
	assert.Equal(t, "firefox_latest", l.DefaultBrowser())

	l = NewLoader(writeConfig(t, map[string]string{"browsers": browsersLegacyYAML}), nil)
	assert.Equal(t, "chrome_127", l.DefaultBrowser())
}

func TestLoader_Matrix(t *testing.T) {
	l := NewLoader(writeConfig(t, map[string]string{"browsers": browsersMatrixYAML}), nil)

	profiles, err := l.Matrix()
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	chrome := profiles[0]
	assert.Equal(t, "chrome_127", chrome.Name)
	assert.Equal(t, "chromium", chrome.BrowserName)
	assert.Equal(t, "127.0", chrome.BrowserVersion)
	require.NotNil(t, chrome.Headless)
	assert.False(t, *chrome.Headless)
	assert.Equal(t, &Viewport{Width: 1280, Height: 720}, chrome.Viewport)

	firefox := profiles[1]
	assert.True(t, firefox.Remote)
	assert.Equal(t, "ws://grid:4444/playwright", firefox.RemoteURL)
	assert.Nil(t, firefox.Headless)
}

func TestLoader_MatrixLegacyFallback(t *testing.T) {
	l := NewLoader(writeConfig(t, map[string]string{"browsers": browsersLegacyYAML}), nil)

	profiles, err := l.Matrix()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "chrome_127", profiles[0].Name)
	assert.Equal(t, "chrome", profiles[0].BrowserName)
	assert.Equal(t, "webkit_16", profiles[1].Name)
}

func TestLoader_MatrixErrors(t *testing.T) {
	tests := []struct {
		name     string
		browsers string
	}{
		{"empty matrix", "matrix: []\n"},
		{"matrix not a list", "matrix: chrome\n"},
		{"nothing configured", "default_browser: chrome_127\n"},
		{"empty legacy", "browsers: {}\n"},
		{"entry without name", "matrix:\n  - browserName: chromium\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(writeConfig(t, map[string]string{"browsers": tt.browsers}), nil)
			_, err := l.Matrix()
			assert.Error(t, err)
		})
	}
}

func TestLoader_BrowserProfile(t *testing.T) {
	l := NewLoader(writeConfig(t, map[string]string{"browsers": browsersMatrixYAML}), nil)

	p, err := l.BrowserProfile("firefox_latest")
	require.NoError(t, err)
	assert.Equal(t, "firefox", p.BrowserName)

	_, err = l.BrowserProfile("opera")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"opera" not found`)
	assert.Contains(t, err.Error(), "chrome_127, firefox_latest")
}

func TestLoader_BrowserProfileLegacy(t *testing.T) {
	l := NewLoader(writeConfig(t, map[string]string{"browsers": browsersLegacyYAML}), nil)

	p, err := l.BrowserProfile("webkit_16")
	require.NoError(t, err)
	assert.Equal(t, "webkit_16", p.Name)
	assert.Equal(t, "webkit", p.BrowserName)
}

func TestLoader_Settings(t *testing.T) {
	l := NewLoader(writeConfig(t, map[string]string{
		"config": "base_url: http://shop\nretries: 0\nelement_timeout: 2.5\nheadless: true\n",
	}), nil)

	s, err := l.Settings()
	require.NoError(t, err)
	assert.Equal(t, "http://shop", s.BaseURL)
	assert.Equal(t, 0, s.Retries)
	assert.True(t, s.Headless)
	assert.Equal(t, 2500*time.Millisecond, s.ElementTimeoutDuration())
	assert.Equal(t, 10*time.Second, s.DefaultTimeoutDuration())
	assert.Equal(t, 30*time.Second, s.PageLoadTimeoutDuration())
	assert.Equal(t, "en-US", s.Locale)
	assert.Equal(t, 1920, s.BrowserWidth)
	assert.Equal(t, "allure", s.Reporter)
}

func TestLoader_Reporting(t *testing.T) {
	l := NewLoader(writeConfig(t, map[string]string{"reporting": "report_type: junit\n"}), nil)

	r, err := l.Reporting()
	require.NoError(t, err)
	assert.Equal(t, "junit", r.ReportType)
	assert.Equal(t, "reports", r.OutputPath)
	assert.True(t, r.IncludeScreenshots)
}

func TestProjectConfigFiles(t *testing.T) {
	l := NewLoader(filepath.Join("..", "..", "config"), nil)

	profiles, err := l.Matrix()
	require.NoError(t, err)
	assert.NotEmpty(t, profiles)

	_, err = l.BrowserProfile(l.DefaultBrowser())
	require.NoError(t, err)

	s, err := l.Settings()
	require.NoError(t, err)
	assert.NotEmpty(t, s.BaseURL)
}
