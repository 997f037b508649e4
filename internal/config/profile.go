package config

import "time"

// Profile описывает один браузер из browsers.yaml.
type Profile struct {
	Name           string    `yaml:"name" json:"name"`
	BrowserName    string    `yaml:"browserName" json:"browserName"`
	BrowserVersion string    `yaml:"browserVersion,omitempty" json:"browserVersion,omitempty"`
	PlatformName   string    `yaml:"platformName,omitempty" json:"platformName,omitempty"`
	Headless       *bool     `yaml:"headless,omitempty" json:"headless,omitempty"`
	Args           []string  `yaml:"args,omitempty" json:"args,omitempty"`
	Viewport       *Viewport `yaml:"viewport,omitempty" json:"viewport,omitempty"`
	Remote         bool      `yaml:"remote,omitempty" json:"remote,omitempty"`
	RemoteURL      string    `yaml:"remote_url,omitempty" json:"remote_url,omitempty"`
	// Connect выбирает протокол удаленного подключения: "ws" (Playwright server,
	// по умолчанию) или "cdp".
	Connect     string `yaml:"connect,omitempty" json:"connect,omitempty"`
	EnableVNC   bool   `yaml:"enableVNC,omitempty" json:"enableVNC,omitempty"`
	EnableVideo bool   `yaml:"enableVideo,omitempty" json:"enableVideo,omitempty"`
}

type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Settings типизированное представление config.yaml. Таймауты заданы в секундах.
type Settings struct {
	BaseURL            string   `yaml:"base_url"`
	Headless           bool     `yaml:"headless"`
	SlowMotion         float64  `yaml:"slow_motion"`
	BrowserWidth       int      `yaml:"browser_width"`
	BrowserHeight      int      `yaml:"browser_height"`
	UserAgent          string   `yaml:"user_agent"`
	Locale             string   `yaml:"locale"`
	Timezone           string   `yaml:"timezone"`
	Permissions        []string `yaml:"permissions"`
	DefaultTimeout     float64  `yaml:"default_timeout"`
	PageLoadTimeout    float64  `yaml:"page_load_timeout"`
	ElementTimeout     float64  `yaml:"element_timeout"`
	Retries            int      `yaml:"retries"`
	RetryDelay         float64  `yaml:"retry_delay"`
	GridURL            string   `yaml:"grid_url"`
	Reporter           string   `yaml:"reporter"`
	ScreenshotMaxWidth int      `yaml:"screenshot_max_width"`
}

func DefaultSettings() Settings {
	return Settings{
		BrowserWidth:    1920,
		BrowserHeight:   1080,
		Locale:          "en-US",
		DefaultTimeout:  10,
		PageLoadTimeout: 30,
		ElementTimeout:  5,
		Retries:         2,
		RetryDelay:      1,
		Reporter:        "allure",
	}
}

func (s Settings) DefaultTimeoutDuration() time.Duration {
	return seconds(s.DefaultTimeout)
}

func (s Settings) PageLoadTimeoutDuration() time.Duration {
	return seconds(s.PageLoadTimeout)
}

func (s Settings) ElementTimeoutDuration() time.Duration {
	return seconds(s.ElementTimeout)
}

func (s Settings) RetryDelayDuration() time.Duration {
	return seconds(s.RetryDelay)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ReportingSettings содержимое reporting.yaml.
type ReportingSettings struct {
	ReportType         string `yaml:"report_type"`
	OutputPath         string `yaml:"output_path"`
	IncludeScreenshots bool   `yaml:"include_screenshots"`
}
