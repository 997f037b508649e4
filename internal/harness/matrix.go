package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autotest/internal/browser"
	"autotest/internal/config"
	"autotest/internal/database"
	"autotest/internal/dataset"
	"autotest/internal/locator"
	"autotest/internal/page"
	"autotest/internal/reporting"
)

type Option func(*matrixOptions)

type matrixOptions struct {
	browser   string
	remoteURL string
	labels    map[string]string
}

// Browser запускает тест только в указанном профиле.
func Browser(name string) Option {
	return func(o *matrixOptions) { o.browser = name }
}

// Remote запускает тест на гриде по адресу url.
func Remote(url string) Option {
	return func(o *matrixOptions) { o.remoteURL = url }
}

// Label добавляет метку к результату теста в отчете.
func Label(name, value string) Option {
	return func(o *matrixOptions) { o.labels[name] = value }
}

func newFactory(p config.Profile, s config.Settings, o browser.Options, log *zap.Logger) (Driver, error) {
	return browser.NewFactory(p, s, o, log)
}

// testCase состояние одного теста в одном профиле.
type testCase struct {
	id      string
	profile config.Profile
	started time.Time
	driver  Driver
	page    playwright.Page
}

// Matrix запускает fn подтестом для каждого профиля браузерной матрицы.
// Подтест называется именем профиля. Browser(name) или PW_BROWSER
// оставляют один профиль.
func (s *Session) Matrix(t *testing.T, name string, fn func(t *testing.T, p *page.BasePage), opts ...Option) {
	t.Helper()

	o := matrixOptions{labels: map[string]string{}}
	for _, opt := range opts {
		opt(&o)
	}

	profiles, err := s.selectProfiles(o.browser)
	if err != nil {
		t.Fatal(err)
	}

	for _, profile := range profiles {
		t.Run(profile.Name, func(t *testing.T) {
			s.runProfile(t, name, profile, o, fn)
		})
	}
}

func (s *Session) selectProfiles(explicit string) ([]config.Profile, error) {
	name := explicit
	if name == "" {
		name = s.cfg.Framework.Browser
	}
	if name == "" {
		return s.profiles, nil
	}

	for _, p := range s.profiles {
		if p.Name == name {
			return []config.Profile{p}, nil
		}
	}
	p, err := s.loader.BrowserProfile(name)
	if err != nil {
		return nil, err
	}
	return []config.Profile{p}, nil
}

func (s *Session) runProfile(t *testing.T, name string, profile config.Profile, o matrixOptions, fn func(*testing.T, *page.BasePage)) {
	ctx := context.Background()
	tc := &testCase{id: t.Name(), profile: profile, started: time.Now()}
	log := s.log.With(zap.String("test", tc.id))

	labels := map[string]string{"browserName": profile.BrowserName}
	for k, v := range o.labels {
		labels[k] = v
	}
	s.reports.StartTest(reporting.TestInfo{ID: tc.id, Name: name, Browser: profile.Name, Labels: labels})

	drv, err := s.newDriver(profile, s.settings, browser.Options{
		RemoteURL:    o.remoteURL,
		Remote:       s.cfg.Framework.Remote,
		EnvRemoteURL: s.cfg.Framework.RemoteURL,
	}, log)
	if err != nil {
		s.finish(tc, reporting.StatusBroken, err.Error(), "")
		t.Fatalf("driver factory for %s: %v", profile.Name, err)
	}
	tc.driver = drv

	pw, err := drv.Driver(ctx)
	if err != nil {
		s.quit(tc)
		s.finish(tc, reporting.StatusBroken, err.Error(), "")
		t.Fatalf("start browser %s: %v", profile.Name, err)
	}
	tc.page = pw

	if drv.IsRemote() {
		s.reports.AttachRemoteCapabilities(tc.id, drv.Capabilities())
	}

	popts := []locator.Option{
		locator.WithScreenshotDir(s.screenshotsDir),
		locator.WithAttacher(s.reports, tc.id),
	}
	if s.healer != nil {
		popts = append(popts, locator.WithHealer(s.healer))
	}
	bp := page.New(pw, s.settings, log.Named("page"), popts...)

	defer func() {
		if r := recover(); r != nil {
			s.teardown(tc, outcome{panicked: fmt.Sprint(r)})
			panic(r)
		}
		s.teardown(tc, outcome{failed: t.Failed(), skipped: t.Skipped()})
	}()

	fn(t, bp)
}

type outcome struct {
	failed   bool
	skipped  bool
	panicked string
}

// teardown снимает скриншот упавшего теста, фиксирует статус и закрывает браузер.
func (s *Session) teardown(tc *testCase, out outcome) {
	status, message := reporting.StatusPassed, ""
	switch {
	case out.panicked != "":
		status, message = reporting.StatusBroken, "panic: "+out.panicked
	case out.failed:
		status, message = reporting.StatusFailed, fmt.Sprintf("test failed in %s", tc.profile.Name)
	case out.skipped:
		status = reporting.StatusSkipped
	}

	screenshot := ""
	if status == reporting.StatusFailed || status == reporting.StatusBroken {
		screenshot = s.failureScreenshot(tc)
	}

	s.quit(tc)
	s.finish(tc, status, message, screenshot)
}

func (s *Session) failureScreenshot(tc *testCase) string {
	if tc.page == nil {
		s.log.Warn("Cannot capture screenshot: page not available", zap.String("test", tc.id))
		return ""
	}

	path := filepath.Join(s.screenshotsDir, fmt.Sprintf("%s_%s.png", safeName(tc.id), time.Now().Format("20060102_150405")))
	if _, err := tc.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		s.log.Error("Failed to capture screenshot", zap.String("test", tc.id), zap.Error(err))
		return ""
	}
	s.log.Info("Screenshot saved", zap.String("path", path))

	_ = s.reports.AttachScreenshot(tc.id, "failure_"+tc.id, path)
	return path
}

func (s *Session) quit(tc *testCase) {
	if tc.driver == nil {
		return
	}
	if err := tc.driver.Quit(); err != nil {
		s.log.Warn("Error closing browser", zap.String("test", tc.id), zap.Error(err))
	}
}

func (s *Session) finish(tc *testCase, status reporting.Status, message, screenshot string) {
	s.reports.FinishTest(tc.id, status, message)

	if s.store == nil || s.run == nil {
		return
	}
	res := &database.TestResult{
		RunID:          s.run.ID,
		TestID:         tc.id,
		Browser:        tc.profile.Name,
		Status:         string(status),
		Message:        message,
		ScreenshotPath: screenshot,
		DurationMs:     time.Since(tc.started).Milliseconds(),
	}
	if err := s.store.AddResult(res); err != nil {
		s.log.Warn("Could not store test result", zap.String("test", tc.id), zap.Error(err))
	}
}

// Each запускает fn подтестом для каждого кейса. Имя подтеста строится
// из значений idKeys (см. dataset.Case.ID).
func Each(t *testing.T, cases []dataset.Case, idKeys []string, fn func(t *testing.T, c dataset.Case)) {
	t.Helper()
	if len(cases) == 0 {
		t.Fatal("no test cases")
	}
	for _, c := range cases {
		t.Run(c.ID(idKeys...), func(t *testing.T) {
			fn(t, c)
		})
	}
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
