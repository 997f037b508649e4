// Package browser создает браузер, контекст и страницу Playwright по профилю
// из browsers.yaml, локально или на удаленном гриде.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autotest/internal/config"
	"autotest/internal/retry"
)

// CapabilitiesHeader заголовок, в котором грид получает capabilities сессии.
const CapabilitiesHeader = "x-capabilities"

// Factory владеет одним набором браузер/контекст/страница.
// Не предназначена для совместного использования несколькими тестами.
type Factory struct {
	profile   config.Profile
	settings  config.Settings
	remote    bool
	remoteURL string
	breakers  *retry.BreakerPool
	log       *zap.Logger
	start     func() (runtime, error)

	mu      sync.RWMutex
	rt      runtime
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func NewFactory(profile config.Profile, settings config.Settings, opts Options, log *zap.Logger) (*Factory, error) {
	if log == nil {
		log = zap.NewNop()
	}

	remote, remoteURL, err := ResolveRemote(profile, settings, opts)
	if err != nil {
		return nil, err
	}

	breakers := opts.Breakers
	if breakers == nil {
		breakers = retry.Grids()
	}

	f := &Factory{
		profile:   profile,
		settings:  settings,
		remote:    remote,
		remoteURL: remoteURL,
		breakers:  breakers,
		log:       log.With(zap.String("browser", profile.Name)),
		start:     startPlaywright,
	}
	f.log.Info("DriverFactory initialized",
		zap.String("browserName", profile.BrowserName),
		zap.Bool("remote", remote),
		zap.String("remoteURL", remoteURL))
	return f, nil
}

func (f *Factory) Profile() config.Profile {
	return f.profile
}

func (f *Factory) IsRemote() bool {
	return f.remote
}

func (f *Factory) RemoteURL() string {
	return f.remoteURL
}

// GridState состояние circuit breaker'а удаленного грида. Для локального
// запуска всегда StateClosed.
func (f *Factory) GridState() retry.CircuitState {
	if !f.remote {
		return retry.StateClosed
	}
	return f.breakers.GetBreaker(f.remoteURL).GetState()
}

func (f *Factory) Capabilities() map[string]any {
	return Capabilities(f.profile, f.settings)
}

// Driver возвращает готовую страницу. Создание повторяется retries раз
// с паузой retry_delay, частично созданные ресурсы освобождаются после
// каждой неудачи. Повторный вызов возвращает уже созданную страницу.
func (f *Factory) Driver(ctx context.Context) (playwright.Page, error) {
	if page := f.Page(); page != nil {
		return page, nil
	}

	retries := f.settings.Retries
	if retries < 0 {
		retries = 0
	}

	onRetry := func(attempt int, err error) {
		f.log.Info("Retrying driver creation", zap.Int("attempt", attempt), zap.Int("retries", retries))
	}

	err := retry.Do(ctx, retries+1, f.settings.RetryDelayDuration(), onRetry, func(attempt int) error {
		err := f.createGuarded()
		if err != nil {
			f.log.Error("Driver creation failed", zap.Int("attempt", attempt), zap.Error(err))
			f.cleanup()
			return err
		}
		f.log.Info("Driver created successfully", zap.Int("attempt", attempt))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create driver %s: %w", f.profile.Name, err)
	}
	return f.Page(), nil
}

// createGuarded пропускает удаленное создание через circuit breaker грида.
func (f *Factory) createGuarded() error {
	if !f.remote {
		return f.create()
	}
	return f.breakers.GetBreaker(f.remoteURL).Call(f.create)
}

func (f *Factory) create() error {
	rt, err := f.start()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	f.mu.Lock()
	f.rt = rt
	f.mu.Unlock()

	bt := rt.BrowserType(BrowserType(f.profile.BrowserName))

	var browser playwright.Browser
	if f.remote {
		browser, err = f.connect(bt)
	} else {
		f.log.Info("Creating local browser instance")
		browser, err = bt.Launch(LaunchOptions(f.profile, f.settings))
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.browser = browser
	f.mu.Unlock()

	bctx, err := browser.NewContext(ContextOptions(f.profile, f.settings))
	if err != nil {
		return fmt.Errorf("new context: %w", err)
	}
	f.mu.Lock()
	f.context = bctx
	f.mu.Unlock()

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("new page: %w", err)
	}

	page.SetDefaultTimeout(float64(f.settings.DefaultTimeoutDuration().Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(f.settings.PageLoadTimeoutDuration().Milliseconds()))

	f.mu.Lock()
	f.page = page
	f.mu.Unlock()
	return nil
}

func (f *Factory) connect(bt playwright.BrowserType) (playwright.Browser, error) {
	caps, err := json.Marshal(f.Capabilities())
	if err != nil {
		return nil, fmt.Errorf("marshal capabilities: %w", err)
	}
	headers := map[string]string{CapabilitiesHeader: string(caps)}
	timeout := playwright.Float(float64(f.settings.PageLoadTimeoutDuration().Milliseconds()))

	var slowMo *float64
	if f.settings.SlowMotion > 0 {
		slowMo = playwright.Float(f.settings.SlowMotion)
	}

	f.log.Info("Connecting to remote Grid/Moon",
		zap.String("url", f.remoteURL), zap.String("protocol", f.connectProtocol()))

	if f.connectProtocol() == ConnectCDP {
		return bt.ConnectOverCDP(f.remoteURL, playwright.BrowserTypeConnectOverCDPOptions{
			Headers: headers,
			SlowMo:  slowMo,
			Timeout: timeout,
		})
	}

	endpoint, err := wsEndpoint(f.remoteURL)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return bt.Connect(endpoint, playwright.BrowserTypeConnectOptions{
		Headers: headers,
		SlowMo:  slowMo,
		Timeout: timeout,
	})
}

func (f *Factory) connectProtocol() string {
	if f.profile.Connect == ConnectCDP {
		return ConnectCDP
	}
	return ConnectWS
}

func (f *Factory) cleanup() error {
	f.mu.Lock()
	page, bctx, browser, rt := f.page, f.context, f.browser, f.rt
	f.page, f.context, f.browser, f.rt = nil, nil, nil, nil
	f.mu.Unlock()

	var errs []error
	if page != nil {
		if err := page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if bctx != nil {
		if err := bctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	if browser != nil {
		if err := browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if rt != nil {
		if err := rt.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		f.log.Warn("Error during cleanup", zap.Error(err))
	}
	return err
}

// Quit закрывает страницу, контекст, браузер и драйвер Playwright.
func (f *Factory) Quit() error {
	f.log.Info("Quitting driver")
	if err := f.cleanup(); err != nil {
		return err
	}
	f.log.Info("Driver quit successfully")
	return nil
}

func (f *Factory) Page() playwright.Page {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.page
}

func (f *Factory) Browser() playwright.Browser {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.browser
}

func (f *Factory) Context() playwright.BrowserContext {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.context
}
