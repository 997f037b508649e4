// Package page содержит базовый page object поверх locator.Utility.
package page

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autotest/internal/browser"
	"autotest/internal/config"
	"autotest/internal/locator"
)

var closeButtonSelectors = []string{
	"[role='dialog'] button[aria-label*='close' i]",
	"[role='dialog'] button[aria-label*='закрыть' i]",
	".modal button.close",
	".popup button.close",
	"[data-dismiss='modal']",
	".close-button",
	"button:has-text('×')",
	"button:has-text('✕')",
	"[aria-label='Close']",
	"[aria-label='Закрыть']",
}

var overlaySelectors = []string{
	"[role='dialog']",
	".modal",
	".popup",
	".overlay",
}

var overlayCloseSelectors = []string{
	"button[aria-label*='close' i]",
	"button[aria-label*='закрыть' i]",
	".close",
	"[data-dismiss]",
}

type BasePage struct {
	page        playwright.Page
	loc         *locator.Utility
	log         *zap.Logger
	baseURL     string
	navTimeout  time.Duration
	elemTimeout time.Duration
	// пауза после закрытия попапа, чтобы анимация успела завершиться
	overlayPause time.Duration
}

// New создает page object. Таймауты и base_url берутся из settings,
// opts передаются в locator.Utility (скриншоты, отчет, healer).
func New(page playwright.Page, settings config.Settings, log *zap.Logger, opts ...locator.Option) *BasePage {
	if log == nil {
		log = zap.NewNop()
	}

	navTimeout := settings.PageLoadTimeoutDuration()
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}

	elemTimeout := settings.ElementTimeoutDuration()
	loc := locator.New(page, elemTimeout, log.Named("locator"), opts...)

	log.Debug("BasePage initialized", zap.Duration("elementTimeout", loc.Timeout()))

	return &BasePage{
		page:         page,
		loc:          loc,
		log:          log,
		baseURL:      settings.BaseURL,
		navTimeout:   navTimeout,
		elemTimeout:  loc.Timeout(),
		overlayPause: 500 * time.Millisecond,
	}
}

func (p *BasePage) Page() playwright.Page {
	return p.page
}

func (p *BasePage) Locators() *locator.Utility {
	return p.loc
}

// ResolveURL дополняет относительный путь адресом base_url.
func (p *BasePage) ResolveURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if u.IsAbs() || p.baseURL == "" {
		return target, nil
	}

	base, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base_url %q: %w", p.baseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}

// NavigateTo открывает url и ждет события load.
func (p *BasePage) NavigateTo(ctx context.Context, target string) error {
	full, err := p.ResolveURL(target)
	if err != nil {
		return err
	}
	p.log.Info("Navigating", zap.String("url", full))

	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		_, err := p.page.Goto(full, playwright.PageGotoOptions{
			WaitUntil: browser.WaitUntil("load"),
			Timeout:   playwright.Float(float64(p.navTimeout.Milliseconds())),
		})
		errChan <- err
	}()

	select {
	case <-navCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("navigate timeout after %v: %s", p.navTimeout, full)
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("navigate %s: %w", full, err)
		}
	}

	p.log.Debug("Navigation completed", zap.String("url", full))
	return nil
}

func (p *BasePage) Click(ctx context.Context, locators []locator.Locator, name string) error {
	return p.loc.Click(ctx, locators, name)
}

// Type очищает поле и вводит текст.
func (p *BasePage) Type(ctx context.Context, locators []locator.Locator, text, name string) error {
	return p.loc.Type(ctx, locators, text, name, true)
}

func (p *BasePage) GetText(ctx context.Context, locators []locator.Locator, name string) (string, error) {
	return p.loc.GetText(ctx, locators, name)
}

func (p *BasePage) IsVisible(ctx context.Context, locators []locator.Locator, name string) bool {
	return p.loc.IsVisible(ctx, locators, name)
}

func (p *BasePage) FindElement(ctx context.Context, locators []locator.Locator, name string) (playwright.Locator, error) {
	return p.loc.FindElement(ctx, locators, name)
}

func (p *BasePage) Title() (string, error) {
	return p.page.Title()
}

func (p *BasePage) URL() string {
	return p.page.URL()
}

// WaitForPageLoad ждет события load. Нулевой timeout означает таймаут элемента.
func (p *BasePage) WaitForPageLoad(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.elemTimeout
	}
	if err := browser.WaitForLoadState(p.page, "load", timeout); err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	p.log.Debug("Page load completed")
	return nil
}

// DismissOverlays закрывает видимые модальные окна и попапы.
// Возвращает число выполненных кликов.
func (p *BasePage) DismissOverlays(ctx context.Context) (int, error) {
	selectors := append([]string{}, closeButtonSelectors...)
	for _, overlay := range overlaySelectors {
		for _, button := range overlayCloseSelectors {
			selectors = append(selectors, overlay+" "+button)
		}
	}

	clicked := 0
	clickOpts := playwright.LocatorClickOptions{Timeout: playwright.Float(1000)}

	for _, selector := range selectors {
		if err := ctx.Err(); err != nil {
			return clicked, err
		}

		elements, err := p.page.Locator(selector).All()
		if err != nil {
			continue
		}
		for _, el := range elements {
			if visible, err := el.IsVisible(); err != nil || !visible {
				continue
			}
			if err := el.Click(clickOpts); err == nil {
				clicked++
				p.pause()
			}
		}
	}

	if clicked > 0 {
		p.log.Info("Overlays dismissed", zap.Int("clicks", clicked), zap.String("url", p.page.URL()))
	}
	return clicked, nil
}

func (p *BasePage) pause() {
	if p.overlayPause > 0 {
		time.Sleep(p.overlayPause)
	}
}
