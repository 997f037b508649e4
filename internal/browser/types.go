package browser

import (
	"github.com/playwright-community/playwright-go"

	"autotest/internal/retry"
)

const (
	TypeChromium = "chromium"
	TypeFirefox  = "firefox"
	TypeWebKit   = "webkit"
)

const (
	ConnectWS  = "ws"
	ConnectCDP = "cdp"
)

// Options настройки фабрики, не входящие в профиль браузера.
type Options struct {
	// RemoteURL явный адрес грида для теста. Имеет наивысший приоритет.
	RemoteURL string
	// Remote и EnvRemoteURL приходят из PW_REMOTE и PW_REMOTE_URL.
	Remote       bool
	EnvRemoteURL string
	// Breakers общий пул circuit breaker'ов по адресу грида.
	// По умолчанию используется retry.Grids().
	Breakers *retry.BreakerPool
}

// runtime запущенный драйвер Playwright. Выделен для подмены в тестах.
type runtime interface {
	BrowserType(name string) playwright.BrowserType
	Stop() error
}

type playwrightRuntime struct {
	pw *playwright.Playwright
}

func startPlaywright() (runtime, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}
	return &playwrightRuntime{pw: pw}, nil
}

func (r *playwrightRuntime) BrowserType(name string) playwright.BrowserType {
	switch name {
	case TypeFirefox:
		return r.pw.Firefox
	case TypeWebKit:
		return r.pw.WebKit
	default:
		return r.pw.Chromium
	}
}

func (r *playwrightRuntime) Stop() error {
	return r.pw.Stop()
}
