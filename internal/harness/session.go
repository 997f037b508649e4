// Package harness связывает фабрику браузеров, page object, отчеты и историю
// запусков в жизненный цикл go test: сессия, матрица браузеров и
// data-driven подтесты.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autotest/internal/browser"
	"autotest/internal/config"
	"autotest/internal/database"
	"autotest/internal/dataset"
	"autotest/internal/healer"
	"autotest/internal/locator"
	"autotest/internal/logger"
	"autotest/internal/migrations"
	"autotest/internal/reporting"
)

// RunStore сохраняет историю запусков. Реализуется database.RunRepository.
type RunStore interface {
	CreateRun(run *database.TestRun) error
	AddResult(res *database.TestResult) error
	FinishRun(id uint) (*database.TestRun, error)
}

// Driver браузер одного теста. Реализуется *browser.Factory.
type Driver interface {
	Driver(ctx context.Context) (playwright.Page, error)
	Quit() error
	IsRemote() bool
	RemoteURL() string
	Capabilities() map[string]any
}

// Options настройки Setup. Пустые поля заполняются из окружения.
type Options struct {
	Cfg     *config.Cfg
	Loader  *config.Loader
	Log     *zap.Logger
	Reports *reporting.Manager
	Store   RunStore
	Healer  locator.Healer
}

type Session struct {
	ID       string
	cfg      *config.Cfg
	loader   *config.Loader
	settings config.Settings
	profiles []config.Profile
	data     *dataset.Loader

	runDir         string
	screenshotsDir string

	reports *reporting.Manager
	store   RunStore
	db      *database.Database
	run     *database.TestRun
	healer  locator.Healer
	log     *zap.Logger

	newDriver func(config.Profile, config.Settings, browser.Options, *zap.Logger) (Driver, error)

	closeOnce sync.Once
	closeErr  error
}

// Setup готовит сессию: каталог отчетов с меткой времени, reporter из
// config.yaml (allure при ошибке), историю запусков при настроенной БД.
func Setup(opts Options) (*Session, error) {
	cfg := opts.Cfg
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, fmt.Errorf("load env config: %w", err)
		}
	}

	log := opts.Log
	if log == nil {
		lz, err := logger.New(cfg.Logger.Env, cfg.Logger.Level)
		if err != nil {
			return nil, err
		}
		log = lz.Logger
	}

	root := dataset.ProjectRoot()
	loader := opts.Loader
	if loader == nil {
		loader = config.NewLoader(rootPath(root, cfg.Framework.ConfigDir), log.Named("config"))
	}

	settings, err := loader.Settings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	profiles, err := loader.Matrix()
	if err != nil {
		return nil, fmt.Errorf("load browser matrix: %w", err)
	}

	runDir := filepath.Join(rootPath(root, cfg.Framework.ReportsDir), time.Now().Format("20060102_150405"))
	resultsDir := filepath.Join(runDir, "allure-results")
	screenshotsDir := filepath.Join(runDir, "screenshots")
	for _, dir := range []string{resultsDir, screenshotsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create reports dir: %w", err)
		}
	}

	s := &Session{
		ID:             uuid.NewString(),
		cfg:            cfg,
		loader:         loader,
		settings:       settings,
		profiles:       profiles,
		data:           dataset.NewLoader(root, log.Named("dataset")),
		runDir:         runDir,
		screenshotsDir: screenshotsDir,
		reports:        opts.Reports,
		store:          opts.Store,
		healer:         opts.Healer,
		log:            log.Named("harness"),
		newDriver:      newFactory,
	}
	if s.reports == nil {
		s.reports = reporting.Default()
		s.reports.SetLogger(log.Named("reporting"))
	}

	s.initReporter()
	s.initHealer()
	s.initStore()

	s.log.Info("Reports directory", zap.String("dir", runDir),
		zap.String("reporter", s.reports.Kind()), zap.Int("profiles", len(profiles)))
	return s, nil
}

func (s *Session) initReporter() {
	kind := strings.ToLower(s.settings.Reporter)
	if kind == "" {
		kind = reporting.TypeAllure
	}
	opts := []reporting.Option{
		reporting.WithScreenshotMaxWidth(s.settings.ScreenshotMaxWidth),
		reporting.WithLabel("run", s.ID),
	}

	if err := s.reports.Init(kind, s.reportDir(kind), opts...); err != nil {
		s.log.Warn("Failed to initialize reporter, falling back to Allure",
			zap.String("type", kind), zap.Error(err))
		if err := s.reports.Init(reporting.TypeAllure, s.reportDir(reporting.TypeAllure), opts...); err != nil {
			s.log.Error("Reporting disabled", zap.Error(err))
		}
	}
}

func (s *Session) reportDir(kind string) string {
	if kind == reporting.TypeAllure {
		return filepath.Join(s.runDir, "allure-results")
	}
	return s.runDir
}

func (s *Session) initHealer() {
	if s.healer != nil || !s.cfg.Framework.Healing {
		return
	}
	h, err := healer.New(s.cfg.OpenAI, s.log.Named("healer"))
	if err != nil {
		s.log.Warn("Locator healing disabled", zap.Error(err))
		return
	}
	s.healer = h
}

func (s *Session) initStore() {
	if s.store == nil && s.cfg.Database.Enabled() {
		if err := migrations.Run(s.cfg, s.log.Named("migrations")); err != nil {
			s.log.Warn("Run history disabled: migrations failed", zap.Error(err))
			return
		}
		db, err := database.New(s.cfg.Database, s.log.Named("db"))
		if err != nil {
			s.log.Warn("Run history disabled", zap.Error(err))
			return
		}
		s.db = db
		s.store = database.NewRunRepository(db.DB)
	}
	if s.store == nil {
		return
	}

	run := &database.TestRun{
		RunUUID:    s.ID,
		Reporter:   s.reports.Kind(),
		ReportsDir: s.runDir,
	}
	if err := s.store.CreateRun(run); err != nil {
		s.log.Warn("Could not create test run record", zap.Error(err))
		return
	}
	s.run = run
}

func (s *Session) Settings() config.Settings   { return s.settings }
func (s *Session) Profiles() []config.Profile  { return s.profiles }
func (s *Session) Loader() *config.Loader      { return s.loader }
func (s *Session) Reports() *reporting.Manager { return s.reports }
func (s *Session) RunDir() string              { return s.runDir }
func (s *Session) ScreenshotsDir() string      { return s.screenshotsDir }
func (s *Session) Run() *database.TestRun      { return s.run }

// LoadData читает файл тестовых данных относительно корня проекта.
func (s *Session) LoadData(path string) ([]dataset.Case, error) {
	return s.data.LoadTestData(path)
}

// Close записывает отчет и закрывает запись о запуске. Повторные вызовы
// возвращают результат первого.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.reports.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reporter: %w", err))
		}

		if s.store != nil && s.run != nil {
			run, err := s.store.FinishRun(s.run.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("finish run: %w", err))
			} else {
				s.run = run
				s.log.Info("Test run finished",
					zap.String("status", run.Status),
					zap.Int("total", run.Total),
					zap.Int("passed", run.Passed),
					zap.Int("failed", run.Failed+run.Broken))
			}
		}
		if s.db != nil {
			s.db.Close(s.log)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func rootPath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
