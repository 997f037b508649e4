package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	TypeAllure = "allure"
	TypeJUnit  = "junit"
)

var ErrNotInitialized = errors.New("ReportingManager not initialized, call Init during test session setup")

type options struct {
	screenshotMaxWidth int
	labels             map[string]string
}

type Option func(*options)

// WithScreenshotMaxWidth уменьшает прикладываемые скриншоты до ширины w.
func WithScreenshotMaxWidth(w int) Option {
	return func(o *options) { o.screenshotMaxWidth = w }
}

// WithLabel добавляет метку ко всем тестам отчета.
func WithLabel(name, value string) Option {
	return func(o *options) {
		if o.labels == nil {
			o.labels = map[string]string{}
		}
		o.labels[name] = value
	}
}

func collectOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Manager фасад над активным Reporter. Методы Log*, Attach* и *Test
// безопасны до инициализации: события просто не попадают в отчет.
type Manager struct {
	log      *zap.Logger
	mu       sync.RWMutex
	reporter Reporter
	kind     string
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log}
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default возвращает общий для процесса менеджер отчетов.
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager(nil)
	})
	return defaultManager
}

// SetLogger заменяет логгер менеджера.
func (m *Manager) SetLogger(log *zap.Logger) {
	if log == nil {
		return
	}
	m.mu.Lock()
	m.log = log
	m.mu.Unlock()
}

// Init создает reporter указанного типа с результатами в dir.
// Повторный вызов после успешной инициализации ничего не делает.
func (m *Manager) Init(kind, dir string, opts ...Option) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reporter != nil {
		m.log.Debug("ReportingManager already initialized, skipping", zap.String("type", m.kind))
		return nil
	}

	kind = strings.ToLower(strings.TrimSpace(kind))
	var (
		r   Reporter
		err error
	)
	switch kind {
	case TypeAllure:
		r, err = NewAllureReporter(dir, m.log.Named("allure"), opts...)
	case TypeJUnit:
		r, err = NewJUnitReporter(dir, m.log.Named("junit"), opts...)
	default:
		return fmt.Errorf("unsupported reporter type: %s, currently supported: %s, %s", kind, TypeAllure, TypeJUnit)
	}
	if err != nil {
		m.log.Error("Failed to initialize reporter", zap.String("type", kind), zap.Error(err))
		return err
	}

	m.reporter = r
	m.kind = kind
	m.log.Info("ReportingManager initialized", zap.String("type", kind), zap.String("dir", dir))
	return nil
}

func (m *Manager) Reporter() (Reporter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.reporter == nil {
		return nil, ErrNotInitialized
	}
	return m.reporter, nil
}

func (m *Manager) Kind() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kind
}

// Reset отвязывает текущий reporter без записи результатов.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporter = nil
	m.kind = ""
	m.log.Debug("ReportingManager reset")
}

func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reporter != nil
}

func (m *Manager) active() Reporter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reporter
}

func (m *Manager) StartTest(info TestInfo) {
	if r := m.active(); r != nil {
		r.StartTest(info)
	}
}

func (m *Manager) FinishTest(testID string, status Status, message string) {
	r := m.active()
	if r == nil {
		return
	}
	if err := r.FinishTest(testID, status, message); err != nil {
		m.log.Warn("Could not finish test in report", zap.String("test", testID), zap.Error(err))
	}
}

// LogInfo записывает шаг в отчет. Ошибки не пробрасываются.
func (m *Manager) LogInfo(testID, message string) {
	r := m.active()
	if r == nil {
		m.log.Debug("Could not log to reporter", zap.String("message", message))
		return
	}
	r.LogStep(testID, message)
}

func (m *Manager) AttachScreenshot(testID, name, path string) error {
	r := m.active()
	if r == nil {
		return nil
	}
	if err := r.AttachScreenshot(testID, name, path); err != nil {
		m.log.Warn("Could not attach screenshot", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) AttachText(testID, name, content string) {
	r := m.active()
	if r == nil {
		return
	}
	if err := r.AttachText(testID, name, content); err != nil {
		m.log.Debug("Could not attach text", zap.String("name", name), zap.Error(err))
	}
}

func (m *Manager) AttachException(testID, name string, err error) {
	r := m.active()
	if r == nil || err == nil {
		return
	}
	if aErr := r.AttachException(testID, name, err); aErr != nil {
		m.log.Debug("Could not attach exception", zap.String("name", name), zap.Error(aErr))
	}
}

// AttachRemoteCapabilities прикладывает capabilities удаленного браузера как JSON.
func (m *Manager) AttachRemoteCapabilities(testID string, caps map[string]any) {
	r := m.active()
	if r == nil {
		return
	}
	raw, err := json.MarshalIndent(caps, "", "  ")
	if err != nil {
		m.log.Debug("Could not attach remote capabilities", zap.Error(err))
		return
	}
	if err := r.AttachText(testID, "Remote Capabilities", string(raw)); err != nil {
		m.log.Debug("Could not attach remote capabilities", zap.Error(err))
	}
}

// Close записывает отчет и отвязывает reporter.
func (m *Manager) Close() error {
	m.mu.Lock()
	r := m.reporter
	m.reporter = nil
	m.kind = ""
	m.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.Close()
}
