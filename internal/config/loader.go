package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const defaultBrowserProfile = "chrome_127"

// ErrNotFound возвращается, когда файл конфигурации отсутствует.
var ErrNotFound = errors.New("configuration file not found")

// Loader загружает YAML файлы из каталога конфигурации и кэширует их по имени.
// Безопасен для конкурентного использования.
type Loader struct {
	dir   string
	log   *zap.Logger
	mu    sync.RWMutex
	cache map[string]map[string]any
}

func NewLoader(dir string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("ConfigLoader initialized", zap.String("dir", dir))
	return &Loader{
		dir:   dir,
		log:   log,
		cache: make(map[string]map[string]any),
	}
}

var (
	defaultLoader     *Loader
	defaultLoaderOnce sync.Once
)

// Default возвращает общий для процесса загрузчик, настроенный из окружения.
func Default() *Loader {
	defaultLoaderOnce.Do(func() {
		dir := env("AUTOTEST_CONFIG_DIR", "config")
		defaultLoader = NewLoader(dir, nil)
	})
	return defaultLoader
}

func (l *Loader) Dir() string {
	return l.dir
}

func (l *Loader) readFile(name string) (map[string]any, error) {
	path := filepath.Join(l.dir, name+".yaml")

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Error("Configuration file not found", zap.String("path", path))
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	data := map[string]any{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		l.log.Error("Error parsing YAML file", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// Load возвращает содержимое <name>.yaml, используя кэш.
func (l *Loader) Load(name string) (map[string]any, error) {
	l.mu.RLock()
	if data, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return data, nil
	}
	l.mu.RUnlock()

	data, err := l.readFile(name)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.cache[name]; ok {
		return cached, nil
	}
	l.cache[name] = data
	l.log.Info("Configuration loaded and cached", zap.String("name", name))
	return data, nil
}

func (l *Loader) All(name string) (map[string]any, error) {
	return l.Load(name)
}

// Get ищет значение по ключу, поддерживая вложенные ключи через точку
// (например "browsers.chrome_127.browserName"). При отсутствии ключа или
// ошибке загрузки возвращает def.
func (l *Loader) Get(key, name string, def any) any {
	data, err := l.Load(name)
	if err != nil {
		l.log.Error("Error getting key, returning default",
			zap.String("key", key), zap.String("config", name), zap.Error(err))
		return def
	}

	var value any = data
	for _, part := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			l.log.Warn("Key not found, returning default", zap.String("key", key), zap.String("config", name))
			return def
		}
		value, ok = m[part]
		if !ok {
			l.log.Warn("Key not found, returning default", zap.String("key", key), zap.String("config", name))
			return def
		}
	}
	return value
}

// GetString удобная обертка над Get для строковых значений.
func (l *Loader) GetString(key, name, def string) string {
	if v, ok := l.Get(key, name, def).(string); ok {
		return v
	}
	return def
}

// Reload сбрасывает кэш для name и загружает файл заново.
func (l *Loader) Reload(name string) (map[string]any, error) {
	l.mu.Lock()
	if _, ok := l.cache[name]; ok {
		l.log.Info("Clearing cache for configuration", zap.String("name", name))
		delete(l.cache, name)
	}
	l.mu.Unlock()
	return l.Load(name)
}

func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]map[string]any)
	l.log.Info("Configuration cache cleared")
}

// DefaultBrowser возвращает имя профиля браузера по умолчанию из browsers.yaml.
func (l *Loader) DefaultBrowser() string {
	return l.GetString("default_browser", "browsers", defaultBrowserProfile)
}

// BrowserProfile ищет профиль по имени сначала в секции matrix,
// затем в устаревшей секции browsers.
func (l *Loader) BrowserProfile(name string) (Profile, error) {
	data, err := l.Load("browsers")
	if err != nil {
		return Profile{}, err
	}

	var available []string

	if rawMatrix, ok := data["matrix"].([]any); ok {
		for _, entry := range rawMatrix {
			var p Profile
			if err := decode(entry, &p); err != nil {
				return Profile{}, fmt.Errorf("invalid matrix entry: %w", err)
			}
			if p.Name == name {
				return p, nil
			}
			available = append(available, p.Name)
		}
	}

	if legacy, ok := data["browsers"].(map[string]any); ok {
		if entry, ok := legacy[name]; ok {
			var p Profile
			if err := decode(entry, &p); err != nil {
				return Profile{}, fmt.Errorf("invalid browser profile %q: %w", name, err)
			}
			p.Name = name
			return p, nil
		}
		for key := range legacy {
			available = append(available, key)
		}
	}

	if available == nil {
		l.log.Error("Neither 'matrix' nor 'browsers' found in browsers.yaml")
		return Profile{}, errors.New("invalid browsers configuration structure")
	}

	sort.Strings(available)
	l.log.Error("Browser profile not found",
		zap.String("profile", name), zap.Strings("available", available))
	return Profile{}, fmt.Errorf("browser profile %q not found. Available: %s",
		name, strings.Join(available, ", "))
}

// Matrix возвращает список профилей браузерной матрицы. Если секции matrix нет,
// профили берутся из устаревшей секции browsers в порядке сортировки имен.
func (l *Loader) Matrix() ([]Profile, error) {
	data, err := l.Load("browsers")
	if err != nil {
		return nil, err
	}

	rawMatrix, ok := data["matrix"]
	if !ok {
		l.log.Warn("No 'matrix' section found in browsers.yaml, falling back to legacy browsers section")
		return l.legacyMatrix(data)
	}

	entries, ok := rawMatrix.([]any)
	if !ok || len(entries) == 0 {
		return nil, errors.New("browser matrix must be a non-empty list")
	}

	profiles := make([]Profile, 0, len(entries))
	for i, entry := range entries {
		var p Profile
		if err := decode(entry, &p); err != nil {
			return nil, fmt.Errorf("invalid matrix entry %d: %w", i, err)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("matrix entry %d has no name", i)
		}
		profiles = append(profiles, p)
	}

	l.log.Info("Loaded browser matrix", zap.Int("profiles", len(profiles)))
	return profiles, nil
}

func (l *Loader) legacyMatrix(data map[string]any) ([]Profile, error) {
	raw, ok := data["browsers"]
	if !ok {
		return nil, errors.New("invalid browsers configuration: missing both 'matrix' and 'browsers'")
	}
	legacy, ok := raw.(map[string]any)
	if !ok || len(legacy) == 0 {
		return nil, errors.New("invalid legacy browsers configuration")
	}

	names := make([]string, 0, len(legacy))
	for name := range legacy {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]Profile, 0, len(names))
	for _, name := range names {
		var p Profile
		if err := decode(legacy[name], &p); err != nil {
			return nil, fmt.Errorf("invalid browser profile %q: %w", name, err)
		}
		p.Name = name
		profiles = append(profiles, p)
	}

	l.log.Info("Converted legacy browser profiles to matrix format", zap.Int("profiles", len(profiles)))
	return profiles, nil
}

// Settings возвращает типизированное представление config.yaml
// с примененными значениями по умолчанию.
func (l *Loader) Settings() (Settings, error) {
	s := DefaultSettings()
	data, err := l.Load("config")
	if err != nil {
		return s, err
	}
	if err := decode(data, &s); err != nil {
		return s, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return s, nil
}

// Reporting возвращает содержимое reporting.yaml с значениями по умолчанию.
func (l *Loader) Reporting() (ReportingSettings, error) {
	r := ReportingSettings{
		ReportType:         "allure",
		OutputPath:         "reports",
		IncludeScreenshots: true,
	}
	data, err := l.Load("reporting")
	if err != nil {
		return r, err
	}
	if err := decode(data, &r); err != nil {
		return r, fmt.Errorf("invalid reporting.yaml: %w", err)
	}
	return r, nil
}

// decode переносит значение, разобранное в map, в типизированную структуру.
func decode(in any, out any) error {
	raw, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}
