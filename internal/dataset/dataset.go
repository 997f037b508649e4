// Package dataset загружает тестовые данные из YAML, JSON и CSV файлов
// и приводит их к списку кейсов для data-driven тестов.
package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// rootKeys ключи верхнего уровня, под которыми может лежать список кейсов.
var rootKeys = []string{"tests", "data", "cases", "test_cases", "rows"}

var supportedFormats = []string{".csv", ".json", ".yaml", ".yml"}

// Error ошибка загрузки или разбора файла данных.
type Error struct {
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Loader struct {
	root string
	log  *zap.Logger
}

// NewLoader создает загрузчик, разрешающий относительные пути от root,
// если файл не найден относительно рабочего каталога.
func NewLoader(root string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{root: root, log: log}
}

// Load загружает файл по пути как есть. Формат определяется по расширению.
func (l *Loader) Load(path string) ([]Case, error) {
	name := filepath.Base(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			abs, _ := filepath.Abs(path)
			return nil, &Error{Path: path, Msg: "data file not found: " + abs, Err: err}
		}
		return nil, &Error{Path: path, Msg: "read failed", Err: err}
	}

	ext := strings.ToLower(filepath.Ext(path))
	l.log.Debug("Loading test data", zap.String("path", path), zap.String("format", ext))

	var cases []Case
	switch ext {
	case ".yaml", ".yml":
		cases, err = l.parseYAML(name, raw)
	case ".json":
		cases, err = l.parseJSON(name, raw)
	case ".csv":
		cases, err = parseCSV(name, raw)
	default:
		return nil, &Error{
			Path: path,
			Msg:  fmt.Sprintf("unsupported file format %q, supported: %s", ext, strings.Join(supportedFormats, ", ")),
		}
	}
	if err != nil {
		var dErr *Error
		if errors.As(err, &dErr) {
			dErr.Path = path
			return nil, dErr
		}
		return nil, &Error{Path: path, Msg: fmt.Sprintf("error loading %s file %s", ext, name), Err: err}
	}

	if len(cases) == 0 {
		return nil, &Error{Path: path, Msg: "empty dataset, expected non-empty list of test cases"}
	}

	l.log.Info("Loaded test data", zap.String("file", name), zap.Int("cases", len(cases)))
	return cases, nil
}

// LoadTestData разрешает относительный путь сначала от рабочего каталога,
// затем от корня проекта, и загружает файл.
func (l *Loader) LoadTestData(path string) ([]Case, error) {
	return l.Load(l.resolve(path))
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if l.root == "" {
		return path
	}
	return filepath.Join(l.root, path)
}

// LoadTestData загружает данные, используя корень проекта из AUTOTEST_ROOT
// или ближайший каталог с go.mod.
func LoadTestData(path string) ([]Case, error) {
	return NewLoader(ProjectRoot(), nil).LoadTestData(path)
}

// ProjectRoot возвращает AUTOTEST_ROOT, если задан, иначе поднимается от
// рабочего каталога до первого каталога с go.mod.
func ProjectRoot() string {
	if root := os.Getenv("AUTOTEST_ROOT"); root != "" {
		return root
	}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (l *Loader) parseYAML(name string, raw []byte) ([]Case, error) {
	var content any
	if err := yaml.Unmarshal(raw, &content); err != nil {
		return nil, err
	}
	if content == nil {
		return nil, &Error{Msg: "YAML file is empty"}
	}
	return l.normalize(name, "YAML", stringKeys(content))
}

func (l *Loader) parseJSON(name string, raw []byte) ([]Case, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var content any
	if err := dec.Decode(&content); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &Error{Msg: fmt.Sprintf("invalid JSON in %s: unexpected data after top-level value", name), Err: err}
	}
	return l.normalize(name, "JSON", content)
}

// stringKeys рекурсивно приводит ключи YAML маппингов к строкам:
// yaml.v3 отдает map[any]any, если хотя бы один ключ не строка.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}

func (l *Loader) normalize(name, format string, content any) ([]Case, error) {
	switch v := content.(type) {
	case []any:
		return toCases(v)
	case map[string]any:
		for _, key := range rootKeys {
			if list, ok := v[key].([]any); ok {
				return toCases(list)
			}
		}
		l.log.Warn("No recognized root key, treating entire document as single test case",
			zap.String("file", name), zap.String("format", format))
		return []Case{v}, nil
	default:
		return nil, &Error{Msg: fmt.Sprintf("invalid %s structure in %s, expected list or map, got %T", format, name, content)}
	}
}

func toCases(list []any) ([]Case, error) {
	cases := make([]Case, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &Error{Msg: fmt.Sprintf("test case %d is %T, expected map", i, item)}
		}
		cases = append(cases, m)
	}
	return cases, nil
}

func parseCSV(name string, raw []byte) ([]Case, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &Error{Msg: fmt.Sprintf("CSV file %s has no header row", name)}
	}
	if err != nil {
		return nil, err
	}

	var cases []Case
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		c := make(Case, len(header))
		for i, key := range header {
			if i < len(record) {
				c[key] = record[i]
			} else {
				c[key] = ""
			}
		}
		cases = append(cases, c)
	}

	if len(cases) == 0 {
		return nil, &Error{Msg: fmt.Sprintf("CSV file %s has no data rows (only headers)", name)}
	}
	return cases, nil
}

// Case один набор входных данных теста.
type Case map[string]any

func (c Case) String(key string) string {
	switch v := c[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int возвращает числовое значение ключа. Строки из CSV разбираются как числа.
func (c Case) Int(key string) (int, error) {
	switch v := c[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	case nil:
		return 0, fmt.Errorf("key %q not found", key)
	default:
		return 0, fmt.Errorf("key %q is %T, not a number", key, v)
	}
}

func (c Case) Bool(key string) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// ID строит имя подтеста из значений keys. Без keys используются все
// ключи кейса в алфавитном порядке.
func (c Case) ID(keys ...string) string {
	if len(keys) == 0 {
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := c.String(k); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "case"
	}
	return strings.Join(parts, "-")
}
