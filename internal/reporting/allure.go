package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const allureFramework = "playwright-go"

type allureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type allureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

type allureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

type allureStep struct {
	Name        string             `json:"name"`
	Status      Status             `json:"status"`
	Stage       string             `json:"stage"`
	Start       int64              `json:"start"`
	Stop        int64              `json:"stop"`
	Attachments []allureAttachment `json:"attachments,omitempty"`
}

type allureResult struct {
	UUID          string               `json:"uuid"`
	HistoryID     string               `json:"historyId"`
	TestCaseID    string               `json:"testCaseId"`
	FullName      string               `json:"fullName"`
	Name          string               `json:"name"`
	Status        Status               `json:"status"`
	StatusDetails *allureStatusDetails `json:"statusDetails,omitempty"`
	Stage         string               `json:"stage"`
	Start         int64                `json:"start"`
	Stop          int64                `json:"stop"`
	Labels        []allureLabel        `json:"labels"`
	Steps         []allureStep         `json:"steps,omitempty"`
	Attachments   []allureAttachment   `json:"attachments,omitempty"`
}

type allureFixture struct {
	Name        string             `json:"name"`
	Status      Status             `json:"status"`
	Stage       string             `json:"stage"`
	Start       int64              `json:"start"`
	Stop        int64              `json:"stop"`
	Steps       []allureStep       `json:"steps,omitempty"`
	Attachments []allureAttachment `json:"attachments,omitempty"`
}

type allureContainer struct {
	UUID     string          `json:"uuid"`
	Name     string          `json:"name"`
	Children []string        `json:"children"`
	Befores  []allureFixture `json:"befores,omitempty"`
	Start    int64           `json:"start"`
	Stop     int64           `json:"stop"`
}

// AllureReporter пишет результаты в формате allure-results: по файлу
// <uuid>-result.json на тест и отдельные файлы вложений. События сессии
// (без testID) собираются в <uuid>-container.json при Close.
type AllureReporter struct {
	dir      string
	maxWidth int
	labels   []allureLabel
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	tests    map[string]*allureResult
	children []string
	session  allureFixture
	closed   bool
}

func NewAllureReporter(dir string, log *zap.Logger, opts ...Option) (*AllureReporter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create allure results dir: %w", err)
	}

	o := collectOptions(opts)

	host, _ := os.Hostname()
	labels := []allureLabel{
		{Name: "framework", Value: allureFramework},
		{Name: "language", Value: "go"},
	}
	if host != "" {
		labels = append(labels, allureLabel{Name: "host", Value: host})
	}
	for _, k := range sortedKeys(o.labels) {
		labels = append(labels, allureLabel{Name: k, Value: o.labels[k]})
	}

	r := &AllureReporter{
		dir:      dir,
		maxWidth: o.screenshotMaxWidth,
		labels:   labels,
		log:      log,
		now:      time.Now,
		tests:    make(map[string]*allureResult),
	}
	r.session = allureFixture{Name: "session", Status: StatusPassed, Stage: "finished", Start: millis(r.now())}
	return r, nil
}

func (r *AllureReporter) Dir() string {
	return r.dir
}

func (r *AllureReporter) StartTest(info TestInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := info.Name
	if name == "" {
		name = info.ID
	}

	labels := append([]allureLabel{}, r.labels...)
	labels = append(labels,
		allureLabel{Name: "suite", Value: info.Suite()},
		allureLabel{Name: "parentSuite", Value: "autotest"},
	)
	if info.Browser != "" {
		labels = append(labels, allureLabel{Name: "browser", Value: info.Browser})
	}
	for _, k := range sortedKeys(info.Labels) {
		labels = append(labels, allureLabel{Name: k, Value: info.Labels[k]})
	}

	historyID := uuid.NewMD5(uuid.NameSpaceURL, []byte(info.ID)).String()
	r.tests[info.ID] = &allureResult{
		UUID:       uuid.NewString(),
		HistoryID:  historyID,
		TestCaseID: historyID,
		FullName:   info.ID,
		Name:       name,
		Stage:      "running",
		Start:      millis(r.now()),
		Labels:     labels,
	}
}

func (r *AllureReporter) FinishTest(testID string, status Status, message string) error {
	r.mu.Lock()
	res, ok := r.tests[testID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("test %q was not started", testID)
	}
	delete(r.tests, testID)
	r.children = append(r.children, res.UUID)
	r.mu.Unlock()

	res.Status = status
	res.Stage = "finished"
	res.Stop = millis(r.now())
	if message != "" {
		res.StatusDetails = &allureStatusDetails{Message: message}
	}

	return r.writeJSON(res.UUID+"-result.json", res)
}

func (r *AllureReporter) LogStep(testID, message string) {
	now := millis(r.now())
	step := allureStep{Name: message, Status: StatusPassed, Stage: "finished", Start: now, Stop: now}

	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.tests[testID]; ok {
		res.Steps = append(res.Steps, step)
		return
	}
	r.session.Steps = append(r.session.Steps, step)
}

func (r *AllureReporter) attach(testID string, a allureAttachment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.tests[testID]; ok {
		res.Attachments = append(res.Attachments, a)
		return
	}
	r.session.Attachments = append(r.session.Attachments, a)
}

// AttachScreenshot копирует PNG в каталог результатов. Изображения шире
// заданного лимита уменьшаются с сохранением пропорций.
func (r *AllureReporter) AttachScreenshot(testID, name, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("screenshot %s: %w", path, err)
	}

	source := uuid.NewString() + "-attachment.png"
	dst := filepath.Join(r.dir, source)

	if err := copyScreenshot(path, dst, r.maxWidth); err != nil {
		return err
	}

	r.attach(testID, allureAttachment{Name: name, Source: source, Type: "image/png"})
	return nil
}

func copyScreenshot(src, dst string, maxWidth int) error {
	if maxWidth > 0 {
		img, err := imaging.Open(src)
		if err != nil {
			return fmt.Errorf("open screenshot: %w", err)
		}
		if img.Bounds().Dx() > maxWidth {
			img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
		}
		return imaging.Save(img, dst)
	}

	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, raw, 0o644)
}

func (r *AllureReporter) AttachText(testID, name, content string) error {
	source := uuid.NewString() + "-attachment.txt"
	if err := os.WriteFile(filepath.Join(r.dir, source), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}
	r.attach(testID, allureAttachment{Name: name, Source: source, Type: "text/plain"})
	return nil
}

func (r *AllureReporter) AttachException(testID, name string, err error) error {
	if err == nil {
		return nil
	}
	return r.AttachText(testID, name, describeError(err))
}

// Close записывает контейнер сессии и незавершенные тесты как broken.
func (r *AllureReporter) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var pending []string
	for id := range r.tests {
		pending = append(pending, id)
	}
	r.mu.Unlock()

	var errs []error
	sort.Strings(pending)
	for _, id := range pending {
		if err := r.FinishTest(id, StatusBroken, "test did not finish"); err != nil {
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	stop := millis(r.now())
	r.session.Stop = stop
	container := allureContainer{
		UUID:     uuid.NewString(),
		Name:     "autotest session",
		Children: r.children,
		Start:    r.session.Start,
		Stop:     stop,
	}
	if len(r.session.Steps) > 0 || len(r.session.Attachments) > 0 {
		container.Befores = []allureFixture{r.session}
	}
	r.mu.Unlock()

	if err := r.writeJSON(container.UUID+"-container.json", container); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *AllureReporter) writeJSON(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(r.dir, name), raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	r.log.Debug("Allure file written", zap.String("file", name))
	return nil
}

func describeError(err error) string {
	return fmt.Sprintf("%T: %+v", err, err)
}
