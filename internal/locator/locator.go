// Package locator ищет элементы на странице по списку кандидатов
// (xpath, css, id, text, role и др.), пробуя их по очереди до первого видимого.
package locator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	TypeXPath       = "xpath"
	TypeCSS         = "css"
	TypeID          = "id"
	TypeText        = "text"
	TypeRole        = "role"
	TypeTestID      = "testid"
	TypePlaceholder = "placeholder"
	TypeLabel       = "label"
)

const DefaultTimeout = 5 * time.Second

// Locator один кандидат поиска элемента.
type Locator struct {
	Type  string `yaml:"type" json:"type"`
	Value string `yaml:"value" json:"value"`
}

func XPath(v string) Locator  { return Locator{Type: TypeXPath, Value: v} }
func CSS(v string) Locator    { return Locator{Type: TypeCSS, Value: v} }
func ID(v string) Locator     { return Locator{Type: TypeID, Value: v} }
func Text(v string) Locator   { return Locator{Type: TypeText, Value: v} }
func Role(v string) Locator   { return Locator{Type: TypeRole, Value: v} }
func TestID(v string) Locator { return Locator{Type: TypeTestID, Value: v} }

func (l Locator) String() string {
	return strings.ToUpper(l.Type) + ": " + l.Value
}

var errUnknownType = errors.New("unknown locator type")

// Attempt неудачная попытка поиска по одному кандидату.
type Attempt struct {
	Locator Locator
	Reason  string
}

// NotFoundError возвращается, когда ни один кандидат не дал видимый элемент.
type NotFoundError struct {
	Name       string
	Total      int
	Attempts   []Attempt
	Screenshot string
}

func (e *NotFoundError) Error() string {
	if e.Total == 0 {
		return e.Name + ": No locators provided"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: All %d locator(s) failed:", e.Name, e.Total)
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %d. %s - %s", i+1, a.Locator, a.Reason)
	}
	return b.String()
}

// Attacher принимает скриншоты неудачного поиска. Реализуется reporting.Manager.
type Attacher interface {
	AttachScreenshot(testID, name, path string) error
}

// Healer предлагает дополнительные кандидаты, когда все исходные не сработали.
type Healer interface {
	Suggest(ctx context.Context, name string, failed []Locator, html string) ([]Locator, error)
}

type Option func(*Utility)

// WithScreenshotDir включает скриншоты страницы при неудачном поиске.
func WithScreenshotDir(dir string) Option {
	return func(u *Utility) { u.screenshotDir = dir }
}

// WithAttacher прикрепляет скриншоты к отчету теста testID.
func WithAttacher(a Attacher, testID string) Option {
	return func(u *Utility) {
		u.attacher = a
		u.testID = testID
	}
}

func WithHealer(h Healer) Option {
	return func(u *Utility) { u.healer = h }
}

type Utility struct {
	page          playwright.Page
	timeout       time.Duration
	log           *zap.Logger
	screenshotDir string
	attacher      Attacher
	testID        string
	healer        Healer
	now           func() time.Time
}

func New(page playwright.Page, timeout time.Duration, log *zap.Logger, opts ...Option) *Utility {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	u := &Utility{
		page:    page,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Utility) Timeout() time.Duration {
	return u.timeout
}

// FindElement возвращает первый видимый элемент из списка кандидатов.
// Пустые значения и неизвестные типы пропускаются.
func (u *Utility) FindElement(ctx context.Context, locators []Locator, name string) (playwright.Locator, error) {
	return u.find(ctx, locators, name, true)
}

func (u *Utility) find(ctx context.Context, locators []Locator, name string, artifacts bool) (playwright.Locator, error) {
	if name == "" {
		name = "Element"
	}
	if len(locators) == 0 {
		return nil, &NotFoundError{Name: name}
	}

	total := len(locators)
	var attempts []Attempt
	var tried []Locator

	for i, candidate := range locators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := fmt.Sprintf("%d/%d", i+1, total)
		candidate.Type = strings.ToLower(strings.TrimSpace(candidate.Type))

		if candidate.Value == "" {
			u.log.Warn("Empty locator value, skipping", zap.String("element", name), zap.String("locator", idx))
			continue
		}

		el, err := u.try(candidate)
		if errors.Is(err, errUnknownType) {
			u.log.Warn("Unknown locator type, skipping",
				zap.String("element", name), zap.String("locator", idx), zap.String("type", candidate.Type))
			continue
		}
		tried = append(tried, candidate)

		if err == nil {
			u.log.Info("Element found",
				zap.String("element", name), zap.String("locator", idx), zap.Stringer("candidate", candidate))
			return el, nil
		}

		reason := failureReason(err)
		u.log.Debug("Locator failed",
			zap.String("element", name), zap.String("locator", idx),
			zap.Stringer("candidate", candidate), zap.String("reason", reason))
		attempts = append(attempts, Attempt{Locator: candidate, Reason: reason})
	}

	if artifacts && u.healer != nil && len(tried) > 0 {
		if el := u.heal(ctx, name, tried); el != nil {
			return el, nil
		}
	}

	nf := &NotFoundError{Name: name, Total: total, Attempts: attempts}
	if artifacts {
		nf.Screenshot = u.failureScreenshot(name)
	}
	u.log.Error("Element not found", zap.String("element", name), zap.String("summary", nf.Error()))
	return nil, nf
}

func (u *Utility) resolve(l Locator) (playwright.Locator, error) {
	switch l.Type {
	case TypeXPath:
		return u.page.Locator("xpath=" + l.Value), nil
	case TypeCSS:
		selector, changed := NormalizeSelector(l.Value)
		if changed {
			u.log.Debug("CSS selector normalized", zap.String("from", l.Value), zap.String("to", selector))
		}
		if err := ValidateSelector(selector); err != nil {
			return nil, err
		}
		return u.page.Locator(selector), nil
	case TypeID:
		return u.page.Locator("#" + l.Value), nil
	case TypeText:
		return u.page.GetByText(l.Value), nil
	case TypeRole:
		return u.page.GetByRole(playwright.AriaRole(l.Value)), nil
	case TypeTestID:
		return u.page.GetByTestId(l.Value), nil
	case TypePlaceholder:
		return u.page.GetByPlaceholder(l.Value), nil
	case TypeLabel:
		return u.page.GetByLabel(l.Value), nil
	default:
		return nil, errUnknownType
	}
}

func (u *Utility) try(l Locator) (playwright.Locator, error) {
	el, err := u.resolve(l)
	if err != nil {
		return nil, err
	}

	err = el.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(u.timeout.Milliseconds())),
	})
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (u *Utility) heal(ctx context.Context, name string, failed []Locator) playwright.Locator {
	html, err := u.page.Content()
	if err != nil {
		u.log.Warn("Cannot read page content for healing", zap.String("element", name), zap.Error(err))
		return nil
	}

	suggestions, err := u.healer.Suggest(ctx, name, failed, html)
	if err != nil {
		u.log.Warn("Locator healing failed", zap.String("element", name), zap.Error(err))
		return nil
	}

	for _, s := range suggestions {
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		if s.Value == "" {
			continue
		}
		el, err := u.try(s)
		if err != nil {
			u.log.Debug("Healed locator failed", zap.String("element", name),
				zap.Stringer("candidate", s), zap.String("reason", failureReason(err)))
			continue
		}
		u.log.Warn("Element found by healed locator, update the page object",
			zap.String("element", name), zap.Stringer("candidate", s))
		return el
	}
	return nil
}

func failureReason(err error) string {
	if errors.Is(err, playwright.ErrTimeout) {
		return "Element not visible within timeout"
	}
	return err.Error()
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func (u *Utility) failureScreenshot(name string) string {
	if u.screenshotDir == "" {
		return ""
	}
	if err := os.MkdirAll(u.screenshotDir, 0o755); err != nil {
		u.log.Warn("Cannot create screenshot dir", zap.String("dir", u.screenshotDir), zap.Error(err))
		return ""
	}

	file := fmt.Sprintf("%s_not_found_%s.png",
		strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_"),
		u.now().Format("20060102_150405.000"))
	path := filepath.Join(u.screenshotDir, file)

	if _, err := u.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		u.log.Warn("Failed to capture screenshot", zap.String("element", name), zap.Error(err))
		return ""
	}

	if u.attacher != nil {
		if err := u.attacher.AttachScreenshot(u.testID, name+" not found", path); err != nil {
			u.log.Warn("Failed to attach screenshot", zap.String("path", path), zap.Error(err))
		}
	}
	return path
}

func (u *Utility) Click(ctx context.Context, locators []Locator, name string) error {
	el, err := u.FindElement(ctx, locators, name)
	if err != nil {
		return err
	}
	u.log.Debug("Clicking element", zap.String("element", name))
	if err := el.Click(); err != nil {
		return fmt.Errorf("%s: click: %w", name, err)
	}
	u.log.Info("Clicked successfully", zap.String("element", name))
	return nil
}

// Type вводит текст в элемент, предварительно очищая поле, если clearFirst.
func (u *Utility) Type(ctx context.Context, locators []Locator, text, name string, clearFirst bool) error {
	el, err := u.FindElement(ctx, locators, name)
	if err != nil {
		return err
	}
	u.log.Debug("Typing text", zap.String("element", name), zap.Int("length", len(text)))

	if clearFirst {
		if err := el.Clear(); err != nil {
			return fmt.Errorf("%s: clear: %w", name, err)
		}
	}
	if err := el.Fill(text); err != nil {
		return fmt.Errorf("%s: fill: %w", name, err)
	}
	u.log.Info("Text entered successfully", zap.String("element", name))
	return nil
}

func (u *Utility) GetText(ctx context.Context, locators []Locator, name string) (string, error) {
	el, err := u.FindElement(ctx, locators, name)
	if err != nil {
		return "", err
	}
	text, err := el.InnerText()
	if err != nil {
		return "", fmt.Errorf("%s: inner text: %w", name, err)
	}
	u.log.Debug("Retrieved text", zap.String("element", name), zap.String("text", text))
	return text, nil
}

// IsVisible возвращает false при любой ошибке поиска. Скриншот не снимается.
func (u *Utility) IsVisible(ctx context.Context, locators []Locator, name string) bool {
	el, err := u.find(ctx, locators, name, false)
	if err != nil {
		return false
	}
	visible, err := el.IsVisible()
	return err == nil && visible
}
