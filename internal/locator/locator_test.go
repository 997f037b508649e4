package locator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pwLocator нужен, чтобы встроенное поле не перекрывало метод Locator().
type pwLocator = playwright.Locator

type fakeLocator struct {
	pwLocator
	selector string
	waitErr  error
	text     string
	clicked  bool
	cleared  bool
	filled   string
}

var _ playwright.Locator = (*fakeLocator)(nil)

func (l *fakeLocator) WaitFor(...playwright.LocatorWaitForOptions) error { return l.waitErr }
func (l *fakeLocator) Click(...playwright.LocatorClickOptions) error     { l.clicked = true; return nil }
func (l *fakeLocator) Clear(...playwright.LocatorClearOptions) error     { l.cleared = true; return nil }
func (l *fakeLocator) Fill(v string, _ ...playwright.LocatorFillOptions) error {
	l.filled = v
	return nil
}
func (l *fakeLocator) InnerText(...playwright.LocatorInnerTextOptions) (string, error) {
	return l.text, nil
}
func (l *fakeLocator) IsVisible(...playwright.LocatorIsVisibleOptions) (bool, error) {
	return l.waitErr == nil, nil
}

// fakePage отдает видимые элементы только для селекторов из visible.
type fakePage struct {
	playwright.Page
	visible     map[string]*fakeLocator
	requested   []string
	screenshots []string
}

func newFakePage(visible ...string) *fakePage {
	p := &fakePage{visible: map[string]*fakeLocator{}}
	for _, s := range visible {
		p.visible[s] = &fakeLocator{selector: s, text: "text of " + s}
	}
	return p
}

func (p *fakePage) get(selector string) playwright.Locator {
	p.requested = append(p.requested, selector)
	if l, ok := p.visible[selector]; ok {
		return l
	}
	return &fakeLocator{selector: selector, waitErr: fmt.Errorf("waiting for %s: %w", selector, playwright.ErrTimeout)}
}

func (p *fakePage) Locator(s string, _ ...playwright.PageLocatorOptions) playwright.Locator {
	return p.get(s)
}
func (p *fakePage) GetByText(t interface{}, _ ...playwright.PageGetByTextOptions) playwright.Locator {
	return p.get("text:" + t.(string))
}
func (p *fakePage) GetByRole(r playwright.AriaRole, _ ...playwright.PageGetByRoleOptions) playwright.Locator {
	return p.get("role:" + string(r))
}
func (p *fakePage) GetByTestId(id interface{}) playwright.Locator {
	return p.get("testid:" + id.(string))
}
func (p *fakePage) GetByPlaceholder(t interface{}, _ ...playwright.PageGetByPlaceholderOptions) playwright.Locator {
	return p.get("placeholder:" + t.(string))
}
func (p *fakePage) GetByLabel(t interface{}, _ ...playwright.PageGetByLabelOptions) playwright.Locator {
	return p.get("label:" + t.(string))
}
func (p *fakePage) Content() (string, error) { return "<html></html>", nil }
func (p *fakePage) Screenshot(opts ...playwright.PageScreenshotOptions) ([]byte, error) {
	if len(opts) > 0 && opts[0].Path != nil {
		p.screenshots = append(p.screenshots, *opts[0].Path)
	}
	return nil, nil
}

type fakeAttacher struct {
	testID, name, path string
}

func (a *fakeAttacher) AttachScreenshot(testID, name, path string) error {
	a.testID, a.name, a.path = testID, name, path
	return nil
}

type fakeHealer struct {
	suggestions []Locator
	failed      []Locator
}

func (h *fakeHealer) Suggest(_ context.Context, _ string, failed []Locator, _ string) ([]Locator, error) {
	h.failed = failed
	return h.suggestions, nil
}

func TestFindElement_ResolvesEveryType(t *testing.T) {
	tests := []struct {
		loc      Locator
		selector string
	}{
		{XPath("//button[@id='go']"), "xpath=//button[@id='go']"},
		{CSS("#go"), "#go"},
		{ID("go"), "#go"},
		{Text("Go"), "text:Go"},
		{Role("button"), "role:button"},
		{TestID("go-btn"), "testid:go-btn"},
		{Locator{Type: "placeholder", Value: "Email"}, "placeholder:Email"},
		{Locator{Type: "label", Value: "Email"}, "label:Email"},
		{Locator{Type: "XPATH", Value: "//a"}, "xpath=//a"},
		{CSS("a:contains('Login')"), "a:has-text('Login')"},
	}

	for _, tt := range tests {
		t.Run(tt.loc.String(), func(t *testing.T) {
			page := newFakePage(tt.selector)
			u := New(page, time.Second, nil)

			el, err := u.FindElement(context.Background(), []Locator{tt.loc}, "Button")
			require.NoError(t, err)
			assert.Equal(t, tt.selector, el.(*fakeLocator).selector)
		})
	}
}

func TestFindElement_FallsBackInOrder(t *testing.T) {
	page := newFakePage("#submit")
	u := New(page, time.Second, nil)

	el, err := u.FindElement(context.Background(), []Locator{
		XPath("//button[@type='submit']"),
		CSS("#submit"),
		Text("Submit"),
	}, "Submit Button")

	require.NoError(t, err)
	assert.Equal(t, "#submit", el.(*fakeLocator).selector)
	assert.Equal(t, []string{"xpath=//button[@type='submit']", "#submit"}, page.requested)
}

func TestFindElement_AllFail(t *testing.T) {
	dir := t.TempDir()
	page := newFakePage()
	attacher := &fakeAttacher{}
	u := New(page, time.Second, nil, WithScreenshotDir(dir), WithAttacher(attacher, "TestLogin/chrome_127"))

	_, err := u.FindElement(context.Background(), []Locator{
		XPath("//a"),
		{Type: "css", Value: ""},
		{Type: "magic", Value: "x"},
		CSS("https://example.com"),
	}, "Login Link")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Login Link: All 4 locator(s) failed:\n"+
		"  1. XPATH: //a - Element not visible within timeout\n"+
		"  2. CSS: https://example.com - селектор не может быть URL, для перехода используй NavigateTo. Получен URL: https://example.com",
		err.Error())

	require.Len(t, page.screenshots, 1)
	assert.Equal(t, dir, filepath.Dir(nf.Screenshot))
	assert.True(t, strings.HasPrefix(filepath.Base(nf.Screenshot), "Login_Link_not_found_"))
	assert.Equal(t, nf.Screenshot, attacher.path)
	assert.Equal(t, "TestLogin/chrome_127", attacher.testID)
}

func TestFindElement_NoLocators(t *testing.T) {
	u := New(newFakePage(), time.Second, nil)

	_, err := u.FindElement(context.Background(), nil, "Cart")
	require.Error(t, err)
	assert.Equal(t, "Cart: No locators provided", err.Error())
}

func TestFindElement_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := New(newFakePage("#a"), time.Second, nil)
	_, err := u.FindElement(ctx, []Locator{CSS("#a")}, "A")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFindElement_Healer(t *testing.T) {
	page := newFakePage("[data-qa='buy']")
	healer := &fakeHealer{suggestions: []Locator{{Type: "CSS", Value: "[data-qa='buy']"}}}
	u := New(page, time.Second, nil, WithHealer(healer))

	el, err := u.FindElement(context.Background(), []Locator{ID("buy"), {Type: "nope", Value: "x"}}, "Buy")
	require.NoError(t, err)
	assert.Equal(t, "[data-qa='buy']", el.(*fakeLocator).selector)
	assert.Equal(t, []Locator{ID("buy")}, healer.failed)
}

func TestActions(t *testing.T) {
	page := newFakePage("#email", "#msg")
	u := New(page, 0, nil)
	ctx := context.Background()

	assert.Equal(t, DefaultTimeout, u.Timeout())

	require.NoError(t, u.Type(ctx, []Locator{ID("email")}, "qa@example.com", "Email", true))
	email := page.visible["#email"]
	assert.True(t, email.cleared)
	assert.Equal(t, "qa@example.com", email.filled)

	require.NoError(t, u.Click(ctx, []Locator{ID("email")}, "Email"))
	assert.True(t, email.clicked)

	text, err := u.GetText(ctx, []Locator{CSS("#msg")}, "Message")
	require.NoError(t, err)
	assert.Equal(t, "text of #msg", text)

	assert.True(t, u.IsVisible(ctx, []Locator{ID("msg")}, "Message"))
	assert.False(t, u.IsVisible(ctx, []Locator{ID("missing")}, "Missing"))
	assert.Empty(t, page.screenshots)
}

func TestType_WithoutClear(t *testing.T) {
	page := newFakePage("#q")
	u := New(page, time.Second, nil)

	require.NoError(t, u.Type(context.Background(), []Locator{ID("q")}, "shoes", "Search", false))
	assert.False(t, page.visible["#q"].cleared)
	assert.Equal(t, "shoes", page.visible["#q"].filled)
}
