package reporting

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	img := imaging.New(width, height, color.NRGBA{R: 200, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

func readResults(t *testing.T, dir, suffix string) []map[string]any {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	require.NoError(t, err)

	var out []map[string]any
	for _, m := range matches {
		raw, err := os.ReadFile(m)
		require.NoError(t, err)
		var v map[string]any
		require.NoError(t, json.Unmarshal(raw, &v))
		out = append(out, v)
	}
	return out
}

func labelValue(result map[string]any, name string) string {
	for _, l := range result["labels"].([]any) {
		lm := l.(map[string]any)
		if lm["name"] == name {
			return lm["value"].(string)
		}
	}
	return ""
}

func TestAllureReporter_WritesResult(t *testing.T) {
	dir := t.TempDir()
	r, err := NewAllureReporter(dir, nil, WithScreenshotMaxWidth(100), WithLabel("env", "ci"))
	require.NoError(t, err)

	id := "TestLogin/chrome_127"
	r.StartTest(TestInfo{ID: id, Browser: "chrome_127"})
	r.LogStep(id, "Open login page")
	require.NoError(t, r.AttachScreenshot(id, "failure", writePNG(t, 400, 200)))
	require.NoError(t, r.AttachText(id, "Remote Capabilities", `{"browserName":"chromium"}`))
	require.NoError(t, r.AttachException(id, "Error", errors.New("boom")))
	require.NoError(t, r.FinishTest(id, StatusFailed, "element not found"))

	results := readResults(t, dir, "-result.json")
	require.Len(t, results, 1)
	res := results[0]

	assert.Equal(t, id, res["fullName"])
	assert.Equal(t, "failed", res["status"])
	assert.Equal(t, "finished", res["stage"])
	assert.Equal(t, "element not found", res["statusDetails"].(map[string]any)["message"])
	assert.Equal(t, "TestLogin", labelValue(res, "suite"))
	assert.Equal(t, "chrome_127", labelValue(res, "browser"))
	assert.Equal(t, "ci", labelValue(res, "env"))
	assert.Equal(t, "playwright-go", labelValue(res, "framework"))

	steps := res["steps"].([]any)
	require.Len(t, steps, 1)
	assert.Equal(t, "Open login page", steps[0].(map[string]any)["name"])

	attachments := res["attachments"].([]any)
	require.Len(t, attachments, 3)
	shot := attachments[0].(map[string]any)
	assert.Equal(t, "image/png", shot["type"])

	img, err := imaging.Open(filepath.Join(dir, shot["source"].(string)))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	exc, err := os.ReadFile(filepath.Join(dir, attachments[2].(map[string]any)["source"].(string)))
	require.NoError(t, err)
	assert.Contains(t, string(exc), "boom")
}

func TestAllureReporter_SessionEventsAndClose(t *testing.T) {
	dir := t.TempDir()
	r, err := NewAllureReporter(dir, nil)
	require.NoError(t, err)

	r.LogStep("", "Session started")
	r.StartTest(TestInfo{ID: "TestA"})
	r.StartTest(TestInfo{ID: "TestB"})
	require.NoError(t, r.FinishTest("TestA", StatusPassed, ""))

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	results := readResults(t, dir, "-result.json")
	require.Len(t, results, 2)
	statuses := map[string]string{}
	for _, res := range results {
		statuses[res["fullName"].(string)] = res["status"].(string)
	}
	assert.Equal(t, map[string]string{"TestA": "passed", "TestB": "broken"}, statuses)

	containers := readResults(t, dir, "-container.json")
	require.Len(t, containers, 1)
	assert.Len(t, containers[0]["children"], 2)
	befores := containers[0]["befores"].([]any)
	require.Len(t, befores, 1)
}

func TestAllureReporter_Errors(t *testing.T) {
	r, err := NewAllureReporter(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Error(t, r.FinishTest("never-started", StatusPassed, ""))
	assert.Error(t, r.AttachScreenshot("", "missing", filepath.Join(t.TempDir(), "none.png")))
	assert.NoError(t, r.AttachException("", "nil", nil))
}

func TestJUnitReporter(t *testing.T) {
	dir := t.TempDir()
	r, err := NewJUnitReporter(dir, nil)
	require.NoError(t, err)

	r.LogStep("", "session note")
	r.StartTest(TestInfo{ID: "TestLogin/chrome_127", Browser: "chrome_127"})
	r.StartTest(TestInfo{ID: "TestLogin/firefox_latest", Browser: "firefox_latest"})
	r.StartTest(TestInfo{ID: "TestSearch/chrome_127"})
	r.StartTest(TestInfo{ID: "TestCart"})

	r.LogStep("TestLogin/chrome_127", "Click login")
	require.NoError(t, r.AttachScreenshot("TestLogin/firefox_latest", "failure", writePNG(t, 10, 10)))
	require.NoError(t, r.FinishTest("TestLogin/chrome_127", StatusPassed, ""))
	require.NoError(t, r.FinishTest("TestLogin/firefox_latest", StatusFailed, "Login Button: All 2 locator(s) failed:\n  1. ..."))
	require.NoError(t, r.FinishTest("TestSearch/chrome_127", StatusSkipped, "no grid"))
	assert.Error(t, r.FinishTest("TestUnknown", StatusPassed, ""))

	require.NoError(t, r.Close())

	raw, err := os.ReadFile(r.FilePath())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<?xml"))

	var doc jUnitXMLDocument
	require.NoError(t, xml.Unmarshal(raw, &doc))
	require.Len(t, doc.Suites, 3)

	login := doc.Suites[0]
	assert.Equal(t, "TestLogin", login.Name)
	assert.Equal(t, 2, login.Tests)
	assert.Equal(t, 1, login.Failures)
	assert.Equal(t, "STEP: session note", login.SystemOut)
	assert.Equal(t, "TestLogin.chrome_127", login.TestCases[0].Classname)
	assert.Equal(t, "STEP: Click login", login.TestCases[0].SystemOut)
	require.NotNil(t, login.TestCases[1].Failure)
	assert.Equal(t, "Login Button: All 2 locator(s) failed:", login.TestCases[1].Failure.Message)
	assert.Contains(t, login.TestCases[1].SystemOut, "[[ATTACHMENT|")

	assert.Equal(t, 1, doc.Suites[1].Skipped)
	assert.Equal(t, 1, doc.Suites[2].Errors)
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(nil)

	assert.False(t, m.IsInitialized())
	_, err := m.Reporter()
	assert.ErrorIs(t, err, ErrNotInitialized)

	m.LogInfo("", "dropped")
	m.AttachRemoteCapabilities("", map[string]any{"a": 1})
	assert.NoError(t, m.AttachScreenshot("", "x", "missing.png"))

	err = m.Init("extent", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported reporter type: extent")
	assert.False(t, m.IsInitialized())

	dir := t.TempDir()
	require.NoError(t, m.Init("Allure", dir))
	assert.True(t, m.IsInitialized())
	assert.Equal(t, TypeAllure, m.Kind())

	first, err := m.Reporter()
	require.NoError(t, err)
	require.NoError(t, m.Init("junit", t.TempDir()))
	second, err := m.Reporter()
	require.NoError(t, err)
	assert.Same(t, first, second)

	m.Reset()
	assert.False(t, m.IsInitialized())
	require.NoError(t, m.Init("junit", dir))
	assert.Equal(t, TypeJUnit, m.Kind())

	require.NoError(t, m.Close())
	assert.False(t, m.IsInitialized())
	assert.FileExists(t, filepath.Join(dir, "junit.xml"))
	assert.NoError(t, m.Close())
}

func TestManager_AttachRemoteCapabilities(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(nil)
	require.NoError(t, m.Init(TypeAllure, dir))

	m.StartTest(TestInfo{ID: "TestRemote"})
	m.AttachRemoteCapabilities("TestRemote", map[string]any{
		"browserName": "chromium",
		"moon:options": map[string]any{"enableVNC": true},
	})
	m.LogInfo("TestRemote", "Connected to grid")
	m.FinishTest("TestRemote", StatusPassed, "")
	require.NoError(t, m.Close())

	results := readResults(t, dir, "-result.json")
	require.Len(t, results, 1)
	attachments := results[0]["attachments"].([]any)
	require.Len(t, attachments, 1)
	a := attachments[0].(map[string]any)
	assert.Equal(t, "Remote Capabilities", a["name"])

	raw, err := os.ReadFile(filepath.Join(dir, a["source"].(string)))
	require.NoError(t, err)
	var caps map[string]any
	require.NoError(t, json.Unmarshal(raw, &caps))
	assert.Equal(t, "chromium", caps["browserName"])
}
