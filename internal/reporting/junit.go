package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const junitFile = "junit.xml"

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName    xml.Name           `xml:"testsuite"`
	Tests      int                `xml:"tests,attr"`
	Failures   int                `xml:"failures,attr"`
	Errors     int                `xml:"errors,attr"`
	Skipped    int                `xml:"skipped,attr"`
	Time       string             `xml:"time,attr"`
	Name       string             `xml:"name,attr"`
	Properties []jUnitXMLProperty `xml:"properties>property,omitempty"`
	TestCases  []jUnitXMLTestCase `xml:"testcase"`
	SystemOut  string             `xml:"system-out,omitempty"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	Time        string               `xml:"time,attr"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
	Error       *jUnitXMLFailure     `xml:"error,omitempty"`
	SystemOut   string               `xml:"system-out,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr,omitempty"`
	Contents string `xml:",chardata"`
}

type jUnitTestStatus struct {
	info      TestInfo
	status    Status
	message   string
	output    []string
	startTime time.Time
	duration  time.Duration
	finished  bool
}

// JUnitReporter собирает результаты в памяти и пишет junit.xml при Close.
// Тесты группируются в testsuite по имени верхнеуровневого теста.
type JUnitReporter struct {
	filePath   string
	properties []jUnitXMLProperty
	log        *zap.Logger
	now        func() time.Time

	lock    sync.Mutex
	testIDs []string // порядок запуска
	tests   map[string]*jUnitTestStatus
	session []string
}

func NewJUnitReporter(dir string, log *zap.Logger, opts ...Option) (*JUnitReporter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create junit dir: %w", err)
	}

	o := collectOptions(opts)
	props := []jUnitXMLProperty{{Name: "framework", Value: allureFramework}}
	for _, k := range sortedKeys(o.labels) {
		props = append(props, jUnitXMLProperty{Name: k, Value: o.labels[k]})
	}

	return &JUnitReporter{
		filePath:   filepath.Join(dir, junitFile),
		properties: props,
		log:        log,
		now:        time.Now,
		tests:      make(map[string]*jUnitTestStatus),
	}, nil
}

func (j *JUnitReporter) FilePath() string {
	return j.filePath
}

func (j *JUnitReporter) StartTest(info TestInfo) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if _, ok := j.tests[info.ID]; !ok {
		j.testIDs = append(j.testIDs, info.ID)
	}
	j.tests[info.ID] = &jUnitTestStatus{info: info, startTime: j.now()}
}

func (j *JUnitReporter) FinishTest(testID string, status Status, message string) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	st, ok := j.tests[testID]
	if !ok {
		return fmt.Errorf("test %q was not started", testID)
	}
	st.status = status
	st.message = message
	st.duration = j.now().Sub(st.startTime)
	st.finished = true
	return nil
}

func (j *JUnitReporter) appendOutput(testID, line string) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if st, ok := j.tests[testID]; ok && !st.finished {
		st.output = append(st.output, line)
		return
	}
	j.session = append(j.session, line)
}

func (j *JUnitReporter) LogStep(testID, message string) {
	j.appendOutput(testID, "STEP: "+message)
}

// AttachScreenshot добавляет ссылку в формате Jenkins JUnit attachments plugin.
func (j *JUnitReporter) AttachScreenshot(testID, name, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("screenshot %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	j.appendOutput(testID, fmt.Sprintf("%s: [[ATTACHMENT|%s]]", name, abs))
	return nil
}

func (j *JUnitReporter) AttachText(testID, name, content string) error {
	j.appendOutput(testID, name+":\n"+content)
	return nil
}

func (j *JUnitReporter) AttachException(testID, name string, err error) error {
	if err == nil {
		return nil
	}
	return j.AttachText(testID, name, describeError(err))
}

func (j *JUnitReporter) Close() error {
	j.lock.Lock()
	defer j.lock.Unlock()

	var doc jUnitXMLDocument
	for _, suiteName := range topLevelIDs(j.testIDs) {
		suite := jUnitXMLTestSuite{
			Name:       suiteName,
			Properties: j.properties,
		}
		var total time.Duration
		for _, id := range j.testIDs {
			if suiteOf(id) != suiteName {
				continue
			}
			st := j.tests[id]
			if !st.finished {
				st.status = StatusBroken
				st.message = "test did not finish"
			}

			suite.Tests++
			total += st.duration

			tc := jUnitXMLTestCase{
				Classname: suiteName,
				Name:      id,
				Time:      jUnitDurationString(st.duration),
				SystemOut: strings.Join(st.output, "\n"),
			}
			if st.info.Browser != "" {
				tc.Classname = suiteName + "." + st.info.Browser
			}
			switch st.status {
			case StatusFailed:
				suite.Failures++
				tc.Failure = &jUnitXMLFailure{Message: firstLine(st.message), Contents: st.message}
			case StatusBroken:
				suite.Errors++
				tc.Error = &jUnitXMLFailure{Message: firstLine(st.message), Contents: st.message}
			case StatusSkipped:
				suite.Skipped++
				tc.SkipMessage = &jUnitXMLSkipMessage{Message: st.message}
			}
			suite.TestCases = append(suite.TestCases, tc)
		}
		suite.Time = jUnitDurationString(total)
		doc.Suites = append(doc.Suites, suite)
	}
	if len(doc.Suites) > 0 && len(j.session) > 0 {
		doc.Suites[0].SystemOut = strings.Join(j.session, "\n")
	}

	raw, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	raw = append([]byte(xml.Header), raw...)
	raw = append(raw, '\n')

	j.log.Info("Writing JUnit report", zap.String("path", j.filePath))
	return os.WriteFile(j.filePath, raw, 0o644)
}

func topLevelIDs(allIDs []string) []string {
	var ret []string
	seen := make(map[string]bool)
	for _, id := range allIDs {
		top := suiteOf(id)
		if !seen[top] {
			ret = append(ret, top)
			seen[top] = true
		}
	}
	return ret
}

func jUnitDurationString(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
