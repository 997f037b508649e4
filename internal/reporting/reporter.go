// Package reporting скрывает конкретную систему отчетов (Allure, JUnit)
// за интерфейсом Reporter и фасадом Manager.
package reporting

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusBroken  Status = "broken"
	StatusSkipped Status = "skipped"
)

// TestInfo описывает тест при старте. ID обычно t.Name() и используется
// как ключ во всех остальных вызовах, поэтому параллельные тесты не смешиваются.
type TestInfo struct {
	ID      string
	Name    string
	Browser string
	Labels  map[string]string
}

// Suite возвращает имя верхнеуровневого теста из ID подтеста.
func (i TestInfo) Suite() string {
	return suiteOf(i.ID)
}

func suiteOf(id string) string {
	if idx := strings.Index(id, "/"); idx >= 0 {
		return id[:idx]
	}
	return id
}

// Reporter контракт системы отчетов. testID пустой для событий уровня сессии.
type Reporter interface {
	StartTest(info TestInfo)
	FinishTest(testID string, status Status, message string) error
	LogStep(testID, message string)
	AttachScreenshot(testID, name, path string) error
	AttachText(testID, name, content string) error
	AttachException(testID, name string, err error) error
	Close() error
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
