// Package database хранит историю запусков тестов в PostgreSQL.
// Использует GORM ORM с prepared statements.
package database

import "time"

// Статусы запуска и результата.
const (
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusBroken  = "broken"
	StatusSkipped = "skipped"
)

// TestRun представляет одну сессию тестов.
type TestRun struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	RunUUID    string       `gorm:"type:varchar(36);uniqueIndex;not null" json:"run_uuid"`
	Reporter   string       `gorm:"type:varchar(16)" json:"reporter"`
	ReportsDir string       `gorm:"type:text" json:"reports_dir"`
	Status     string       `gorm:"type:varchar(16);not null;default:'running'" json:"status"`
	Total      int          `json:"total"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Broken     int          `json:"broken"`
	Skipped    int          `json:"skipped"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Results    []TestResult `gorm:"foreignKey:RunID" json:"results,omitempty"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// TestResult результат одного теста в одном браузере.
type TestResult struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RunID          uint      `gorm:"index;not null" json:"run_id"`
	TestID         string    `gorm:"type:text;not null" json:"test_id"` // Имя теста (t.Name())
	Browser        string    `gorm:"type:varchar(64)" json:"browser"`
	Status         string    `gorm:"type:varchar(16);not null" json:"status"`
	Message        string    `gorm:"type:text" json:"message,omitempty"`
	ScreenshotPath string    `gorm:"type:text" json:"screenshot_path,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Summary агрегированные счетчики результатов.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Broken  int
	Skipped int
}

// Summarize считает результаты по статусам. Неизвестный статус считается broken.
func Summarize(results []TestResult) Summary {
	var s Summary
	for _, r := range results {
		s.Total++
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Broken++
		}
	}
	return s
}

// Status итоговый статус запуска: failed, если хоть один тест упал или сломан.
func (s Summary) Status() string {
	if s.Failed > 0 || s.Broken > 0 {
		return StatusFailed
	}
	return StatusPassed
}
