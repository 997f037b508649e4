package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) CreateRun(run *TestRun) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return r.db.Create(run).Error
}

func (r *RunRepository) AddResult(res *TestResult) error {
	return r.db.Create(res).Error
}

// FinishRun пересчитывает счетчики по сохраненным результатам и закрывает запуск.
func (r *RunRepository) FinishRun(id uint) (*TestRun, error) {
	results, err := r.ListResults(id)
	if err != nil {
		return nil, err
	}
	sum := Summarize(results)
	now := time.Now()

	err = r.db.Model(&TestRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      sum.Status(),
			"total":       sum.Total,
			"passed":      sum.Passed,
			"failed":      sum.Failed,
			"broken":      sum.Broken,
			"skipped":     sum.Skipped,
			"finished_at": now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("finish run %d: %w", id, err)
	}
	return r.GetRun(id)
}

func (r *RunRepository) GetRun(id uint) (*TestRun, error) {
	var run TestRun
	if err := r.db.Preload("Results", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *RunRepository) ListRuns(limit, offset int) ([]TestRun, error) {
	var runs []TestRun
	if err := r.db.Order("id DESC").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *RunRepository) ListResults(runID uint) ([]TestResult, error) {
	var results []TestResult
	if err := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
