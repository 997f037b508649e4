package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"autotest/internal/config"
	"autotest/internal/database"
)

type fakeRepo struct {
	runs      []database.TestRun
	results   []database.TestResult
	err       error
	gotLimit  int
	gotOffset int
}

func (r *fakeRepo) ListRuns(limit, offset int) ([]database.TestRun, error) {
	r.gotLimit, r.gotOffset = limit, offset
	return r.runs, r.err
}

func (r *fakeRepo) GetRun(id uint) (*database.TestRun, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, run := range r.runs {
		if run.ID == id {
			run.Results = r.results
			return &run, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) ListResults(runID uint) ([]database.TestResult, error) {
	return r.results, r.err
}

func newTestServer(t *testing.T, repo *fakeRepo) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Cfg{Framework: config.Framework{ReportsDir: dir}}
	return New(cfg, zap.NewNop(), repo).Handler(), dir
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &fakeRepo{})
	w := do(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListRuns(t *testing.T) {
	repo := &fakeRepo{runs: []database.TestRun{{ID: 2, RunUUID: "b", Status: "passed"}, {ID: 1, RunUUID: "a", Status: "failed"}}}
	h, _ := newTestServer(t, repo)

	w := do(t, h, "/api/runs?limit=10&offset=5")
	require.Equal(t, http.StatusOK, w.Code)

	var runs []database.TestRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
	assert.Equal(t, 10, repo.gotLimit)
	assert.Equal(t, 5, repo.gotOffset)

	do(t, h, "/api/runs?limit=abc")
	assert.Equal(t, 50, repo.gotLimit)
}

func TestGetRun(t *testing.T) {
	repo := &fakeRepo{
		runs:    []database.TestRun{{ID: 7, RunUUID: "run-7", Status: "failed", Total: 2}},
		results: []database.TestResult{{ID: 1, RunID: 7, TestID: "TestSearch/chrome_127", Status: "failed"}},
	}
	h, _ := newTestServer(t, repo)

	tests := []struct {
		path string
		code int
	}{
		{"/api/runs/7", http.StatusOK},
		{"/api/runs/8", http.StatusNotFound},
		{"/api/runs/abc", http.StatusBadRequest},
		{"/api/runs/7/results", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, do(t, h, tt.path).Code)
		})
	}

	var run database.TestRun
	require.NoError(t, json.Unmarshal(do(t, h, "/api/runs/7").Body.Bytes(), &run))
	assert.Equal(t, "run-7", run.RunUUID)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "TestSearch/chrome_127", run.Results[0].TestID)
}

func TestDBError(t *testing.T) {
	h, _ := newTestServer(t, &fakeRepo{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/api/runs").Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/api/runs/1").Code)
}

func TestStaticReports(t *testing.T) {
	h, dir := newTestServer(t, &fakeRepo{})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "20250101_120000"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20250101_120000", "junit.xml"), []byte("<testsuites/>"), 0o644))

	w := do(t, h, "/reports/20250101_120000/junit.xml")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "testsuites")
}
