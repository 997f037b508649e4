// Package server отдает историю запусков и каталоги отчетов по HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"autotest/internal/config"
	"autotest/internal/database"
)

// RunStore чтение истории запусков. Реализуется database.RunRepository.
type RunStore interface {
	ListRuns(limit, offset int) ([]database.TestRun, error)
	GetRun(id uint) (*database.TestRun, error)
	ListResults(runID uint) ([]database.TestResult, error)
}

type Server struct {
	cfg        *config.Cfg
	log        *zap.Logger
	repo       RunStore
	reportsDir string
}

func New(cfg *config.Cfg, log *zap.Logger, repo RunStore) *Server {
	return &Server{
		cfg:        cfg,
		log:        log,
		repo:       repo,
		reportsDir: cfg.Framework.ReportsDir,
	}
}

// Handler собирает роутер. Вынесен отдельно для httptest.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// Простейший лог-мидлвар
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("HTTP",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Список запусков
	r.GET("/api/runs", func(c *gin.Context) {
		limit := queryInt(c, "limit", 50)
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		offset := queryInt(c, "offset", 0)
		if offset < 0 {
			offset = 0
		}

		runs, err := s.repo.ListRuns(limit, offset)
		if err != nil {
			s.log.Error("db list runs", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})

	// Запуск вместе с результатами
	r.GET("/api/runs/:id", func(c *gin.Context) {
		id, ok := s.runID(c)
		if !ok {
			return
		}
		run, err := s.repo.GetRun(id)
		if err != nil {
			s.notFoundOrError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	})

	r.GET("/api/runs/:id/results", func(c *gin.Context) {
		id, ok := s.runID(c)
		if !ok {
			return
		}
		results, err := s.repo.ListResults(id)
		if err != nil {
			s.log.Error("db list results", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		c.JSON(http.StatusOK, results)
	})

	if s.reportsDir != "" {
		r.Static("/reports", s.reportsDir)
	}

	return r
}

// Run слушает APP_HOST:APP_PORT до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.App.Host, s.cfg.App.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Сервер запущен", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("Остановка сервера")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) runID(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return 0, false
	}
	return uint(id64), true
}

func (s *Server) notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	s.log.Error("db get run", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
