// Package commands содержит команды CLI autotest.
package commands

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"autotest/internal/config"
	"autotest/internal/database"
	"autotest/internal/dataset"
)

// Env общие зависимости команд.
type Env struct {
	Cfg     *config.Cfg
	Log     *zap.Logger
	Out     io.Writer
	Version string
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

// Loader загрузчик YAML конфигурации. Относительный каталог берется от корня проекта.
func (e *Env) Loader() *config.Loader {
	return config.NewLoader(projectPath(e.Cfg.Framework.ConfigDir), e.Log.Named("config"))
}

// openRepo подключается к БД истории запусков.
func (e *Env) openRepo() (*database.RunRepository, func(), error) {
	if !e.Cfg.Database.Enabled() {
		return nil, nil, errors.New("БД не настроена: задайте DB_HOST, DB_USER, DB_PASS")
	}
	db, err := database.New(e.Cfg.Database, e.Log.Named("db"))
	if err != nil {
		return nil, nil, err
	}
	return database.NewRunRepository(db.DB), func() { db.Close(e.Log) }, nil
}

func projectPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataset.ProjectRoot(), p)
}
