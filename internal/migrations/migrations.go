// Package migrations применяет схему истории запусков через golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"autotest/internal/config"
)

//go:embed sql/*.sql
var files embed.FS

// Run применяет все новые миграции. Без настроенной БД ничего не делает.
// MIGRATIONS_PATH позволяет взять миграции с диска вместо встроенных.
func Run(cfg *config.Cfg, log *zap.Logger) error {
	if !cfg.Database.Enabled() {
		log.Debug("Миграции пропущены: БД не настроена")
		return nil
	}

	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer closeMigrate(m, log)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Миграции: изменений нет")
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info("Миграции применены", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Version возвращает текущую версию схемы.
func Version(cfg *config.Cfg, log *zap.Logger) (uint, bool, error) {
	if !cfg.Database.Enabled() {
		return 0, false, errors.New("database is not configured")
	}
	m, err := newMigrate(cfg)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m, log)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(cfg *config.Cfg) (*migrate.Migrate, error) {
	if cfg.Migrations.Path != "" {
		m, err := migrate.New("file://"+cfg.Migrations.Path, cfg.Database.URL())
		if err != nil {
			return nil, fmt.Errorf("init migrations from %s: %w", cfg.Migrations.Path, err)
		}
		return m, nil
	}

	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate, log *zap.Logger) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		log.Warn("Ошибка закрытия migrate", zap.Error(err))
	}
}
