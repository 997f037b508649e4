package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autotest/internal/config"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(files, "sql/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(files, down)
		assert.NoError(t, err, "нет down-миграции для %s", up)
	}
}

func TestRun_SkipsWithoutDatabase(t *testing.T) {
	cfg := &config.Cfg{}
	assert.NoError(t, Run(cfg, zap.NewNop()))

	_, _, err := Version(cfg, zap.NewNop())
	assert.Error(t, err)
}
