package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotest/internal/config"
	"autotest/internal/logger"
)

func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cfg := &config.Cfg{Framework: config.Framework{ConfigDir: "config", ReportsDir: t.TempDir()}}
	return New(cfg, logger.Nop(), &out), &out
}

func TestCommandsRegistered(t *testing.T) {
	c, _ := newTestCLI(t)

	var names []string
	for _, cmd := range c.Root().Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"validate", "matrix", "capabilities", "data", "smoke", "migrate", "serve", "runs", "show", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersion(t *testing.T) {
	c, out := newTestCLI(t)
	require.NoError(t, c.Run(context.Background(), []string{"version"}))
	assert.Contains(t, out.String(), "autotest "+Version)
}

func TestValidate(t *testing.T) {
	c, out := newTestCLI(t)
	require.NoError(t, c.Run(context.Background(), []string{"validate"}))
	assert.Contains(t, out.String(), "All configuration validations passed!")
	assert.Contains(t, out.String(), "Default browser: chrome_127")
}

func TestMatrixAndCapabilities(t *testing.T) {
	c, out := newTestCLI(t)
	require.NoError(t, c.Run(context.Background(), []string{"matrix"}))
	assert.Contains(t, out.String(), "firefox_latest")
	assert.Contains(t, out.String(), "390x844")

	out.Reset()
	require.NoError(t, c.Run(context.Background(), []string{"capabilities", "chrome_127"}))
	assert.Contains(t, out.String(), `"browserName": "chromium"`)

	err := c.Run(context.Background(), []string{"capabilities", "opera"})
	assert.Error(t, err)
}

func TestData(t *testing.T) {
	c, out := newTestCLI(t)
	require.NoError(t, c.Run(context.Background(), []string{"data", "test_data/login.yaml", "--id", "username"}))
	assert.Contains(t, out.String(), "2 case(s)")
	assert.Contains(t, out.String(), "standard_user")

	assert.Error(t, c.Run(context.Background(), []string{"data", "test_data/missing.yaml"}))
}

func TestRuns_NoDatabase(t *testing.T) {
	c, _ := newTestCLI(t)
	err := c.Run(context.Background(), []string{"runs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
}
