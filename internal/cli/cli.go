// Package cli собирает корневую cobra-команду autotest.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"autotest/internal/cli/commands"
	"autotest/internal/cli/ui"
	"autotest/internal/config"
	"autotest/internal/logger"
)

// Version задается при сборке через -ldflags "-X autotest/internal/cli.Version=...".
var Version = "0.1.0"

type CLI struct {
	env  *commands.Env
	root *cobra.Command
}

func New(cfg *config.Cfg, log *logger.Zap, out io.Writer) *CLI {
	if out == nil {
		out = os.Stdout
	}
	env := &commands.Env{Cfg: cfg, Log: log.Logger, Out: out, Version: Version}

	root := &cobra.Command{
		Use:           "autotest",
		Short:         "Браузерные автотесты на Playwright: матрица браузеров, отчеты, история запусков",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&cfg.Framework.ConfigDir, "config-dir", cfg.Framework.ConfigDir, "каталог YAML конфигурации")
	root.PersistentFlags().StringVar(&cfg.Framework.ReportsDir, "reports-dir", cfg.Framework.ReportsDir, "каталог отчетов")

	root.AddCommand(
		commands.NewValidateCmd(env),
		commands.NewMatrixCmd(env),
		commands.NewCapabilitiesCmd(env),
		commands.NewDataCmd(env),
		commands.NewSmokeCmd(env),
		commands.NewMigrateCmd(env),
		commands.NewServeCmd(env),
		commands.NewRunsCmd(env),
		commands.NewShowCmd(env),
		&cobra.Command{
			Use:   "version",
			Short: "Показать версию",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				ui.PrintBanner(out, Version)
			},
		},
	)

	return &CLI{env: env, root: root}
}

// Root корневая команда, для тестов и встраивания.
func (c *CLI) Root() *cobra.Command {
	return c.root
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	c.root.SetArgs(args)
	if err := c.root.ExecuteContext(ctx); err != nil {
		ui.Red.Fprintf(os.Stderr, "%s %v\n", ui.IconCross, err)
		return fmt.Errorf("autotest: %w", err)
	}
	return nil
}
