package commands

import (
	"github.com/spf13/cobra"

	"autotest/internal/cli/ui"
	"autotest/internal/migrations"
)

func NewMigrateCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции истории запусков",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrations.Run(env.Cfg, env.Log.Named("migrations")); err != nil {
				return err
			}
			ui.Green.Fprintf(env.out(), "%s Миграции применены\n", ui.IconCheckmark)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Показать версию схемы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := migrations.Version(env.Cfg, env.Log.Named("migrations"))
			if err != nil {
				return err
			}
			ui.Cyan.Fprintf(env.out(), "%s Версия схемы: %d (dirty: %t)\n", ui.IconCog, version, dirty)
			return nil
		},
	})
	return cmd
}
