package commands

import (
	"context"

	"github.com/spf13/cobra"

	"autotest/internal/server"
)

func NewServeCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTP API истории запусков и каталог отчетов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := env.openRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg := *env.Cfg
			cfg.Framework.ReportsDir = projectPath(cfg.Framework.ReportsDir)
			return server.New(&cfg, env.Log.Named("server"), repo).Run(ctx)
		},
	}
}
