package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"autotest/internal/cli/ui"
	"autotest/internal/dataset"
)

func NewDataCmd(env *Env) *cobra.Command {
	var idKeys []string

	cmd := &cobra.Command{
		Use:   "data <file>",
		Short: "Загрузить файл тестовых данных (yaml, json, csv) и показать кейсы",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := dataset.NewLoader(dataset.ProjectRoot(), env.Log.Named("dataset"))
			cases, err := loader.LoadTestData(args[0])
			if err != nil {
				return err
			}

			w := env.out()
			ui.Title.Fprintf(w, "%s %s: %d case(s)\n", ui.IconDocument, args[0], len(cases))
			for i, c := range cases {
				raw, err := json.Marshal(c)
				if err != nil {
					return fmt.Errorf("case %d: %w", i+1, err)
				}
				ui.Bold.Fprintf(w, "%3d. %s", i+1, c.ID(idKeys...))
				ui.Gray.Fprintf(w, "  %s\n", raw)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&idKeys, "id", nil, "ключи для имени кейса")
	return cmd
}
