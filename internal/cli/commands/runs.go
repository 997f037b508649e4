package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"autotest/internal/cli/ui"
	"autotest/internal/database"
)

func NewRunsCmd(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Список последних запусков",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := env.openRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := repo.ListRuns(limit, 0)
			if err != nil {
				return err
			}
			printRuns(env.out(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "число запусков")
	return cmd
}

func NewShowCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Детали запуска с результатами тестов",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("неверный ID запуска: %s", args[0])
			}
			repo, closeDB, err := env.openRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			run, err := repo.GetRun(uint(id))
			if err != nil {
				return fmt.Errorf("запуск %d не найден: %w", id, err)
			}
			printRun(env.out(), run)
			return nil
		},
	}
}

func printRuns(w io.Writer, runs []database.TestRun) {
	if len(runs) == 0 {
		ui.Gray.Fprintln(w, "Запусков нет")
		return
	}
	ui.Title.Fprintf(w, "%s Запуски (%d)\n", ui.IconList, len(runs))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTOTAL\tPASSED\tFAILED\tSTARTED\tREPORTER")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, ui.Status(r.Status), r.Total, r.Passed, r.Failed+r.Broken,
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Reporter)
	}
	_ = tw.Flush()
}

func printRun(w io.Writer, run *database.TestRun) {
	ui.Bold.Fprintf(w, "\n=== Запуск #%d ===\n", run.ID)
	fmt.Fprintf(w, "%s %s\n", ui.Cyan.Sprint(ui.IconChart+" Статус:"), ui.Status(run.Status))
	fmt.Fprintf(w, "%s %s\n", ui.Cyan.Sprint(ui.IconTime+" Начат:"), run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "%s %s\n", ui.Cyan.Sprint(ui.IconTime+" Завершен:"), run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "%s %s\n", ui.Cyan.Sprint(ui.IconDocument+" Отчеты:"), run.ReportsDir)
	fmt.Fprintf(w, "%s %d / %d / %d / %d\n", ui.Cyan.Sprint("passed / failed / broken / skipped:"),
		run.Passed, run.Failed, run.Broken, run.Skipped)

	if len(run.Results) == 0 {
		ui.Gray.Fprintln(w, "\nРезультаты не найдены")
		return
	}

	ui.Yellow.Fprintf(w, "\nРезультаты (%d):\n", len(run.Results))
	for _, r := range run.Results {
		fmt.Fprintf(w, "  %s %s [%s] %dms\n", ui.Status(r.Status), r.TestID, r.Browser, r.DurationMs)
		if r.Message != "" {
			ui.Gray.Fprintf(w, "    %s\n", r.Message)
		}
		if r.ScreenshotPath != "" {
			ui.Gray.Fprintf(w, "    screenshot: %s\n", r.ScreenshotPath)
		}
	}
	fmt.Fprintln(w)
}
