package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"autotest/internal/cli/ui"
	"autotest/internal/config"
)

// Check результат одной проверки конфигурации.
type Check struct {
	Name    string
	Err     error
	Details []string
}

// Validate проверяет, что все YAML файлы читаются и содержат ожидаемые секции.
func Validate(l *config.Loader) []Check {
	var checks []Check

	settings, err := l.Settings()
	c := Check{Name: "config.yaml", Err: err}
	if err == nil {
		c.Details = []string{
			"Base URL: " + settings.BaseURL,
			fmt.Sprintf("Default timeout: %gs", settings.DefaultTimeout),
			fmt.Sprintf("Headless: %t", settings.Headless),
			fmt.Sprintf("Retries: %d", settings.Retries),
			"Reporter: " + settings.Reporter,
		}
	}
	checks = append(checks, c)

	c = Check{Name: "browsers.yaml"}
	if profiles, err := l.Matrix(); err != nil {
		c.Err = err
	} else {
		names := make([]string, 0, len(profiles))
		for _, p := range profiles {
			names = append(names, p.Name)
		}
		def := l.DefaultBrowser()
		c.Details = []string{
			"Available profiles: " + strings.Join(names, ", "),
			"Default browser: " + def,
		}
		if p, err := l.BrowserProfile(def); err != nil {
			c.Err = err
		} else {
			c.Details = append(c.Details, fmt.Sprintf("%s config: %s v%s", def, p.BrowserName, p.BrowserVersion))
		}
	}
	checks = append(checks, c)

	rep, err := l.Reporting()
	c = Check{Name: "reporting.yaml", Err: err}
	if err == nil {
		c.Details = []string{
			"Report type: " + rep.ReportType,
			"Output path: " + rep.OutputPath,
			fmt.Sprintf("Include screenshots: %t", rep.IncludeScreenshots),
		}
	}
	checks = append(checks, c)

	c = Check{Name: "nested key access"}
	if v := l.GetString("base_url", "config", ""); v == "" {
		c.Err = errors.New("base_url is empty")
	} else {
		c.Details = []string{"base_url = " + v}
	}
	checks = append(checks, c)

	c = Check{Name: "default value handling"}
	if v := l.GetString("non_existent_key", "config", "default_value"); v != "default_value" {
		c.Err = fmt.Errorf("expected default_value, got %q", v)
	} else {
		c.Details = []string{"Got default value: " + v}
	}
	checks = append(checks, c)

	return checks
}

func NewValidateCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Проверить файлы конфигурации",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := env.out()
			loader := env.Loader()

			ui.Rule(w)
			ui.Bold.Fprintf(w, "Configuration Validation (%s)\n", loader.Dir())
			ui.Rule(w)

			failed := 0
			for i, c := range Validate(loader) {
				fmt.Fprintf(w, "\n%d. Validating %s...\n", i+1, c.Name)
				if c.Err != nil {
					failed++
					ui.Check(w, false, "Failed: %v", c.Err)
					continue
				}
				ui.Check(w, true, "OK")
				for _, d := range c.Details {
					ui.Detail(w, "%s", d)
				}
			}

			fmt.Fprintln(w)
			ui.Rule(w)
			if failed > 0 {
				ui.Red.Fprintf(w, "%s %d validation(s) failed\n", ui.IconCross, failed)
				ui.Rule(w)
				return fmt.Errorf("%d configuration check(s) failed", failed)
			}
			ui.Green.Fprintf(w, "%s All configuration validations passed!\n", ui.IconCheckmark)
			ui.Rule(w)
			return nil
		},
	}
}
