package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"autotest/internal/browser"
	"autotest/internal/cli/ui"
)

func NewMatrixCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Показать браузерную матрицу",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := env.Loader()
			profiles, err := loader.Matrix()
			if err != nil {
				return err
			}
			settings, err := loader.Settings()
			if err != nil {
				return err
			}

			w := env.out()
			ui.Title.Fprintf(w, "%s Браузерная матрица (%d)\n", ui.IconList, len(profiles))

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tENGINE\tCHANNEL\tVERSION\tHEADLESS\tVIEWPORT\tREMOTE")
			for _, p := range profiles {
				width, height := browser.ViewportSize(p, settings)
				remote, url, err := browser.ResolveRemote(p, settings, browser.Options{
					Remote:       env.Cfg.Framework.Remote,
					EnvRemoteURL: env.Cfg.Framework.RemoteURL,
				})
				target := "local"
				switch {
				case err != nil:
					target = "error: " + err.Error()
				case remote:
					target = url
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%dx%d\t%s\n",
					p.Name, browser.BrowserType(p.BrowserName), dash(browser.Channel(p.BrowserName)),
					dash(p.BrowserVersion), browser.Headless(p, settings), width, height, target)
			}
			return tw.Flush()
		},
	}
}

func NewCapabilitiesCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities <profile>",
		Short: "Показать capabilities профиля для удаленного грида",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := env.Loader()
			profile, err := loader.BrowserProfile(args[0])
			if err != nil {
				return err
			}
			settings, err := loader.Settings()
			if err != nil {
				return err
			}

			raw, err := json.MarshalIndent(browser.Capabilities(profile, settings), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(env.out(), string(raw))
			return nil
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
