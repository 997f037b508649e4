package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"autotest/internal/browser"
	"autotest/internal/cli/ui"
	"autotest/internal/config"
	"autotest/internal/locator"
	"autotest/internal/page"
	"autotest/internal/reporting"
	"autotest/internal/retry"
)

// SmokeResult результат smoke-проверки одного профиля. Grid пустой
// для локального запуска.
type SmokeResult struct {
	Profile   string
	Status    reporting.Status
	Title     string
	Results   int
	Duration  time.Duration
	Err       error
	Grid      string
	GridState retry.CircuitState
}

type smokeOptions struct {
	browser  string
	query    string
	parallel int
}

func NewSmokeCmd(env *Env) *cobra.Command {
	var o smokeOptions

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Открыть демо-магазин во всех браузерах матрицы и выполнить поиск",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmoke(cmd.Context(), env, o)
		},
	}
	cmd.Flags().StringVar(&o.browser, "browser", env.Cfg.Framework.Browser, "профиль браузера (по умолчанию вся матрица)")
	cmd.Flags().StringVar(&o.query, "query", "shampoo", "поисковый запрос")
	cmd.Flags().IntVar(&o.parallel, "parallel", 2, "число браузеров одновременно")
	return cmd
}

func runSmoke(ctx context.Context, env *Env, o smokeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	loader := env.Loader()
	settings, err := loader.Settings()
	if err != nil {
		return err
	}

	var profiles []config.Profile
	if o.browser != "" {
		p, err := loader.BrowserProfile(o.browser)
		if err != nil {
			return err
		}
		profiles = []config.Profile{p}
	} else if profiles, err = loader.Matrix(); err != nil {
		return err
	}

	runDir := filepath.Join(projectPath(env.Cfg.Framework.ReportsDir), "smoke_"+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	reports := reporting.NewManager(env.Log.Named("reporting"))
	if err := reports.Init(reporting.TypeJUnit, runDir, reporting.WithLabel("suite", "smoke")); err != nil {
		return err
	}

	results := make([]SmokeResult, len(profiles))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if o.parallel > 0 {
		g.SetLimit(o.parallel)
	}
	for i, p := range profiles {
		g.Go(func() error {
			res := smokeProfile(gctx, env, reports, runDir, p, settings, o.query)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := reports.Close(); err != nil {
		env.Log.Warn("Could not write smoke report", zap.Error(err))
	}

	failed := printSmoke(env, results)
	ui.Gray.Fprintf(env.out(), "Отчет: %s\n", filepath.Join(runDir, "junit.xml"))
	if failed > 0 {
		return fmt.Errorf("smoke failed in %d of %d browser(s)", failed, len(results))
	}
	return nil
}

func smokeProfile(ctx context.Context, env *Env, reports *reporting.Manager, runDir string,
	p config.Profile, settings config.Settings, query string) SmokeResult {
	start := time.Now()
	testID := "Smoke/" + p.Name
	res := SmokeResult{Profile: p.Name, Status: reporting.StatusPassed}
	reports.StartTest(reporting.TestInfo{ID: testID, Name: "smoke", Browser: p.Name})

	var factory *browser.Factory
	fail := func(status reporting.Status, err error) SmokeResult {
		res.Status, res.Err, res.Duration = status, err, time.Since(start)
		res.Grid, res.GridState = gridOf(factory)
		reports.AttachException(testID, "error", err)
		reports.FinishTest(testID, status, err.Error())
		return res
	}

	factory, err := browser.NewFactory(p, settings, browser.Options{
		Remote:       env.Cfg.Framework.Remote,
		EnvRemoteURL: env.Cfg.Framework.RemoteURL,
	}, env.Log.Named("browser"))
	if err != nil {
		return fail(reporting.StatusBroken, err)
	}
	defer func() {
		if err := factory.Quit(); err != nil {
			env.Log.Warn("Error closing browser", zap.String("profile", p.Name), zap.Error(err))
		}
	}()

	pw, err := factory.Driver(ctx)
	if err != nil {
		return fail(reporting.StatusBroken, err)
	}
	if factory.IsRemote() {
		reports.AttachRemoteCapabilities(testID, factory.Capabilities())
	}

	store := page.NewStorePage(page.New(pw, settings, env.Log.Named("page"),
		locator.WithScreenshotDir(runDir),
		locator.WithAttacher(reports, testID)))

	if err := store.Open(ctx); err != nil {
		return fail(reporting.StatusFailed, err)
	}
	reports.LogInfo(testID, "Opened "+store.URL())
	if _, err := store.DismissOverlays(ctx); err != nil {
		return fail(reporting.StatusBroken, err)
	}
	if res.Title, err = store.Title(); err != nil {
		return fail(reporting.StatusFailed, err)
	}
	if !store.IsLogoVisible(ctx) {
		return fail(reporting.StatusFailed, fmt.Errorf("logo is not visible"))
	}

	if err := store.Search(ctx, query); err != nil {
		return fail(reporting.StatusFailed, err)
	}
	reports.LogInfo(testID, "Searched "+query)
	if res.Results, err = store.ResultsCount(ctx); err != nil {
		return fail(reporting.StatusFailed, err)
	}

	res.Duration = time.Since(start)
	res.Grid, res.GridState = gridOf(factory)
	reports.FinishTest(testID, reporting.StatusPassed, "")
	return res
}

func gridOf(f *browser.Factory) (string, retry.CircuitState) {
	if f == nil || !f.IsRemote() {
		return "", retry.StateClosed
	}
	return f.RemoteURL(), f.GridState()
}

// printSmoke выводит таблицу результатов и возвращает число неуспешных профилей.
func printSmoke(env *Env, results []SmokeResult) int {
	w := env.out()
	ui.Title.Fprintf(w, "%s Smoke (%d)\n", ui.IconChart, len(results))

	failed := 0
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tSTATUS\tRESULTS\tTIME\tDETAILS")
	for _, r := range results {
		details := r.Title
		if r.Err != nil {
			failed++
			details = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.Profile, ui.Status(string(r.Status)), r.Results, r.Duration.Round(time.Millisecond), details)
	}
	_ = tw.Flush()

	for _, r := range results {
		if r.Grid != "" && r.GridState != retry.StateClosed {
			ui.Yellow.Fprintf(w, "%s грид %s: circuit breaker %s\n", ui.IconWarning, r.Grid, r.GridState)
		}
	}
	return failed
}
