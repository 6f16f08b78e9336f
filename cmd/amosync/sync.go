package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"amosync/pkg/amos"
	"amosync/pkg/archive"
	"amosync/pkg/auth"
	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"amosync/pkg/metrics"
	"amosync/pkg/report"
	"amosync/pkg/store"
	"amosync/pkg/syncer"
	"amosync/pkg/ui"
	"amosync/pkg/ui/tui"
	"github.com/spf13/cobra"
)

var (
	syncIDsFile      string
	syncAll          bool
	syncWorkers      int
	syncStart        string
	syncEnd          string
	syncSkipExisting bool
	syncBackend      string
	syncRoot         string
	syncBucket       string
	syncPrefix       string
	syncCredentials  string
	syncReport       string
	syncFromReport   string
	syncMetricsAddr  string
	syncTUI          bool
	syncNotify       bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [camera-id...]",
	Short: "Mirror cameras into the configured store",
	Long: `Mirror one or more cameras: the camera record is written as info.json,
then every monthly archive in the camera's activity window is merged into
the camera's directory.

Cameras come from the arguments, --ids-file (one id per line, # comments
allowed), --all (every camera the server lists) or --from-report (the
cameras a previous run did not finish).

One camera failing never stops the others. The exit code is non-zero only
when the configuration is invalid; per-camera outcomes are in the summary
and the run report.`,
	Example: `  # Sync two cameras into ./amos
  amosync sync 65 90

  # Sync 2016 only, eight at a time, into S3
  amosync sync --ids-file cameras.txt --start 2016-01-01 --end 2016-12-31 \
    --workers 8 --backend s3 --bucket my-amos-mirror

  # Retry whatever the last run did not finish
  amosync sync --from-report latest

  # Watch progress on a live dashboard
  amosync sync --all --tui`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	f := syncCmd.Flags()
	f.StringVar(&syncIDsFile, "ids-file", "", "read camera ids from this file")
	f.BoolVar(&syncAll, "all", false, "sync every camera the server lists")
	f.IntVar(&syncWorkers, "workers", 0, "cameras synced concurrently")
	f.StringVar(&syncStart, "start", "", "first date to sync (YYYY-MM-DD)")
	f.StringVar(&syncEnd, "end", "", "last date to sync (YYYY-MM-DD)")
	f.BoolVar(&syncSkipExisting, "skip-existing", true, "skip cameras whose info.json already exists")
	f.StringVar(&syncBackend, "backend", "", "storage backend (local, s3, gcs)")
	f.StringVar(&syncRoot, "root", "", "local storage root")
	f.StringVar(&syncBucket, "bucket", "", "object store bucket")
	f.StringVar(&syncPrefix, "prefix", "", "object key prefix")
	f.StringVar(&syncCredentials, "credentials", "", "stored credential profile for the object store")
	f.StringVar(&syncReport, "report", "", "also write the run report to this file")
	f.StringVar(&syncFromReport, "from-report", "", "resync unfinished cameras of a report (run id, file or 'latest')")
	f.StringVar(&syncMetricsAddr, "metrics-listen", "", "serve prometheus metrics on this address")
	f.BoolVar(&syncTUI, "tui", false, "show a live dashboard instead of log output")
	f.BoolVar(&syncNotify, "notify", false, "raise a desktop notification when the run ends")
}

func syncFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed
	if changed("workers") {
		flags["workers"] = syncWorkers
	}
	if changed("skip-existing") {
		flags["skip-existing"] = syncSkipExisting
	}
	if syncStart != "" {
		flags["start"] = syncStart
	}
	if syncEnd != "" {
		flags["end"] = syncEnd
	}
	if syncBackend != "" {
		flags["backend"] = syncBackend
	}
	if syncRoot != "" {
		flags["root"] = syncRoot
	}
	if syncBucket != "" {
		flags["bucket"] = syncBucket
	}
	if syncPrefix != "" {
		flags["prefix"] = syncPrefix
	}
	if syncMetricsAddr != "" {
		flags["metrics-listen"] = syncMetricsAddr
	}
	return flags
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(syncFlags(cmd))
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	if syncTUI {
		// the dashboard owns the terminal; logs go to the log file only
		if log, err = logger.NewWithWriter(&cfg.Logging, io.Discard); err != nil {
			return errs.Wrap(errs.ErrorTypeConfig, err, "initialise logging")
		}
	}
	log = log.WithField("command", "sync")

	ctx := cmd.Context()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, log); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	var dash *tui.Dashboard
	client := newClient(cfg, log, func(code int) {
		m.RecordRequest(code)
		if dash != nil {
			dash.Request(code)
		}
	})

	reports, err := report.NewManager("", log)
	if err != nil {
		return err
	}

	ids, err := resolveSyncIDs(ctx, args, client, reports)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if syncFromReport != "" {
			ui.PrintSuccess(os.Stdout, "Nothing left to sync in that report")
			return nil
		}
		return errs.New(errs.ErrorTypeConfig, "no cameras given: pass ids, --ids-file, --all or --from-report")
	}

	applyStoredCredentials(&cfg.Storage, log)

	st, err := store.New(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}

	executor := syncer.NewExecutor(client, archive.NewDefault(client, cfg.Upstream, log), st, log)
	executor.SetMetrics(m)

	opts, err := syncer.OptionsFromConfig(cfg.Sync)
	if err != nil {
		return err
	}

	var progress *ui.ProgressDisplay
	switch {
	case syncTUI:
	case !quiet && ui.IsInteractive():
		progress = ui.NewProgressDisplay(os.Stdout, len(ids))
		opts.OnResult = progress.CameraDone
	}

	var summary *syncer.Summary
	if syncTUI {
		summary, err = runWithDashboard(ctx, opts, executor, m, ids, log, &dash)
	} else {
		batch, berr := syncer.NewBatch(executor, opts, log)
		if berr != nil {
			return berr
		}
		batch.SetMetrics(m)
		summary, err = batch.Run(ctx, ids)
		if progress != nil {
			progress.Complete()
		}
	}
	if err != nil {
		return err
	}

	if !quiet {
		ui.PrintSummary(os.Stdout, summary)
	}
	saveReports(reports, summary, log)

	if syncNotify {
		ui.NewNotifier(os.Stdout).NotifySummary(
			summary.Count(syncer.StatusSynced)+summary.Count(syncer.StatusSkipped),
			summary.Count(syncer.StatusFailed)+summary.Count(syncer.StatusPartialFailure),
			len(summary.Results),
		)
	}
	return nil
}

// runWithDashboard runs the batch behind the live dashboard. Quitting the
// dashboard cancels the batch; the summary still covers every camera.
func runWithDashboard(ctx context.Context, opts syncer.Options, executor *syncer.Executor, m *metrics.Metrics,
	ids []int, log logger.Logger, dash **tui.Dashboard) (*syncer.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := tui.New(len(ids), opts.Workers, cancel)
	*dash = d
	opts.OnStart = d.CameraStarted
	opts.OnResult = d.CameraDone

	batch, err := syncer.NewBatch(executor, opts, log)
	if err != nil {
		return nil, err
	}
	batch.SetMetrics(m)

	var summary *syncer.Summary
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		summary, runErr = batch.Run(runCtx, ids)
		d.Finish()
	}()

	if err := d.Run(); err != nil {
		log.WithError(err).Warn("dashboard stopped")
		cancel()
	}
	<-done
	return summary, runErr
}

// resolveSyncIDs gathers camera ids from every source the user selected
func resolveSyncIDs(ctx context.Context, args []string, client *amos.Client, reports *report.Manager) ([]int, error) {
	var ids []int
	for _, arg := range args {
		id, err := parseCameraID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if syncIDsFile != "" {
		fromFile, err := readIDsFile(syncIDsFile)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}

	if syncFromReport != "" {
		r, err := loadReport(reports, syncFromReport)
		if err != nil {
			return nil, err
		}
		ids = append(ids, r.Unfinished()...)
	}

	if syncAll {
		cameras, err := client.ListCameras(ctx)
		if err != nil {
			return nil, fmt.Errorf("list cameras: %w", err)
		}
		for _, c := range cameras {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func readIDsFile(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "open ids file")
	}
	defer f.Close()

	var ids []int
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		id, err := parseCameraID(text)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeConfig, err, "%s line %d", path, line)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "read ids file")
	}
	return ids, nil
}

// loadReport accepts "latest", a path to a report file, or a run id
func loadReport(reports *report.Manager, ref string) (*report.Report, error) {
	if ref == "latest" {
		r, err := reports.Latest()
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, errs.New(errs.ErrorTypeConfig, "no previous run report found")
		}
		return r, nil
	}
	if _, err := os.Stat(ref); err == nil {
		return report.ReadFile(ref)
	}
	r, err := reports.Load(ref)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "load report %s", ref)
	}
	return r, nil
}

// applyStoredCredentials fills object-store keys from the credential store
// when the configuration carries none; otherwise the SDK default chain applies
func applyStoredCredentials(cfg *config.StorageConfig, log logger.Logger) {
	if cfg.Backend == config.BackendLocal || cfg.Backend == "" {
		return
	}
	mgr, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("credential store unavailable, using SDK defaults")
		return
	}
	if mgr.ApplyToStorage(cfg, syncCredentials) {
		log.WithField("backend", cfg.Backend).Debug("using stored object store credentials")
	}
}

func saveReports(reports *report.Manager, summary *syncer.Summary, log logger.Logger) {
	rep := report.FromSummary(summary)

	path, err := reports.Save(rep)
	if err != nil {
		log.WithError(err).Warn("failed to save run report")
	} else {
		log.WithField("path", path).Info("run report saved")
	}

	if syncReport != "" {
		if err := report.WriteFile(syncReport, rep); err != nil {
			log.WithError(err).WithField("path", syncReport).Warn("failed to write report file")
			return
		}
		if !quiet {
			ui.PrintInfo(os.Stdout, "Report", syncReport)
		}
	}
}
