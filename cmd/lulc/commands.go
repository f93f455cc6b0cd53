package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/banshee-data/landcover.report/internal/api"
	"github.com/banshee-data/landcover.report/internal/change"
	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/db"
	"github.com/banshee-data/landcover.report/internal/export"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/report"
	"github.com/banshee-data/landcover.report/internal/security"
	"github.com/banshee-data/landcover.report/internal/trend"
	"github.com/banshee-data/landcover.report/internal/units"
	"github.com/banshee-data/landcover.report/internal/zonal"
)

// openStudy loads the configured study and, when record is set, attaches
// the run database as its recorder. The returned close func is never nil.
func openStudy(record bool) (*study, *db.DB, func(), error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, func() {}, err
	}
	st, err := loadStudy(cfg)
	if err != nil {
		return nil, nil, func() {}, err
	}
	if !record {
		return st, nil, func() {}, nil
	}
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("failed to open database: %w", err)
	}
	st.engine.SetRecorder(database)
	return st, database, func() { database.Close() }, nil
}

// train runs the workflow with a progress bar over the configured years.
func (s *study) train(ctx context.Context) error {
	years := s.engine.Years()
	bar := progressbar.NewOptions(len(years),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Classifying years"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	_, err := s.engine.Train(ctx, s.samples, func(year, done, total int) {
		_ = bar.Add(1)
		monitoring.Tracef("[lulc] classified %d (%d/%d)", year, done, total)
	})
	_ = bar.Finish()
	return err
}

func handleTrain(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	noRecord := fs.Bool("no-record", false, "Do not record the run in the database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, _, closeFn, err := openStudy(!*noRecord)
	defer closeFn()
	if err != nil {
		return err
	}
	if err := st.train(ctx); err != nil {
		return err
	}
	state := st.engine.Session().Load()
	writeTrainReport(out, state.RunID, state.Report)
	return nil
}

func writeTrainReport(out io.Writer, runID string, r *classify.Report) {
	fmt.Fprintf(out, "run %s\n", runID)
	fmt.Fprintf(out, "classifier %s on %d, bands %v\n", r.Family, r.ReferenceYear, r.Bands)
	fmt.Fprintf(out, "samples: %d train, %d test, %d dropped\n", r.TrainSamples, r.TestSamples, r.Dropped)
	fmt.Fprintf(out, "overall accuracy %.4f, kappa %.4f\n", r.Accuracy, r.Kappa)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "actual\\predicted\t")
	for c := 1; c <= classify.NumClasses; c++ {
		fmt.Fprintf(tw, "%d\t", c)
	}
	fmt.Fprintln(tw)
	for i, row := range r.Confusion {
		fmt.Fprintf(tw, "%s\t", classify.ClassName(i+1))
		for _, n := range row {
			fmt.Fprintf(tw, "%d\t", n)
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func handleStats(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	year := fs.Int("year", 0, "Year to summarise (required)")
	unitFlag := fs.String("units", units.Hectare, "Area units: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *year == 0 {
		return fmt.Errorf("-year is required")
	}
	unit, err := units.Parse(*unitFlag)
	if err != nil {
		return err
	}
	st, _, closeFn, err := openStudy(true)
	defer closeFn()
	if err != nil {
		return err
	}
	if err := st.train(ctx); err != nil {
		return err
	}
	res, err := st.engine.Zonal(ctx, *year)
	if errors.Is(err, zonal.ErrNoData) {
		fmt.Fprintf(out, "%d: no classified pixels\n", *year)
		return nil
	}
	if err != nil {
		return err
	}
	writeZonal(out, *year, res, unit)
	return nil
}

func writeZonal(out io.Writer, year int, res zonal.Result, unit string) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%d\tclass\tarea_%s\n", year, unit)
	for _, c := range res.Classes() {
		fmt.Fprintf(tw, "\t%s\t%.2f\n", classify.ClassName(c), units.ConvertArea(res[c], unit))
	}
	fmt.Fprintf(tw, "\ttotal\t%.2f\n", units.ConvertArea(res.Total(), unit))
	tw.Flush()
}

func handleChange(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("change", flag.ContinueOnError)
	from := fs.Int("from", 0, "Earlier year (required)")
	to := fs.Int("to", 0, "Later year (required)")
	limit := fs.Int("limit", change.DisplayLimit, "Transitions to print")
	html := fs.String("html", "", "Also write a bar chart of the transitions to this file")
	unitFlag := fs.String("units", units.Hectare, "Area units: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	// Checked before any imagery is loaded.
	if err := change.ValidateRange(*from, *to); err != nil {
		return err
	}
	if *limit < 1 {
		return fmt.Errorf("-limit must be positive")
	}
	unit, err := units.Parse(*unitFlag)
	if err != nil {
		return err
	}
	st, _, closeFn, err := openStudy(true)
	defer closeFn()
	if err != nil {
		return err
	}
	if err := st.train(ctx); err != nil {
		return err
	}
	rep, err := st.engine.Change(ctx, *from, *to)
	if err != nil {
		return err
	}
	writeChange(out, rep, *limit, unit)
	if *html != "" {
		return writeFile(*html, func(w io.Writer) error { return report.TransitionsHTML(w, rep, *limit) })
	}
	return nil
}

func writeChange(out io.Writer, rep *change.Report, limit int, unit string) {
	for _, y := range rep.NoData {
		fmt.Fprintf(out, "warning: %d has no classified pixels\n", y)
	}
	top := rep.Top(limit)
	fmt.Fprintf(out, "%d to %d: %d transitions above %.1f ha, showing %d\n",
		rep.Year1, rep.Year2, len(rep.Transitions), change.MinTransitionHa, len(top))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "from\tto\tarea_%s\n", unit)
	for _, tr := range top {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\n", classify.ClassName(tr.From), classify.ClassName(tr.To), units.ConvertArea(tr.AreaHa, unit))
	}
	fmt.Fprintf(tw, "\nclass\tnet_%s\t\n", unit)
	for c := 1; c <= classify.NumClasses; c++ {
		fmt.Fprintf(tw, "%s\t%+.2f\t\n", classify.ClassName(c), units.ConvertArea(rep.NetDelta[c], unit))
	}
	tw.Flush()
}

func handleTrend(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trend", flag.ContinueOnError)
	png := fs.String("png", "", "Write a line chart PNG to this file")
	html := fs.String("html", "", "Write an interactive HTML chart to this file")
	unitFlag := fs.String("units", units.Hectare, "Area units for the table: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	unit, err := units.Parse(*unitFlag)
	if err != nil {
		return err
	}
	st, _, closeFn, err := openStudy(true)
	defer closeFn()
	if err != nil {
		return err
	}
	if err := st.train(ctx); err != nil {
		return err
	}
	rows, err := st.engine.Trend(ctx)
	if errors.Is(err, zonal.ErrNoData) {
		fmt.Fprintln(out, "no classified pixels in any year")
		return nil
	}
	if err != nil {
		return err
	}
	writeTrend(out, rows, unit)

	const title = "Land cover area by class"
	if *png != "" {
		if err := validateOutputPath(*png); err != nil {
			return err
		}
		if err := report.SaveTrendPNG(*png, title, rows); err != nil {
			return err
		}
	}
	if *html != "" {
		return writeFile(*html, func(w io.Writer) error { return report.TrendHTML(w, title, rows) })
	}
	return nil
}

func writeTrend(out io.Writer, rows []trend.Row, unit string) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "year\tclass\tarea_%s\n", unit)
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\n", r.Year, r.ClassName, units.ConvertArea(r.AreaHa, unit))
	}
	tw.Flush()
}

// validateOutputPath keeps chart output inside the working or temp
// directory.
func validateOutputPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return security.ValidatePathWithinAllowedDirs(path, []string{cwd, os.TempDir()})
}

func writeFile(path string, render func(io.Writer) error) error {
	if err := validateOutputPath(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func handleRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	server := fs.String("server", "", "Query a running server instead of the local database")
	limit := fs.Int("limit", 20, "Number of runs to list (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var runs []db.Run
	if *server != "" {
		var err error
		runs, err = api.NewClient(*server, nil).Runs(ctx, *limit)
		if err != nil {
			return err
		}
	} else {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return err
		}
		defer database.Close()
		if runs, err = database.ListRuns(ctx, *limit); err != nil {
			return err
		}
	}
	writeRuns(out, runs)
	return nil
}

func writeRuns(out io.Writer, runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "run_id\tcreated\tclassifier\treference\taccuracy\tkappa")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%.4f\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Family, r.ReferenceYear, r.Accuracy, r.Kappa)
	}
	tw.Flush()
}

func handleMigrate(args []string, out io.Writer) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	return db.RunMigrateCommand(args, cfg.GetDBPath(), out)
}

func handleServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "Listen address (overrides the config)")
	trainFirst := fs.Bool("train", false, "Train before accepting requests")
	workers := fs.Int("export-workers", 2, "Background export workers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, database, closeFn, err := openStudy(true)
	defer closeFn()
	if err != nil {
		return err
	}
	addr := st.cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}
	if *trainFirst {
		if err := st.train(ctx); err != nil {
			return err
		}
	}

	exports := export.NewDispatcher(st.cfg.GetExportDir(), export.GeoTIFFWriter{}, 32)
	exports.Start(*workers)
	defer exports.Stop()

	mux := api.NewServer(st.engine, st.samples, database, exports).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	errc := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("[lulc] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		wg.Wait()
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	monitoring.Logf("[lulc] shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[lulc] HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("[lulc] HTTP server force close error: %v", err)
		}
	}
	wg.Wait()
	monitoring.Logf("[lulc] graceful shutdown complete")
	return nil
}
