package report

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
	"github.com/qa-tracking/qa-report-tool/internal/qa/export"
	"github.com/qa-tracking/qa-report-tool/internal/qa/metrics"
	"github.com/qa-tracking/qa-report-tool/internal/qa/report"
	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
	"github.com/qa-tracking/qa-report-tool/internal/source"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

type Input struct {
	input         string
	sheet         string
	saveTo        string
	output        string
	title         string
	teams         []string
	sprints       []string
	testers       []string
	from          string
	to            string
	skipPDF       bool
	serve         bool
	serverAddress string
}

func NewCmdReport() *cobra.Command {
	data := Input{}
	cmd := &cobra.Command{
		Use:   "report [tracking.xlsx]",
		Short: "Create a report from the QA tracking sheet.",
		Long: `Create a report from the QA tracking sheet. The sheet is read from a local
file (.xlsx, .csv, optionally .xz compressed), from Google Sheets (--sheets-id)
or from a CSV export URL (--source-url). A local file given with a remote source
is used when the remote source is unavailable.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 0 {
				data.input = args[0]
			}
			if err := processResult(cmd.Context(), &data); err != nil {
				log.Error(errors.Wrap(err, "could not create the report"))
				os.Exit(1)
			}
		},
		Args: cobra.MaximumNArgs(1),
	}

	cmd.Flags().StringVarP(
		&data.sheet, "sheet", "", "",
		"Worksheet name of the .xlsx input, the first sheet when not set.",
	)
	cmd.Flags().StringVarP(
		&data.saveTo, "save-to", "s", "",
		"Save the report files to disk. Example: -s ./results",
	)
	cmd.Flags().StringVarP(
		&data.output, "output", "o", OutputText,
		"Output format: text, json or yaml.",
	)
	cmd.Flags().StringVarP(
		&data.title, "title", "", "",
		"Report title.",
	)
	cmd.Flags().StringSliceVarP(
		&data.teams, "team", "t", nil,
		"Select records of the team, can be repeated. Example: --team core --team web",
	)
	cmd.Flags().StringSliceVarP(
		&data.sprints, "sprint", "", nil,
		"Select records of the sprint, can be repeated.",
	)
	cmd.Flags().StringSliceVarP(
		&data.testers, "tester", "", nil,
		"Select records of the tester, can be repeated.",
	)
	cmd.Flags().StringVarP(
		&data.from, "from", "", "",
		"Select records tested on or after the date. Example: --from 2025-03-01",
	)
	cmd.Flags().StringVarP(
		&data.to, "to", "", "",
		"Select records tested on or before the date. Example: --to 31/03/2025",
	)
	cmd.Flags().BoolVarP(
		&data.skipPDF, "skip-pdf", "", false,
		"Do not create the PDF report when --save-to is used.",
	)
	cmd.Flags().BoolVarP(
		&data.serve, "serve", "", false,
		"Serve the saved report over HTTP. Requires --save-to.",
	)
	cmd.Flags().StringVarP(
		&data.serverAddress, "server-address", "", "127.0.0.1:9090",
		"HTTP server address used by --serve.",
	)
	return cmd
}

// sourceOptions merges the command input with the global source settings.
func sourceOptions(input *Input) source.Options {
	return source.Options{
		Input:             input.input,
		Sheet:             input.sheet,
		SheetsID:          viper.GetString("sheets-id"),
		SheetsRange:       viper.GetString("sheets-range"),
		SheetsCredentials: viper.GetString("sheets-credentials"),
		URL:               viper.GetString("source-url"),
		CacheTTL:          viper.GetDuration("cache-ttl"),
	}
}

// parseFilter builds the record filter from the command flags.
func parseFilter(input *Input) (dataset.Filter, error) {
	f := dataset.Filter{
		Teams:   input.teams,
		Sprints: input.sprints,
		Testers: input.testers,
	}
	var err error
	if f.From, err = parseFlagDate("from", input.from); err != nil {
		return f, err
	}
	if f.To, err = parseFlagDate("to", input.to); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, errors.Errorf("--to %s is before --from %s", input.to, input.from)
	}
	return f, nil
}

func parseFlagDate(name, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t := dataset.ParseDate(value)
	if t.IsZero() {
		return t, errors.Errorf("invalid date for --%s: %q", name, value)
	}
	return t, nil
}

func checkFlags(input *Input) error {
	switch input.output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return errors.Errorf("unsupported output format %q", input.output)
	}
	if input.serve && input.saveTo == "" {
		log.Warnf("--serve requires --save-to, the report server is not started.")
		input.serve = false
	}
	return nil
}

// newExporter creates the chart exporter, the close function stops the
// browser when one was launched.
func newExporter() (*export.Exporter, func()) {
	browser := export.NewBrowserRasterizer(viper.GetString("browser-bin"))
	exp := export.NewExporter(map[export.Renderer]export.Rasterizer{
		export.RendererBrowser: browser,
		export.RendererStatic:  export.StaticRasterizer{},
	})
	if minBytes := viper.GetInt("export-min-bytes"); minBytes > 0 {
		exp.MinBytes = minBytes
	}
	if timeout := viper.GetDuration("export-timeout"); timeout > 0 {
		exp.Timeout = timeout
	}
	return exp, func() {
		if err := browser.Close(); err != nil {
			log.Warnf("Unable to close the browser: %v", err)
		}
	}
}

// buildReport reads the source and creates the populated report.
func buildReport(ctx context.Context, input *Input, src source.Source, timers *metrics.Timers) (*report.Report, error) {
	filter, err := parseFilter(input)
	if err != nil {
		return nil, err
	}

	log.Debugf("Report/Source: reading %s", src.Name())
	timers.Start("source-fetch")
	rows, err := src.Fetch(ctx)
	timers.Stop("source-fetch")
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", src.Name())
	}

	ds, err := dataset.Parse(rows)
	if err != nil {
		return nil, err
	}
	cs := &summary.ConsolidatedSummary{
		Dataset: ds,
		Filter:  filter,
		Timers:  timers,
		Source:  src.Name(),
	}
	log.Debug("Report/Summary: processing records")
	if err := cs.Process(); err != nil {
		return nil, err
	}
	for _, w := range cs.Warnings {
		log.Warn(w)
	}

	re := report.NewReport(input.title)
	log.Debug("Report/Populate: building report")
	if err := re.Populate(cs); err != nil {
		return nil, err
	}
	return re, nil
}

// saveReport writes the report files to --save-to. exp is nil when the PDF
// is skipped.
func saveReport(ctx context.Context, input *Input, re *report.Report, exp *export.Exporter) error {
	files, err := re.SaveResults(ctx, input.saveTo, report.SaveOptions{
		SkipPDF:  input.skipPDF,
		Exporter: exp,
	})
	if err != nil {
		return err
	}
	for _, f := range files {
		log.Infof("Report file saved: %s", f)
	}
	return nil
}

// processResult reads the tracking sheet and shows it as a report.
func processResult(ctx context.Context, input *Input) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := checkFlags(input); err != nil {
		return err
	}
	if _, err := parseFilter(input); err != nil {
		return err
	}
	if input.output == OutputText {
		log.Println("Creating report...")
	}
	timers := metrics.NewTimers()
	timers.Start("report-total")

	src, err := source.New(ctx, sourceOptions(input))
	if err != nil {
		return err
	}
	re, err := buildReport(ctx, input, src, timers)
	if err != nil {
		return err
	}

	var exp *export.Exporter
	if input.saveTo != "" {
		if !input.skipPDF {
			var closeExporter func()
			exp, closeExporter = newExporter()
			defer closeExporter()
		}
		if err := saveReport(ctx, input, re, exp); err != nil {
			return err
		}
	}
	timers.Stop("report-total")

	switch input.output {
	case OutputJSON:
		out, err := re.ShowJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
	case OutputYAML:
		out, err := re.ShowYAML()
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		if err := showReport(os.Stdout, re); err != nil {
			return err
		}
	}

	if input.serve {
		return serveReport(input.serverAddress, newReportHandler(ctx, input, src, exp))
	}
	if input.saveTo != "" && input.output == OutputText {
		log.Infof("To read the report open your browser and navigate to file://%s", absPath(filepath.Join(input.saveTo, report.ReportFileNameHTML)))
	}
	return nil
}

// newReportHandler serves the saved report. GET /refresh rebuilds it from
// src, rows kept by a remote source cache are reused until they expire;
// /refresh?force=true drops them first.
func newReportHandler(ctx context.Context, input *Input, src source.Source, exp *export.Exporter) http.Handler {
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(input.saveTo)))
	mux.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
			if source.Invalidate(src) {
				log.Infof("Report/Refresh: cached rows of %s dropped", src.Name())
			}
		}
		re, err := buildReport(ctx, input, src, metrics.NewTimers())
		if err == nil {
			err = saveReport(ctx, input, re, exp)
		}
		if err != nil {
			log.Error(errors.Wrap(err, "could not refresh the report"))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/"+report.ReportFileNameHTML, http.StatusSeeOther)
	})
	return mux
}

func serveReport(address string, handler http.Handler) error {
	log.Infof("The report server is available in http://%s/%s", address, report.ReportFileNameHTML)
	log.Infof("Reload the data with http://%s/refresh (add ?force=true to skip the cache)", address)
	if err := http.ListenAndServe(address, handler); err != nil {
		return errors.Wrapf(err, "unable to start the report server at address %s", address)
	}
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
