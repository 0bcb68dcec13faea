package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/gridseer/gridseer/internal/adapter/http"
	"github.com/gridseer/gridseer/internal/adapter/nemweb"
	"github.com/gridseer/gridseer/internal/adapter/parquetstore"
	"github.com/gridseer/gridseer/internal/compiler"
	"github.com/gridseer/gridseer/internal/config"
	"github.com/gridseer/gridseer/internal/domain"
	"github.com/gridseer/gridseer/internal/observability"
	"github.com/gridseer/gridseer/internal/pipeline"
	"github.com/gridseer/gridseer/internal/processed"
	"github.com/gridseer/gridseer/internal/rawcache"
)

const usage = `usage: gridseer <command> [flags]

commands:
  runtimes   print the run window needed to cover a forecasted window
  months     list the months published in the archive
  tables     list the tables available for a forecast type and month
  download   fetch and normalize the archives a query touches
  compile    assemble query results from the raw cache
`

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics}

	var cmdErr error
	switch cmd := os.Args[1]; cmd {
	case "runtimes":
		cmdErr = a.runtimes(os.Args[2:])
	case "months":
		cmdErr = a.months(ctx, os.Args[2:])
	case "tables":
		cmdErr = a.tables(ctx, os.Args[2:])
	case "download":
		cmdErr = a.download(ctx, os.Args[2:])
	case "compile":
		cmdErr = a.compile(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", cmd, usage)
		os.Exit(2)
	}
	if cmdErr != nil {
		logger.Error("command failed", "command", os.Args[1], "error", cmdErr)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// queryFlags carries the flag values shared by download and compile.
type queryFlags struct {
	forecastType    string
	runStart, runEnd string
	forecastedStart string
	forecastedEnd   string
	tables          string
	rawCache        string
	processedCache  string
	keepCSV         bool
}

func (q *queryFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&q.forecastType, "forecast-type", "", "forecast type (P5MIN, PREDISPATCH, PDPASA, STPASA, MTPASA)")
	fs.StringVar(&q.runStart, "run-start", "", "first forecast run time, yyyy/mm/dd HH:MM")
	fs.StringVar(&q.runEnd, "run-end", "", "last forecast run time, yyyy/mm/dd HH:MM")
	fs.StringVar(&q.forecastedStart, "forecasted-start", "", "first forecasted time, yyyy/mm/dd HH:MM")
	fs.StringVar(&q.forecastedEnd, "forecasted-end", "", "last forecasted time, yyyy/mm/dd HH:MM")
	fs.StringVar(&q.tables, "tables", "", "comma-separated table names")
	fs.StringVar(&q.rawCache, "raw-cache", "", "directory for normalized archive files (required)")
	fs.StringVar(&q.processedCache, "processed-cache", "", "directory for compiled query results (optional)")
	fs.BoolVar(&q.keepCSV, "keep-csv", false, "keep extracted CSV files alongside the raw cache")
}

func (q *queryFlags) tableList() []string {
	var tables []string
	for _, t := range strings.Split(q.tables, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tables = append(tables, t)
		}
	}
	return tables
}

// query builds the validated query for compile, which needs both windows.
func (q *queryFlags) query() (domain.Query, error) {
	if q.rawCache == "" {
		return domain.Query{}, errors.New("-raw-cache is required")
	}
	return domain.NewQuery(q.runStart, q.runEnd, q.forecastedStart, q.forecastedEnd, q.forecastType, q.tableList())
}

// downloadQuery accepts either complete window as the entry point and
// generates the other from the forecast type's calendar rules.
func (q *queryFlags) downloadQuery() (domain.Query, error) {
	if q.rawCache == "" {
		return domain.Query{}, errors.New("-raw-cache is required")
	}
	haveRun := q.runStart != "" || q.runEnd != ""
	haveForecasted := q.forecastedStart != "" || q.forecastedEnd != ""
	switch {
	case haveRun && haveForecasted:
		// Both supplied in full: honor them as-is.
		if q.runStart == "" || q.runEnd == "" || q.forecastedStart == "" || q.forecastedEnd == "" {
			return domain.Query{}, errors.New("supply a complete run window, a complete forecasted window, or both")
		}
	case haveRun:
		if q.runStart == "" || q.runEnd == "" {
			return domain.Query{}, errors.New("-run-start and -run-end must be supplied together")
		}
		fs, fe, err := pipeline.GenerateForecastedTimes(q.runStart, q.runEnd, q.forecastType)
		if err != nil {
			return domain.Query{}, err
		}
		q.forecastedStart = fs.Format(domain.DateTimeFormat)
		q.forecastedEnd = fe.Format(domain.DateTimeFormat)
	case haveForecasted:
		if q.forecastedStart == "" || q.forecastedEnd == "" {
			return domain.Query{}, errors.New("-forecasted-start and -forecasted-end must be supplied together")
		}
		rs, re, err := pipeline.GenerateRunTimes(q.forecastedStart, q.forecastedEnd, q.forecastType)
		if err != nil {
			return domain.Query{}, err
		}
		q.runStart = rs.Format(domain.DateTimeFormat)
		q.runEnd = re.Format(domain.DateTimeFormat)
	default:
		return domain.Query{}, errors.New("supply a run window or a forecasted window")
	}
	return domain.NewQuery(q.runStart, q.runEnd, q.forecastedStart, q.forecastedEnd, q.forecastType, q.tableList())
}

func (a *app) buildPipeline(q *queryFlags) (*pipeline.Pipeline, error) {
	tables, err := config.LoadTables()
	if err != nil {
		return nil, err
	}
	store := parquetstore.NewStore()
	client := nemweb.NewClient(a.cfg, tables, a.logger, a.metrics)
	raw, err := rawcache.NewManager(q.rawCache, client, store, tables,
		a.cfg.DownloadWorkers, q.keepCSV, a.logger, a.metrics)
	if err != nil {
		return nil, err
	}

	var proc pipeline.ProcessedCache
	if q.processedCache != "" {
		c, err := processed.NewCache(q.processedCache, store, a.logger, a.metrics)
		if err != nil {
			return nil, err
		}
		proc = c
	}

	comp := compiler.New(tables, a.logger, a.metrics)
	return pipeline.New(client, raw, proc, comp, tables, a.logger), nil
}

func (a *app) runtimes(args []string) error {
	fs := flag.NewFlagSet("runtimes", flag.ExitOnError)
	forecastType := fs.String("forecast-type", "", "forecast type")
	start := fs.String("forecasted-start", "", "first forecasted time, yyyy/mm/dd HH:MM")
	end := fs.String("forecasted-end", "", "last forecasted time, yyyy/mm/dd HH:MM")
	if err := fs.Parse(args); err != nil {
		return err
	}

	runStart, runEnd, err := pipeline.GenerateRunTimes(*start, *end, *forecastType)
	if err != nil {
		return err
	}
	fmt.Printf("run_start: %s\nrun_end:   %s\n",
		runStart.Format(domain.DateTimeFormat), runEnd.Format(domain.DateTimeFormat))
	return nil
}

func (a *app) months(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("months", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	tables, err := config.LoadTables()
	if err != nil {
		return err
	}
	client := nemweb.NewClient(a.cfg, tables, a.logger, a.metrics)
	published, err := client.ListMonths(ctx)
	if err != nil {
		return err
	}

	var years []int
	for y := range published {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		parts := make([]string, len(published[y]))
		for i, m := range published[y] {
			parts[i] = fmt.Sprintf("%02d", m)
		}
		fmt.Printf("%d: %s\n", y, strings.Join(parts, " "))
	}
	return nil
}

func (a *app) tables(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tables", flag.ExitOnError)
	forecastType := fs.String("forecast-type", "", "forecast type")
	month := fs.String("month", "", "archive month, yyyy/mm")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ft, err := domain.ParseForecastType(*forecastType)
	if err != nil {
		return err
	}
	ym, err := parseYearMonth(*month)
	if err != nil {
		return err
	}

	cfgTables, err := config.LoadTables()
	if err != nil {
		return err
	}
	client := nemweb.NewClient(a.cfg, cfgTables, a.logger, a.metrics)
	names, err := client.ListTables(ctx, ym, ft)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func (a *app) download(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	var qf queryFlags
	qf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	q, err := qf.downloadQuery()
	if err != nil {
		return err
	}
	p, err := a.buildPipeline(&qf)
	if err != nil {
		return err
	}
	if err := p.Download(ctx, q); err != nil {
		return err
	}
	a.logger.Info("download complete", "forecast_type", q.ForecastType, "tables", strings.Join(q.Tables, ","))
	return nil
}

func (a *app) compile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	var qf queryFlags
	qf.register(fs)
	structureArg := fs.String("structure", string(domain.StructureFlat),
		"result structure: flat or multidimensional")
	if err := fs.Parse(args); err != nil {
		return err
	}

	structure, err := domain.ParseStructure(*structureArg)
	if err != nil {
		return err
	}
	q, err := qf.query()
	if err != nil {
		return err
	}
	p, err := a.buildPipeline(&qf)
	if err != nil {
		return err
	}

	results, err := p.Compile(ctx, q, structure)
	for table, res := range results {
		if res.Dataset != nil {
			a.logger.Info("table compiled",
				"table", table, "rows", res.Frame.NumRows(), "shape", fmt.Sprint(res.Dataset.Shape()))
			continue
		}
		a.logger.Info("table compiled", "table", table, "rows", res.Frame.NumRows())
	}
	return err
}

func parseYearMonth(s string) (domain.YearMonth, error) {
	t, err := time.Parse("2006/01", s)
	if err != nil {
		return domain.YearMonth{}, fmt.Errorf("invalid month %q, expected yyyy/mm", s)
	}
	return domain.YearMonth{Year: t.Year(), Month: t.Month()}, nil
}
