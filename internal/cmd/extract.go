package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bendaman/EvtFilter/internal/aggregate"
	"github.com/Bendaman/EvtFilter/internal/decoder"
	"github.com/Bendaman/EvtFilter/internal/discover"
	"github.com/Bendaman/EvtFilter/internal/filter"
	"github.com/Bendaman/EvtFilter/internal/model"
	"github.com/Bendaman/EvtFilter/internal/output"
	"github.com/Bendaman/EvtFilter/internal/pool"
	"github.com/Bendaman/EvtFilter/internal/report"
	"github.com/Bendaman/EvtFilter/internal/status"
	"github.com/Bendaman/EvtFilter/internal/worker"
)

// runOpts is the flag surface shared by extract and watch.
type runOpts struct {
	dir            string
	out            string
	startDate      string
	endDate        string
	eventIDs       string
	eventIDsFile   string
	excludeIDs     string
	excludeIDsFile string
	workers        int
	placeholder    string
	logparser      string
	logFile        string
	compress       bool
	sortOutput     bool
	reportPath     string
	statusAddr     string
}

var opts runOpts

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract events from a tree of .evt/.evtx files into one CSV",
	Long: `Extract recursively discovers event-log files under --dir, runs the
decoder tool on each across a worker pool, filters by time window and
EventID, and merges everything into a single CSV.

Examples:
  evtfilter extract --dir /evidence --output events.csv \
      --start-date "2024-03-01 00:00:00" --end-date "2024-03-02 00:00:00"
  evtfilter extract --dir /evidence --output events.csv.gz \
      --start-date 2024-03-01 --end-date 2024-03-02 --event-ids 4624,4625`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addRunFlags(extractCmd)
	extractCmd.Flags().BoolVar(&opts.sortOutput, "sort", false, "sort output by SourceFile for deterministic row order")
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&opts.dir, "dir", "", "root folder with .evt/.evtx files (searched recursively)")
	cmd.Flags().StringVar(&opts.out, "output", "", "destination CSV file (.gz for compressed)")
	cmd.Flags().StringVar(&opts.startDate, "start-date", "", `start datetime "YYYY-MM-DD HH:MM:SS"`)
	cmd.Flags().StringVar(&opts.endDate, "end-date", "", `end datetime "YYYY-MM-DD HH:MM:SS"`)
	cmd.Flags().StringVar(&opts.eventIDs, "event-ids", "", "comma-separated EventID list to include")
	cmd.Flags().StringVar(&opts.eventIDsFile, "event-ids-file", "", "file with EventID values to include, one per line")
	cmd.Flags().StringVar(&opts.excludeIDs, "exclude-event-ids", "", "comma-separated EventID list to exclude")
	cmd.Flags().StringVar(&opts.excludeIDsFile, "exclude-event-ids-file", "", "file with EventID values to exclude, one per line")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "parallel workers (default: CPU cores - 1)")
	cmd.Flags().StringVar(&opts.placeholder, "placeholder-char", "§", "char that replaces commas inside string fields")
	cmd.Flags().StringVar(&opts.logparser, "logparser", "", "path to the decoder tool (default: LogParser.exe on PATH)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write errors here (default: <output>.log)")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "gzip the output artifact")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write a JSON run report to this path")
	cmd.Flags().StringVar(&opts.statusAddr, "status-addr", "", "serve live run progress on this address (e.g. :8080)")

	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
}

// runSetup validates everything that must be right before any job runs.
// Failures here are fatal; nothing has been dispatched yet.
func runSetup() (filter.Window, map[int]struct{}, map[int]struct{}, rune, error) {
	window, err := filter.ParseWindow(opts.startDate, opts.endDate)
	if err != nil {
		return filter.Window{}, nil, nil, 0, err
	}

	include, err := filter.LoadIDSet(opts.eventIDs, opts.eventIDsFile)
	if err != nil {
		return filter.Window{}, nil, nil, 0, err
	}
	exclude, err := filter.LoadIDSet(opts.excludeIDs, opts.excludeIDsFile)
	if err != nil {
		return filter.Window{}, nil, nil, 0, err
	}

	runes := []rune(opts.placeholder)
	if len(runes) != 1 {
		return filter.Window{}, nil, nil, 0, fmt.Errorf("placeholder must be a single character, got %q", opts.placeholder)
	}

	return window, include, exclude, runes[0], nil
}

// decoderPath resolves the decoder tool: flag, then config/env, then
// the well-known binary name on PATH.
func decoderPath() string {
	if opts.logparser != "" {
		return opts.logparser
	}
	if p := viper.GetString("logparser"); p != "" {
		return p
	}
	return decoder.DefaultTool
}

func errorLogPath() string {
	if opts.logFile != "" {
		return opts.logFile
	}
	return opts.out + ".log"
}

func buildJobs(files []string, window filter.Window, include, exclude map[int]struct{}, placeholder rune) []model.Job {
	tool := decoderPath()
	jobs := make([]model.Job, len(files))
	for i, f := range files {
		jobs[i] = model.Job{
			SourceFile:  f,
			DecoderPath: tool,
			Start:       window.Start,
			End:         window.End,
			Include:     include,
			Exclude:     exclude,
			Delimiter:   ',',
			Placeholder: placeholder,
		}
	}
	return jobs
}

func runExtract(cmd *cobra.Command, args []string) error {
	started := time.Now()
	log := newConsoleLogger()

	// --- Graceful shutdown on interrupt ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn().Msg("interrupt received, abandoning remaining jobs")
		cancel()
	}()

	window, include, exclude, placeholder, err := runSetup()
	if err != nil {
		return err
	}

	// --- Discovery ---
	files := discover.Find(opts.dir, log)
	for _, pattern := range args {
		extra, err := discover.Expand(pattern)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		files = append(files, extra...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .evt/.evtx files under %s", opts.dir)
	}
	log.Info().Int("files", len(files)).Msg("scanning")

	// --- Pipeline ---
	rep := report.New(log, errorLogPath())
	runner := worker.New(rep, log)
	pl := pool.New(opts.workers, rep)

	if opts.statusAddr != "" {
		srv := status.New(rep, pl.Snapshot, opts.statusAddr)
		go func() {
			if err := srv.Start(); err != nil {
				log.Warn().Err(err).Msg("status server stopped")
			}
		}()
	}

	jobs := buildJobs(files, window, include, exclude, placeholder)
	results := pl.Run(ctx, jobs, runner.Process)

	// An interrupted run must never leave a misleadingly complete
	// artifact behind.
	if ctx.Err() != nil {
		rep.Close()
		log.Warn().Msg("run interrupted, no output written")
		return nil
	}

	stats := pl.Snapshot()
	written := len(results) > 0
	if !written {
		rep.Warn("no matching events found")
	}
	rep.Close()

	if written {
		if opts.sortOutput {
			aggregate.SortResults(results)
		}
		table := aggregate.Build(results)
		if err := aggregate.WriteCSV(table, opts.out, ',', opts.compress); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		log.Info().Int("rows", len(table.Rows)).Str("output", opts.out).Msg("done")
	}

	output.Render(os.Stderr, output.Summary{
		FilesScanned: len(files),
		FilesFailed:  stats.Failed,
		FilesEmpty:   stats.Empty,
		Rows:         stats.Rows,
		Output:       opts.out,
		Elapsed:      time.Since(started),
		Written:      written,
	})

	if opts.reportPath != "" {
		err := report.WriteRunReport(opts.reportPath, report.RunReport{
			Output:       opts.out,
			StartedAt:    started,
			Duration:     time.Since(started).String(),
			FilesScanned: len(files),
			FilesDone:    stats.Done,
			FilesFailed:  stats.Failed,
			FilesEmpty:   stats.Empty,
			Rows:         stats.Rows,
			Failures:     rep.FailureEntries(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("run report not written")
		}
	}

	return nil
}
