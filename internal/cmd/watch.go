package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Bendaman/EvtFilter/internal/aggregate"
	"github.com/Bendaman/EvtFilter/internal/discover"
	"github.com/Bendaman/EvtFilter/internal/model"
	"github.com/Bendaman/EvtFilter/internal/report"
	"github.com/Bendaman/EvtFilter/internal/worker"
)

// settleInterval is how long a file must keep a stable size before we
// treat it as fully copied into the watched tree.
const settleInterval = 250 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a folder and extract new event logs as they arrive",
	Long: `Watch processes every .evt/.evtx file already under --dir, then keeps
running: each log file dropped into the tree is decoded, filtered and merged
into the output CSV. The CSV is rewritten atomically after every file, so it
is always a complete snapshot. Stop with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addRunFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := newConsoleLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	window, include, exclude, placeholder, err := runSetup()
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := watchTree(w, opts.dir); err != nil {
		return err
	}

	rep := report.New(log, errorLogPath())
	defer rep.Close()
	runner := worker.New(rep, log)

	jobFor := func(path string) model.Job {
		return buildJobs([]string{path}, window, include, exclude, placeholder)[0]
	}

	var results []model.FileResult

	handle := func(path string) {
		res, err := runner.Process(ctx, jobFor(path))
		if err != nil {
			rep.Failure(path, err)
			return
		}
		if res == nil || len(res.Records) == 0 {
			return
		}
		results = append(results, *res)
		if err := rewriteOutput(results); err != nil {
			log.Error().Err(err).Msg("output not rewritten")
			return
		}
		log.Info().Str("file", path).Int("rows", len(res.Records)).Msg("merged")
	}

	// Catch up on everything already in the tree before going live.
	for _, f := range discover.Find(opts.dir, log) {
		if ctx.Err() != nil {
			return nil
		}
		handle(f)
	}

	log.Info().Str("dir", opts.dir).Msg("watching for new event logs")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watch stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if err := watchTree(w, ev.Name); err != nil {
					log.Warn().Err(err).Str("dir", ev.Name).Msg("subtree not watched")
				}
				continue
			}
			if !discover.IsEventLog(ev.Name) {
				continue
			}
			if err := waitSettled(ctx, ev.Name); err != nil {
				continue
			}
			handle(ev.Name)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// watchTree registers root and every directory below it.
func watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// waitSettled blocks until the file size stops changing, so a half-copied
// log is not handed to the decoder.
func waitSettled(ctx context.Context, path string) error {
	var last int64 = -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleInterval):
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == last {
			return nil
		}
		last = info.Size()
	}
}

// rewriteOutput replaces the artifact with a fresh merge of everything
// seen so far. Write-then-rename keeps readers from ever seeing a
// partial CSV.
func rewriteOutput(results []model.FileResult) error {
	aggregate.SortResults(results)
	table := aggregate.Build(results)

	// The tmp path loses any .gz suffix cue, so decide compression from
	// the final name too.
	compress := opts.compress || strings.HasSuffix(opts.out, ".gz")
	tmp := opts.out + ".tmp"
	if err := aggregate.WriteCSV(table, tmp, ',', compress); err != nil {
		return err
	}
	return os.Rename(tmp, opts.out)
}
