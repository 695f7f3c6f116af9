package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Bendaman/EvtFilter/internal/decoder"
	"github.com/Bendaman/EvtFilter/internal/filter"
	"github.com/Bendaman/EvtFilter/internal/model"
	"github.com/Bendaman/EvtFilter/internal/report"
	"github.com/Bendaman/EvtFilter/internal/stage"
)

// Runner executes single extraction jobs: safe staging, the external
// decoder invocation, result decoding and filtering. One Runner is
// shared by all pool workers; it holds no per-job state.
type Runner struct {
	rep *report.Reporter
	log zerolog.Logger
}

func New(rep *report.Reporter, log zerolog.Logger) *Runner {
	return &Runner{rep: rep, log: log}
}

// Process runs one job end to end and returns the surviving records.
// The staged copy and its temp directory are removed on every exit
// path. A zero-event file or an empty time window is a valid empty
// result, not an error.
func (r *Runner) Process(ctx context.Context, job model.Job) (*model.FileResult, error) {
	st, err := stage.Stage(job.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("staging: %w", err)
	}
	defer st.Cleanup()

	dst := filepath.Join(st.Dir(), "lp.xml")

	if _, err := decoder.Run(ctx, job.DecoderPath, st.Path, dst); err != nil {
		return nil, err
	}

	if fi, err := os.Stat(dst); err != nil || fi.Size() == 0 {
		r.rep.Info(job.SourceFile, "log contained 0 events")
		return &model.FileResult{SourceFile: job.SourceFile}, nil
	}

	doc, err := decoder.ReadRows(dst)
	if err != nil {
		if errors.Is(err, decoder.ErrNoRows) {
			r.rep.Info(job.SourceFile, "no events in selected time-window")
			return &model.FileResult{SourceFile: job.SourceFile}, nil
		}
		return nil, fmt.Errorf("read decoder output: %w", err)
	}

	res := filter.Apply(doc, job)
	r.log.Debug().
		Str("source", job.SourceFile).
		Int("rows", len(res.Records)).
		Msg("file processed")
	return res, nil
}
