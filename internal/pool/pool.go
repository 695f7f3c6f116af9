package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Bendaman/EvtFilter/internal/model"
)

// Work executes one job to completion and returns its result. A nil
// error with zero records is a valid empty outcome; an error marks the
// job failed. Work must not panic across job boundaries — but if it
// does, the pool contains it.
type Work func(ctx context.Context, job model.Job) (*model.FileResult, error)

// ErrorSink receives per-job failures. Satisfied by report.Reporter.
type ErrorSink interface {
	Failure(source string, err error)
}

// Stats is a point-in-time snapshot of run progress.
type Stats struct {
	Total  int64 `json:"total"`
	Done   int64 `json:"done"`
	Failed int64 `json:"failed"`
	Empty  int64 `json:"empty"`
	Rows   int64 `json:"rows"`
}

// Pool runs one job per discovered file across a bounded set of
// workers. Jobs are independent; one job's failure is contained at the
// worker boundary and never reaches the others.
type Pool struct {
	workers int
	sink    ErrorSink

	total  int64
	done   int64
	failed int64
	empty  int64
	rows   int64
}

// DefaultWorkers is the configured default pool size: available
// execution units minus one, minimum one.
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// New creates a pool with the given size; zero or negative means the
// default.
func New(workers int, sink ErrorSink) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{workers: workers, sink: sink}
}

// Snapshot returns the current progress counters. Safe to call from any
// goroutine while the pool runs.
func (p *Pool) Snapshot() Stats {
	return Stats{
		Total:  atomic.LoadInt64(&p.total),
		Done:   atomic.LoadInt64(&p.done),
		Failed: atomic.LoadInt64(&p.failed),
		Empty:  atomic.LoadInt64(&p.empty),
		Rows:   atomic.LoadInt64(&p.rows),
	}
}

// Run executes every job and collects the non-empty results in
// completion order. It blocks until all jobs finish or the context is
// cancelled; on cancellation remaining jobs are abandoned and in-flight
// ones run to completion.
func (p *Pool) Run(ctx context.Context, jobs []model.Job, work Work) []model.FileResult {
	atomic.StoreInt64(&p.total, int64(len(jobs)))

	jobCh := make(chan model.Job)
	resultCh := make(chan *model.FileResult)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if res := p.runOne(ctx, job, work); res != nil {
					resultCh <- res
				}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var results []model.FileResult
	for res := range resultCh {
		results = append(results, *res)
	}
	return results
}

// runOne isolates a single job: errors are routed to the sink, panics
// are recovered so a crashed job never takes the queue down, and only a
// non-empty result comes back.
func (p *Pool) runOne(ctx context.Context, job model.Job, work Work) (out *model.FileResult) {
	// done counts every finished job, panics included, so Done can
	// always reach Total.
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.failed, 1)
			p.sink.Failure(job.SourceFile, fmt.Errorf("worker panic: %v", r))
			out = nil
		}
		atomic.AddInt64(&p.done, 1)
	}()

	res, err := work(ctx, job)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
		p.sink.Failure(job.SourceFile, err)
		return nil
	}
	if res == nil || len(res.Records) == 0 {
		atomic.AddInt64(&p.empty, 1)
		return nil
	}
	atomic.AddInt64(&p.rows, int64(len(res.Records)))
	return res
}
