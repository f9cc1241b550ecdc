// Package bulk runs one operation per id with bounded concurrency and
// collects a per-item result.
//
// The default concurrency is 1, which makes a run strictly sequential: each
// item finishes before the next one starts. With StopOnError set, the first
// failure cancels the run and items that had not started are reported as
// skipped.
package bulk

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ErrSkipped marks items that never ran because an earlier item failed.
var ErrSkipped = errors.New("skipped after earlier failure")

// Options configures a run.
type Options struct {
	// Concurrency is the maximum number of items in flight (values < 1 mean 1).
	Concurrency int

	// StopOnError aborts the remaining items after the first failure.
	StopOnError bool
}

// Func is the per-item operation.
type Func func(ctx context.Context, id string) error

// Result is the outcome of one item.
type Result struct {
	ID      string
	Err     error
	Skipped bool
}

// Report collects results in input order.
type Report struct {
	Results []Result
}

// Succeeded returns the ids that completed without error.
func (r *Report) Succeeded() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Err == nil && !res.Skipped {
			ids = append(ids, res.ID)
		}
	}
	return ids
}

// Failed returns the results of items that ran and failed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil && !res.Skipped {
			out = append(out, res)
		}
	}
	return out
}

// Skipped returns the ids that never ran.
func (r *Report) Skipped() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Skipped {
			ids = append(ids, res.ID)
		}
	}
	return ids
}

// Err aggregates every failure, or returns nil when all items succeeded.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, res := range r.Failed() {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", res.ID, res.Err))
	}
	return merr.ErrorOrNil()
}

// Run applies fn to every id. onResult, when non-nil, is called as each item
// settles; with Concurrency 1 that is in input order.
func Run(ctx context.Context, ids []string, opts Options, fn Func, onResult func(Result)) *Report {
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	report := &Report{Results: make([]Result, len(ids))}
	for i, id := range ids {
		report.Results[i] = Result{ID: id, Skipped: true, Err: ErrSkipped}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	notify := make(chan Result)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range notify {
			if onResult != nil {
				onResult(res)
			}
		}
	}()

	for i, id := range ids {
		i, id := i, id
		if opts.StopOnError && gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if opts.StopOnError && gctx.Err() != nil {
				return nil
			}
			err := fn(gctx, id)
			res := Result{ID: id, Err: err}
			report.Results[i] = res
			notify <- res
			if err != nil && opts.StopOnError {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	close(notify)
	<-done

	return report
}
