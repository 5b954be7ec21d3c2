package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"jpegfit/internal/convert"
	"jpegfit/internal/logging"
	"jpegfit/internal/workers"
)

// Run converts every file through opts.Converter on a pool of workers and
// blocks until all of them are done. A single collector goroutine owns the
// completion count and is the only sender on updates.
//
// A failing or panicking job is recorded in its Result and never stops the
// batch. When ctx is cancelled no new jobs start; Run then returns ctx.Err()
// alongside the partial summary.
func Run(ctx context.Context, files []string, opts Options, updates chan<- ProgressUpdate) (Summary, []Result, error) {
	summary := Summary{Total: len(files)}
	if opts.Converter == nil {
		return summary, nil, errors.New("batch: no converter")
	}
	if len(files) == 0 {
		return summary, nil, nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	if updates != nil {
		updates <- ProgressUpdate{TotalDelta: len(files)}
	}

	poolSize := workers.ForFiles(opts.Workers, len(files))
	logger.Debug("starting batch", zap.Int("files", len(files)), zap.Int("workers", poolSize))

	jobs := make(chan Job)
	results := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(poolSize)
	for i := 0; i < poolSize; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, opts.Converter)
		}()
	}

	var collected []Result
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			summary.Completed++
			summary.BytesIn += res.Outcome.InputSize
			update := ProgressUpdate{CompletedDelta: 1, Name: res.Name}
			if res.Err != nil {
				summary.Failed++
				update.FailedDelta = 1
				update.Err = res.Err
				logger.Warn("conversion failed", zap.String("file", res.Name), zap.Error(res.Err))
			} else {
				summary.BytesOut += res.Outcome.OutputSize
				switch res.Outcome.Action {
				case convert.ActionCopied:
					summary.Copied++
				case convert.ActionEncoded:
					summary.Encoded++
				}
			}
			collected = append(collected, res)
			if updates != nil {
				updates <- update
			}
		}
	}()

	go func() {
		defer close(jobs)
		for i, path := range files {
			job := Job{Index: i, Path: path, Name: filepath.Base(path)}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	sort.Slice(collected, func(i, j int) bool { return collected[i].Index < collected[j].Index })

	if err := ctx.Err(); err != nil && summary.Completed < summary.Total {
		return summary, collected, err
	}
	return summary, collected, nil
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- Result, conv Converter) {
	for job := range jobs {
		if ctx.Err() != nil {
			continue
		}
		results <- runJob(ctx, job, conv)
	}
}

func runJob(ctx context.Context, job Job, conv Converter) (res Result) {
	res.Job = job
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic while converting %s: %v", job.Name, r)
		}
	}()
	res.Outcome, res.Err = conv.Convert(ctx, job.Path)
	return res
}

// Failures returns the failed results in input order.
func Failures(results []Result) []Result {
	var failed []Result
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
