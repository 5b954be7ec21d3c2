package batch

import (
	"context"

	"go.uber.org/zap"

	"jpegfit/internal/convert"
)

// Converter performs the terminal action for one input file.
type Converter interface {
	Convert(ctx context.Context, path string) (convert.Outcome, error)
}

type Options struct {
	// Workers bounds the number of jobs in flight. Zero or less starts one
	// goroutine per file.
	Workers   int
	Converter Converter
	Logger    *zap.Logger
}

type Job struct {
	Index int
	Path  string
	Name  string
}

type Result struct {
	Job
	Outcome convert.Outcome
	Err     error
}

type Summary struct {
	Total     int
	Completed int
	Copied    int
	Encoded   int
	Failed    int
	BytesIn   int64
	BytesOut  int64
}

// ProgressUpdate is sent by the collector only; consumers may render it
// without further locking.
type ProgressUpdate struct {
	TotalDelta     int
	CompletedDelta int
	FailedDelta    int
	Name           string
	Err            error
}
