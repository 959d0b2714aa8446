// Package format reads and writes the plain-text files exchanged with the
// rest of the retrieval pipeline.
package format

import (
	"errors"
	"fmt"
	"log/slog"

	"harshagw/bm25eval/internal/logging"
)

var (
	ErrMissingInput = errors.New("missing input")
	ErrMalformed    = errors.New("malformed records")
)

// InputError ties a read failure to the file it came from.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Report summarizes one parsed file. Skipped records were malformed and
// left out; SkippedLines holds their 1-based line numbers.
type Report struct {
	Path         string
	Records      int
	Skipped      int
	SkippedLines []int
}

// Options control how readers treat malformed records.
type Options struct {
	// Strict turns any skipped record into an error.
	Strict bool
	// Logger receives skipped-record warnings; nil uses the default logger.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.WithComponent("format")
}
