package format

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"
)

// errSkip marks a line as malformed.
type errSkip struct{ reason string }

func (e errSkip) Error() string { return e.reason }

func malformed(format string, args ...any) error {
	return errSkip{reason: fmt.Sprintf(format, args...)}
}

// mapFile maps path read-only. Empty files yield nil data and a no-op release.
func mapFile(path string) ([]byte, func(), error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &InputError{Path: path, Err: fmt.Errorf("%w: %w", ErrMissingInput, err)}
		}
		return nil, nil, &InputError{Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, &InputError{Path: path, Err: err}
	}
	if info.IsDir() {
		file.Close()
		return nil, nil, &InputError{Path: path, Err: fmt.Errorf("%w: is a directory", ErrMissingInput)}
	}
	if info.Size() == 0 {
		file.Close()
		return nil, func() {}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, nil, &InputError{Path: path, Err: fmt.Errorf("failed to mmap: %w", err)}
	}
	return data, func() {
		data.Unmap()
		file.Close()
	}, nil
}

// scan calls parse for every non-blank line of path. A parse error of type
// errSkip counts the line as skipped; any other error aborts the read.
func scan(path string, opts Options, parse func(line string) error) (Report, error) {
	report := Report{Path: path}

	data, release, err := mapFile(path)
	if err != nil {
		return report, err
	}
	defer release()

	lineNo := 0
	for len(data) > 0 {
		lineNo++
		var raw []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			raw, data = data[:i], data[i+1:]
		} else {
			raw, data = data, nil
		}
		raw = bytes.TrimRight(raw, "\r")
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		// string() copies out of the mapping before it is released.
		err := parse(string(raw))
		var skip errSkip
		switch {
		case err == nil:
			report.Records++
		case errors.As(err, &skip):
			report.Skipped++
			report.SkippedLines = append(report.SkippedLines, lineNo)
			opts.logger().Warn("skipping malformed record", "path", path, "line", lineNo, "reason", skip.reason)
		default:
			return report, &InputError{Path: path, Err: fmt.Errorf("line %d: %w", lineNo, err)}
		}
	}

	if opts.Strict && report.Skipped > 0 {
		return report, &InputError{
			Path: path,
			Err:  fmt.Errorf("%w: %d skipped, first at line %d", ErrMalformed, report.Skipped, report.SkippedLines[0]),
		}
	}
	if report.Skipped > 0 {
		opts.logger().Info("finished reading with skipped records", slog.String("path", path),
			slog.Int("records", report.Records), slog.Int("skipped", report.Skipped))
	}
	return report, nil
}
