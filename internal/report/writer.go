package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/logger"
)

// TimestampLayout is the UTC timestamp embedded in report filenames.
const TimestampLayout = "20060102T150405Z"

// PersistenceError wraps any failure to write a report.
type PersistenceError struct {
	Domain string
	Path   string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist report for %s to %s: %v", e.Domain, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Writer persists reports into one directory, one file per call.
type Writer struct {
	dir    string
	format Format
	now    func() time.Time
	logger *logger.Logger
}

func NewWriter(cfg config.ReportConfig, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNop()
	}
	format := Format(cfg.Format)
	if format == "" {
		format = FormatJSON
	}
	return &Writer{
		dir:    cfg.Dir,
		format: format,
		now:    time.Now,
		logger: log.WithComponent("report"),
	}
}

// WithClock replaces the clock used for filenames.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

func (w *Writer) Dir() string { return w.dir }

// Filename returns the file name of a report generated at t, without directory.
func Filename(domain string, t time.Time, format Format) string {
	return fmt.Sprintf("%s_%s.%s", strings.ReplaceAll(domain, ".", "_"), t.UTC().Format(TimestampLayout), format)
}

// Write encodes the report and writes it atomically. It returns the path written.
func (w *Writer) Write(domain string, r Report) (string, error) {
	path := filepath.Join(w.dir, Filename(domain, w.now(), w.format))
	fail := func(err error) (string, error) {
		return "", &PersistenceError{Domain: domain, Path: path, Err: err}
	}

	data, err := Encode(r, w.format)
	if err != nil {
		return fail(fmt.Errorf("encode: %w", err))
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(w.dir, ".asm-report-*.tmp")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(err)
	}

	w.logger.Infow("Report written",
		"domain", domain,
		"path", path,
		"bytes", len(data),
	)
	return path, nil
}
