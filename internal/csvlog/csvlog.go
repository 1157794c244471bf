// Package csvlog implements the rolling CSV sample log:
// opened on StartStream ack, closed on StopStream ack or shutdown, and
// rotated whenever the current file exceeds MaxBytes. The rotation check
// runs on a robfig/cron schedule rather than a bare ticker, the way several
// pack repos schedule recurring maintenance sweeps, so the check cadence is
// declarative and easy to reason about independent of writer goroutines.
package csvlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/kstaniek/neuroguard/internal/metrics"
)

// MaxBytes is the rotation threshold: 2 MiB.
const MaxBytes int64 = 2 * 1024 * 1024

// nowFunc is overridable for tests.
var nowFunc = timeNowRFC

// Writer appends classifier decision records to a rolling CSV file.
type Writer struct {
	mu      sync.Mutex
	dir     string
	debug   bool
	prefix  string
	index   int
	file    *os.File
	buf     *bufio.Writer
	written int64

	cr      *cron.Cron
	entryID cron.EntryID
}

// Open creates dir if needed and opens the first rotation of a new rolling
// log. debug selects the verbose (host-timestamp-included) record format.
func Open(dir string, debug bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvlog: mkdir: %w", err)
	}
	w := &Writer{dir: dir, debug: debug, prefix: nowFunc()}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	w.cr = cron.New()
	id, err := w.cr.AddFunc("@every 10s", w.checkRotate)
	if err != nil {
		_ = w.file.Close()
		return nil, fmt.Errorf("csvlog: schedule rotation: %w", err)
	}
	w.entryID = id
	w.cr.Start()
	return w, nil
}

func (w *Writer) fileName() string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%d.csv", w.prefix, w.index))
}

func (w *Writer) openFile() error {
	f, err := os.OpenFile(w.fileName(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("csvlog: open: %w", err)
	}
	info, _ := f.Stat()
	w.file = f
	w.buf = bufio.NewWriter(f)
	if info != nil {
		w.written = info.Size()
	} else {
		w.written = 0
	}
	return nil
}

// WriteRecord appends one classifier-decision record.
func (w *Writer) WriteRecord(hostTimestampMs int64, deviceTimestamp uint32, microvolts float64, seizureDetected, therapyOn bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var line string
	if w.debug {
		line = fmt.Sprintf("%d,%d,%g,%t,%t\n", hostTimestampMs, deviceTimestamp, microvolts, seizureDetected, therapyOn)
	} else {
		line = fmt.Sprintf("%d,%g,%t,%t\n", deviceTimestamp, microvolts, seizureDetected, therapyOn)
	}
	n, err := w.buf.WriteString(line)
	if err != nil {
		return fmt.Errorf("csvlog: write: %w", err)
	}
	w.written += int64(n)
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("csvlog: flush: %w", err)
	}
	if w.written > MaxBytes {
		return w.rotateLocked()
	}
	return nil
}

func (w *Writer) checkRotate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written > MaxBytes {
		_ = w.rotateLocked()
	}
}

func (w *Writer) rotateLocked() error {
	_ = w.buf.Flush()
	_ = w.file.Close()
	w.index++
	if err := w.openFile(); err != nil {
		return err
	}
	metrics.IncCSVRotation()
	return nil
}

// Close flushes and closes the current file and stops the rotation
// scheduler.
func (w *Writer) Close() error {
	if w.cr != nil {
		w.cr.Stop()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
