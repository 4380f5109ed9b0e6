// Package audit provides the append-only CSV sinks recording request
// retries and per-request timing. The files are flat tables so they can be
// inspected with ordinary spreadsheet tooling after a run.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// RetryLog appends one row per retried request.
type RetryLog struct {
	mu       sync.Mutex
	filename string
}

var retryHeaders = []string{"timestamp", "endpoint", "retry_count", "error_message"}

// NewRetryLog opens (creating if needed) the retry audit file.
func NewRetryLog(filename string) (*RetryLog, error) {
	l := &RetryLog{filename: filename}
	if err := ensureFile(filename, retryHeaders); err != nil {
		return nil, err
	}
	return l, nil
}

// LogRetry records a single retry attempt.
func (l *RetryLog) LogRetry(endpoint string, retryCount int, errMessage string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return appendRow(l.filename, []string{
		time.Now().Format(time.RFC3339),
		endpoint,
		strconv.Itoa(retryCount),
		errMessage,
	})
}

// RequestStats appends one row per completed request.
type RequestStats struct {
	mu       sync.Mutex
	filename string
}

var statsHeaders = []string{"timestamp", "endpoint", "duration", "status_code"}

// NewRequestStats opens (creating if needed) the request stats file.
func NewRequestStats(filename string) (*RequestStats, error) {
	s := &RequestStats{filename: filename}
	if err := ensureFile(filename, statsHeaders); err != nil {
		return nil, err
	}
	return s, nil
}

// AddStat records the duration and status of one request.
func (s *RequestStats) AddStat(endpoint string, duration time.Duration, statusCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRow(s.filename, []string{
		time.Now().Format(time.RFC3339),
		endpoint,
		strconv.FormatFloat(duration.Seconds(), 'f', 6, 64),
		strconv.Itoa(statusCode),
	})
}

func ensureFile(filename string, headers []string) error {
	if _, err := os.Stat(filename); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat audit file: %w", err)
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create audit file: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write audit headers: %w", err)
	}
	w.Flush()
	return w.Error()
}

func appendRow(filename string, row []string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	w.Flush()
	return w.Error()
}
