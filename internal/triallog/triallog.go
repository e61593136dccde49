// Package triallog reads raw trial-log CSV files.
package triallog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MissingDataError reports a trial log that lacks required rows or
// columns for the fixed extraction layout.
type MissingDataError struct {
	Path   string
	Detail string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("incomplete trial log %s: %s", e.Path, e.Detail)
}

// Log is one parsed trial log: both response-time channels per trial,
// in file order.
type Log struct {
	Path         string
	WithRetry    []float64
	KeyboardOnly []float64
}

// Rows returns the number of data rows in the log.
func (l *Log) Rows() int {
	return len(l.WithRetry)
}

// Read parses the CSV trial log at path. The header must contain both
// named RT columns and the file must carry at least minRows data rows;
// violations are reported as MissingDataError values.
func Read(path, rtColumn, keyboardColumn string, minRows int) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trial log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of a read-only file.
			_ = cerr
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MissingDataError{Path: path, Detail: "missing header row"}
		}
		return nil, fmt.Errorf("failed to read trial log header %s: %w", path, err)
	}
	rtIdx, kbIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case rtColumn:
			rtIdx = i
		case keyboardColumn:
			kbIdx = i
		}
	}
	if rtIdx < 0 {
		return nil, &MissingDataError{Path: path, Detail: fmt.Sprintf("column %q not found in header", rtColumn)}
	}
	if kbIdx < 0 {
		return nil, &MissingDataError{Path: path, Detail: fmt.Sprintf("column %q not found in header", keyboardColumn)}
	}

	log := &Log{Path: path}
	row := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read trial log %s: %w", path, err)
		}
		row++
		if rtIdx >= len(record) || kbIdx >= len(record) {
			return nil, &MissingDataError{
				Path:   path,
				Detail: fmt.Sprintf("row %d has %d fields, RT columns not present", row, len(record)),
			}
		}
		withRetry, err := parseCell(record[rtIdx])
		if err != nil {
			return nil, &MissingDataError{
				Path:   path,
				Detail: fmt.Sprintf("row %d column %q: %q is not numeric", row, rtColumn, record[rtIdx]),
			}
		}
		keyboard, err := parseCell(record[kbIdx])
		if err != nil {
			return nil, &MissingDataError{
				Path:   path,
				Detail: fmt.Sprintf("row %d column %q: %q is not numeric", row, keyboardColumn, record[kbIdx]),
			}
		}
		log.WithRetry = append(log.WithRetry, withRetry)
		log.KeyboardOnly = append(log.KeyboardOnly, keyboard)
	}
	if row < minRows {
		return nil, &MissingDataError{
			Path:   path,
			Detail: fmt.Sprintf("%d data rows, need at least %d", row, minRows),
		}
	}
	return log, nil
}

func parseCell(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}
