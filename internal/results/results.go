// Package results accumulates per-block summaries into the wide
// results table and serializes it as CSV.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/abequet/Psycho-Tasks/internal/model"
)

// Blocks supported by the table layout.
const BlockCount = 2

// Header lists the output columns in serialization order.
var Header = []string{
	"participant_id",
	"block1_congruent_RT",
	"block1_incongruent_RT",
	"block1_dscore",
	"block1_congruent_std",
	"block1_incongruent_std",
	"block1_congruent_NBerrors",
	"block1_incongruent_NBerrors",
	"block2_congruent_RT",
	"block2_incongruent_RT",
	"block2_dscore",
	"block2_congruent_std",
	"block2_incongruent_std",
	"block2_congruent_NBerrors",
	"block2_incongruent_NBerrors",
}

// Row holds one participant's summaries. A nil block means that block
// was not run; its cells serialize empty, never as zero.
type Row struct {
	ParticipantID string
	Number        int
	Blocks        [BlockCount]*model.BlockSummary
}

// Table maps participant identifiers to rows. Each run owns one table.
type Table struct {
	rows map[string]*Row
}

// New returns an empty results table.
func New() *Table {
	return &Table{rows: map[string]*Row{}}
}

// Ensure registers a participant row, so that a participant discovered
// without any storable block still appears in the output.
func (t *Table) Ensure(id string, number int) {
	if _, ok := t.rows[id]; !ok {
		t.rows[id] = &Row{ParticipantID: id, Number: number}
	}
}

// Add stores one block summary into the participant's row. Block
// numbers outside 1..2 and blocks already filled by an earlier file
// are rejected so the caller can surface them; the first stored
// summary is never overwritten.
func (t *Table) Add(id string, number, block int, summary model.BlockSummary) error {
	if block < 1 || block > BlockCount {
		return fmt.Errorf("block %d for participant %s outside supported range 1-%d", block, id, BlockCount)
	}
	t.Ensure(id, number)
	if t.rows[id].Blocks[block-1] != nil {
		return fmt.Errorf("block %d for participant %s already stored; duplicate trial log", block, id)
	}
	s := summary
	t.rows[id].Blocks[block-1] = &s
	return nil
}

// Len returns the number of participant rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the rows ordered by ascending participant number.
func (t *Table) Rows() []*Row {
	rows := make([]*Row, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Number < rows[j].Number
	})
	return rows
}

// Archived flattens the table into per-block records for the run archive.
func (t *Table) Archived() []model.ArchivedBlock {
	var out []model.ArchivedBlock
	for _, row := range t.Rows() {
		for i, block := range row.Blocks {
			if block == nil {
				continue
			}
			out = append(out, model.ArchivedBlock{
				Participant: row.ParticipantID,
				Block:       i + 1,
				Summary:     *block,
			})
		}
	}
	return out
}

// WriteCSV serializes the table to path with a header row, writing a
// temp file first and renaming it into place.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "iat-results-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp results file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	w := csv.NewWriter(tmpFile)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("failed to write results header: %w", err)
	}
	for _, row := range t.Rows() {
		if err := w.Write(row.cells()); err != nil {
			return fmt.Errorf("failed to write results row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush results: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close results file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}

// ReadCSV loads a previously written results table.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of a read-only file.
			_ = cerr
		}
	}()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read results header: %w", err)
	}
	if len(header) != len(Header) {
		return nil, fmt.Errorf("results file %s has %d columns, expected %d", path, len(header), len(Header))
	}
	for i, col := range header {
		if col != Header[i] {
			return nil, fmt.Errorf("results file %s column %d is %q, expected %q", path, i+1, col, Header[i])
		}
	}

	table := New()
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read results row: %w", err)
		}
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("invalid results row in %s: %w", path, err)
		}
		table.rows[row.ParticipantID] = row
	}
	return table, nil
}

func (r *Row) cells() []string {
	cells := make([]string, 0, len(Header))
	cells = append(cells, r.ParticipantID)
	for _, block := range r.Blocks {
		if block == nil {
			cells = append(cells, "", "", "", "", "", "", "")
			continue
		}
		cells = append(cells,
			formatFloat(block.CongruentMean),
			formatFloat(block.IncongruentMean),
			formatFloat(block.DScore),
			formatFloat(block.CongruentStd),
			formatFloat(block.IncongruentStd),
			strconv.Itoa(block.CongruentErrors),
			strconv.Itoa(block.IncongruentErrors),
		)
	}
	return cells
}

func parseRow(record []string) (*Row, error) {
	if len(record) != len(Header) {
		return nil, fmt.Errorf("row has %d columns, expected %d", len(record), len(Header))
	}
	id := record[0]
	number, err := participantNumber(id)
	if err != nil {
		return nil, err
	}
	row := &Row{ParticipantID: id, Number: number}
	for b := 0; b < BlockCount; b++ {
		cells := record[1+b*7 : 1+(b+1)*7]
		if allEmpty(cells) {
			continue
		}
		var summary model.BlockSummary
		floats := []*float64{
			&summary.CongruentMean,
			&summary.IncongruentMean,
			&summary.DScore,
			&summary.CongruentStd,
			&summary.IncongruentStd,
		}
		for i, target := range floats {
			v, err := strconv.ParseFloat(cells[i], 64)
			if err != nil {
				return nil, fmt.Errorf("participant %s block %d: %w", id, b+1, err)
			}
			*target = v
		}
		if summary.CongruentErrors, err = strconv.Atoi(cells[5]); err != nil {
			return nil, fmt.Errorf("participant %s block %d: %w", id, b+1, err)
		}
		if summary.IncongruentErrors, err = strconv.Atoi(cells[6]); err != nil {
			return nil, fmt.Errorf("participant %s block %d: %w", id, b+1, err)
		}
		row.Blocks[b] = &summary
	}
	return row, nil
}

func participantNumber(id string) (int, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(id), "p")
	number, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("participant id %q is not of the form pNN", id)
	}
	return number, nil
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
