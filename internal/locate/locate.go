// Package locate discovers trial-log files and resolves participant and
// block identity from their names.
package locate

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	participantRe = regexp.MustCompile(`(?i)p(\d{2})(?:\D|$)`)
	blockRe       = regexp.MustCompile(`(?i)block(\d+)`)
)

// PatternError reports a filename whose block identity cannot be
// resolved by either the block token or the trailing-digit fallback.
type PatternError struct {
	Path   string
	Reason string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("unresolvable filename %s: %s", e.Path, e.Reason)
}

// File is one trial-log file with its resolved block number.
type File struct {
	Path  string
	Block int
}

// Participant groups the trial logs belonging to one participant code.
type Participant struct {
	ID     string
	Number int
	Files  []File
}

// Result is the outcome of a directory scan. Warnings report files that
// were skipped or resolved by fallback rules.
type Result struct {
	Participants []Participant
	Warnings     []string
}

// Scan walks root for CSV trial logs and groups them by participant,
// ordered by ascending participant number. A file without a participant
// code is skipped with a warning; a file whose block number cannot be
// resolved aborts the scan with a PatternError.
func Scan(root string) (Result, error) {
	var res Result
	byNumber := map[int]*Participant{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		name := d.Name()
		m := participantRe.FindStringSubmatch(name)
		if m == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no participant code in %s; file skipped", path))
			return nil
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			return fmt.Errorf("failed to parse participant code in %s: %w", path, err)
		}
		block, warning, err := resolveBlock(path, name)
		if err != nil {
			return err
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		p, ok := byNumber[number]
		if !ok {
			p = &Participant{ID: fmt.Sprintf("p%02d", number), Number: number}
			byNumber[number] = p
		}
		p.Files = append(p.Files, File{Path: path, Block: block})
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	numbers := make([]int, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	res.Participants = make([]Participant, 0, len(numbers))
	for _, n := range numbers {
		res.Participants = append(res.Participants, *byNumber[n])
	}
	return res, nil
}

// resolveBlock reads the block number from a "block<N>" token, falling
// back to a trailing digit before the extension. The fallback is a
// positional guess, so it always produces a warning.
func resolveBlock(path, name string) (int, string, error) {
	if m := blockRe.FindStringSubmatch(name); m != nil {
		block, err := strconv.Atoi(m[1])
		if err == nil {
			return block, "", nil
		}
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem != "" {
		last := stem[len(stem)-1]
		if last >= '0' && last <= '9' {
			warning := fmt.Sprintf("block number for %s inferred from trailing digit %q", path, string(last))
			return int(last - '0'), warning, nil
		}
	}
	return 0, "", &PatternError{Path: path, Reason: "no block token and no trailing block digit"}
}
