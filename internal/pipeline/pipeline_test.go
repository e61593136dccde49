package pipeline

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abequet/Psycho-Tasks/internal/model"
	"github.com/abequet/Psycho-Tasks/internal/triallog"
)

func testRunConfig(root string) model.RunConfig {
	return model.RunConfig{
		InputRoot: root,
		Scoring: model.ScoringConfig{
			RetryPenaltyMs:   600,
			ClipMinMs:        300,
			ClipMaxMs:        3000,
			ExcludeLeading:   1,
			RTColumn:         "rt",
			RTKeyboardColumn: "rt_keyboard",
			Congruent:        model.DefaultCongruent,
			Incongruent:      model.DefaultIncongruent,
		},
	}
}

// writeTrialLog writes a 160-row log where both segments carry constant
// matching channels at the given values and filler rows sit at 1000.
func writeTrialLog(t *testing.T, path string, congruent, incongruent float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("trial,rt,rt_keyboard\n")
	for row := 1; row <= 160; row++ {
		v := 1000.0
		if row >= model.DefaultCongruent.Start && row <= model.DefaultCongruent.End {
			v = congruent
		}
		if row >= model.DefaultIncongruent.Start && row <= model.DefaultIncongruent.End {
			v = incongruent
		}
		fmt.Fprintf(&b, "%d,%g,%g\n", row, v, v)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write trial log: %v", err)
	}
}

func TestRunScoresTree(t *testing.T) {
	root := t.TempDir()
	writeTrialLog(t, filepath.Join(root, "IAT_p05_block1.csv"), 500, 700)
	writeTrialLog(t, filepath.Join(root, "IAT_p05_block2.csv"), 450, 650)
	writeTrialLog(t, filepath.Join(root, "IAT_p11_1.csv"), 520, 510) // fallback block digit

	outcome, err := Run(testRunConfig(root))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Participants != 2 {
		t.Fatalf("expected 2 participants, got %d", outcome.Participants)
	}
	if outcome.Files != 3 {
		t.Fatalf("expected 3 scored files, got %d", outcome.Files)
	}

	rows := outcome.Table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	p05 := rows[0]
	if p05.ParticipantID != "p05" {
		t.Fatalf("unexpected first row: %s", p05.ParticipantID)
	}
	if p05.Blocks[0] == nil || p05.Blocks[1] == nil {
		t.Fatalf("expected both blocks for p05")
	}
	if math.Abs(p05.Blocks[0].DScore-(-200)) > 1e-9 {
		t.Fatalf("expected block1 dscore -200, got %v", p05.Blocks[0].DScore)
	}
	if p05.Blocks[0].CongruentStd != 0 {
		t.Fatalf("expected std 0 for constant trials, got %v", p05.Blocks[0].CongruentStd)
	}

	p11 := rows[1]
	if p11.Blocks[0] == nil {
		t.Fatalf("expected block 1 for p11")
	}
	if p11.Blocks[1] != nil {
		t.Fatalf("expected missing block 2 for p11")
	}

	var fallbackWarned bool
	for _, w := range outcome.Warnings {
		if strings.Contains(w, "IAT_p11_1.csv") && strings.Contains(w, "trailing digit") {
			fallbackWarned = true
		}
	}
	if !fallbackWarned {
		t.Fatalf("expected fallback warning, got %v", outcome.Warnings)
	}
}

func TestRunDuplicateBlockWarns(t *testing.T) {
	root := t.TempDir()
	writeTrialLog(t, filepath.Join(root, "IAT_p05_block1.csv"), 500, 700)
	writeTrialLog(t, filepath.Join(root, "session2", "IAT_p05_block1.csv"), 480, 690)

	outcome, err := Run(testRunConfig(root))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Files != 1 {
		t.Fatalf("expected 1 stored file, got %d", outcome.Files)
	}
	rows := outcome.Table.Rows()
	if len(rows) != 1 || rows[0].Blocks[0] == nil {
		t.Fatalf("expected one row with block 1 stored")
	}
	// The first scored file wins; the duplicate must not replace it.
	if rows[0].Blocks[0].CongruentMean != 500 {
		t.Fatalf("duplicate overwrote first summary: mean %v", rows[0].Blocks[0].CongruentMean)
	}
	var warned bool
	for _, w := range outcome.Warnings {
		if strings.Contains(w, "already stored") && strings.Contains(w, "session2") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected duplicate warning, got %v", outcome.Warnings)
	}
}

func TestRunOutOfRangeBlockWarns(t *testing.T) {
	root := t.TempDir()
	writeTrialLog(t, filepath.Join(root, "IAT_p05_block3.csv"), 500, 500)

	outcome, err := Run(testRunConfig(root))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome.Files != 0 {
		t.Fatalf("expected no stored files, got %d", outcome.Files)
	}
	rows := outcome.Table.Rows()
	if len(rows) != 1 {
		t.Fatalf("expected participant row to exist, got %d rows", len(rows))
	}
	if rows[0].Blocks[0] != nil || rows[0].Blocks[1] != nil {
		t.Fatalf("expected no stored blocks")
	}
	var warned bool
	for _, w := range outcome.Warnings {
		if strings.Contains(w, "block 3") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected out-of-range block warning, got %v", outcome.Warnings)
	}
}

func TestRunIncompleteLogFails(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "IAT_p05_block1.csv")
	if err := os.WriteFile(path, []byte("trial,rt\n1,500\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	_, err := Run(testRunConfig(root))
	if err == nil {
		t.Fatalf("expected error for incomplete log")
	}
	var missing *triallog.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDataError, got %v", err)
	}
}
