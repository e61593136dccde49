package locate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func touch(t *testing.T, root string, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("rt,rt_keyboard\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestScanGroupsAndOrders(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "IAT_p07_block2.csv")
	touch(t, root, filepath.Join("session1", "IAT_p05_block1.csv"))
	touch(t, root, "IAT_p05_block2.csv")
	touch(t, root, "IAT_p11_2.csv")    // no block token, trailing digit fallback
	touch(t, root, "calibration.csv")  // no participant code
	touch(t, root, "IAT_p05_notes.txt")

	res, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(res.Participants))
	}
	ids := []string{res.Participants[0].ID, res.Participants[1].ID, res.Participants[2].ID}
	if ids[0] != "p05" || ids[1] != "p07" || ids[2] != "p11" {
		t.Fatalf("unexpected participant order: %v", ids)
	}
	if len(res.Participants[0].Files) != 2 {
		t.Fatalf("expected 2 files for p05, got %d", len(res.Participants[0].Files))
	}
	if res.Participants[2].Files[0].Block != 2 {
		t.Fatalf("expected fallback block 2 for p11, got %d", res.Participants[2].Files[0].Block)
	}

	var fallbackWarned, skipWarned bool
	for _, w := range res.Warnings {
		if strings.Contains(w, "IAT_p11_2.csv") && strings.Contains(w, "trailing digit") {
			fallbackWarned = true
		}
		if strings.Contains(w, "calibration.csv") && strings.Contains(w, "skipped") {
			skipWarned = true
		}
	}
	if !fallbackWarned {
		t.Fatalf("expected fallback warning, got %v", res.Warnings)
	}
	if !skipWarned {
		t.Fatalf("expected skip warning, got %v", res.Warnings)
	}
}

func TestScanUnresolvableBlock(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "IAT_p05_final.csv")

	_, err := Scan(root)
	if err == nil {
		t.Fatalf("expected error for unresolvable block")
	}
	var pattern *PatternError
	if !errors.As(err, &pattern) {
		t.Fatalf("expected PatternError, got %v", err)
	}
	if !strings.Contains(pattern.Path, "IAT_p05_final.csv") {
		t.Fatalf("error does not name the file: %v", pattern)
	}
}

func TestScanRejectsOverlongParticipantCode(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "IAT_p123_block1.csv")

	res, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Participants) != 0 {
		t.Fatalf("expected overlong code to be rejected, got %v", res.Participants)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "no participant code") {
		t.Fatalf("expected skip warning, got %v", res.Warnings)
	}
}

func TestScanSkipsNonCSV(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "IAT_p05_notes.txt")

	res, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Participants) != 0 {
		t.Fatalf("expected no participants, got %d", len(res.Participants))
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings for non-CSV files, got %v", res.Warnings)
	}
}
