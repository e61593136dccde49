package score

import (
	"errors"
	"math"
	"testing"

	"github.com/abequet/Psycho-Tasks/internal/model"
	"github.com/abequet/Psycho-Tasks/internal/triallog"
)

func testScoring() model.ScoringConfig {
	return model.ScoringConfig{
		RetryPenaltyMs:   600,
		ClipMinMs:        300,
		ClipMaxMs:        3000,
		ExcludeLeading:   1,
		RTColumn:         "rt",
		RTKeyboardColumn: "rt_keyboard",
		Congruent:        model.DefaultCongruent,
		Incongruent:      model.DefaultIncongruent,
	}
}

// makeLog builds a 160-row log where the congruent and incongruent
// segments carry the given per-trial channel pairs and every other row
// is a filler trial with matching channels.
func makeLog(congruent, incongruent [][2]float64) *triallog.Log {
	log := &triallog.Log{Path: "test.csv"}
	for row := 1; row <= 160; row++ {
		withRetry, keyboard := 1000.0, 1000.0
		if row >= model.DefaultCongruent.Start && row <= model.DefaultCongruent.End {
			pair := congruent[row-model.DefaultCongruent.Start]
			withRetry, keyboard = pair[0], pair[1]
		}
		if row >= model.DefaultIncongruent.Start && row <= model.DefaultIncongruent.End {
			pair := incongruent[row-model.DefaultIncongruent.Start]
			withRetry, keyboard = pair[0], pair[1]
		}
		log.WithRetry = append(log.WithRetry, withRetry)
		log.KeyboardOnly = append(log.KeyboardOnly, keyboard)
	}
	return log
}

func constantPairs(n int, value float64) [][2]float64 {
	pairs := make([][2]float64, n)
	for i := range pairs {
		pairs[i] = [2]float64{value, value}
	}
	return pairs
}

func TestCorrectRetries(t *testing.T) {
	ch := model.TrialChannels{
		WithRetry:    []float64{500, 100, 250, 800},
		KeyboardOnly: []float64{500, 400, 250, 799},
	}
	corrected, errCount := CorrectRetries(ch, 600)
	want := []float64{500, 700, 250, 1400}
	for i, v := range want {
		if corrected[i] != v {
			t.Fatalf("trial %d: got %v, want %v", i, corrected[i], v)
		}
	}
	if errCount != 2 {
		t.Fatalf("expected 2 errors, got %d", errCount)
	}
}

func TestClipBounds(t *testing.T) {
	values := []float64{100, 300, 1500, 3000, 5000}
	clipped := Clip(values, 300, 3000)
	want := []float64{300, 300, 1500, 3000, 3000}
	for i, v := range want {
		if clipped[i] != v {
			t.Fatalf("value %d: got %v, want %v", i, clipped[i], v)
		}
	}
	for _, v := range clipped {
		if v < 300 || v > 3000 {
			t.Fatalf("clipped value %v outside [300, 3000]", v)
		}
	}
	again := Clip(clipped, 300, 3000)
	for i, v := range clipped {
		if again[i] != v {
			t.Fatalf("clipping not idempotent at %d: %v != %v", i, again[i], v)
		}
	}
}

func TestSummarizeConstantSequence(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 500
	}
	values[0] = 2000
	mean, std := Summarize(values, 1)
	if mean != 500 {
		t.Fatalf("expected mean 500, got %v", mean)
	}
	if std != 0 {
		t.Fatalf("expected std 0, got %v", std)
	}
}

func TestSummarizeUnbiasedStd(t *testing.T) {
	mean, std := Summarize([]float64{999, 2, 3, 4}, 1)
	if mean != 3 {
		t.Fatalf("expected mean 3, got %v", mean)
	}
	// Sample std of {2,3,4} with the n-1 divisor is exactly 1.
	if math.Abs(std-1) > 1e-12 {
		t.Fatalf("expected std 1, got %v", std)
	}
}

func TestBlockExcludesWarmupTrial(t *testing.T) {
	congruent := constantPairs(40, 500)
	congruent[0] = [2]float64{2000, 2000}
	incongruent := constantPairs(40, 600)

	summary, err := Block(makeLog(congruent, incongruent), testScoring())
	if err != nil {
		t.Fatalf("score block: %v", err)
	}
	if summary.CongruentMean != 500 {
		t.Fatalf("expected congruent mean 500, got %v", summary.CongruentMean)
	}
	if summary.CongruentStd != 0 {
		t.Fatalf("expected congruent std 0, got %v", summary.CongruentStd)
	}
	if summary.CongruentErrors != 0 || summary.IncongruentErrors != 0 {
		t.Fatalf("expected no errors, got %d/%d", summary.CongruentErrors, summary.IncongruentErrors)
	}
	if summary.DScore != summary.CongruentMean-summary.IncongruentMean {
		t.Fatalf("dscore %v is not congruent-incongruent difference", summary.DScore)
	}
	if summary.DScore != -100 {
		t.Fatalf("expected dscore -100, got %v", summary.DScore)
	}
}

func TestBlockRetryAndClipScenarios(t *testing.T) {
	congruent := constantPairs(40, 500)
	// Retry: channels differ, corrected to 100+600=700, one error.
	congruent[1] = [2]float64{100, 400}
	// Below floor without retry: clipped up to 300, no error.
	congruent[2] = [2]float64{250, 250}
	incongruent := constantPairs(40, 500)

	summary, err := Block(makeLog(congruent, incongruent), testScoring())
	if err != nil {
		t.Fatalf("score block: %v", err)
	}
	if summary.CongruentErrors != 1 {
		t.Fatalf("expected 1 congruent error, got %d", summary.CongruentErrors)
	}
	// 37 trials at 500 plus one at 700 and one at 300 average to 500.
	if math.Abs(summary.CongruentMean-500) > 1e-9 {
		t.Fatalf("expected congruent mean 500, got %v", summary.CongruentMean)
	}
	if summary.DScore != summary.CongruentMean-summary.IncongruentMean {
		t.Fatalf("dscore %v is not congruent-incongruent difference", summary.DScore)
	}
}

func TestExtractShortLog(t *testing.T) {
	log := &triallog.Log{
		Path:         "short.csv",
		WithRetry:    make([]float64, 100),
		KeyboardOnly: make([]float64, 100),
	}
	_, err := Extract(log, model.DefaultIncongruent)
	if err == nil {
		t.Fatalf("expected error for short log")
	}
	var missing *triallog.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDataError, got %v", err)
	}
	if missing.Path != "short.csv" {
		t.Fatalf("unexpected path in error: %q", missing.Path)
	}
}
