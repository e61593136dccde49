// Package score implements the IAT scoring math: segment extraction,
// second-chance correction, clipping, and summary statistics.
package score

import (
	"fmt"
	"math"

	"github.com/abequet/Psycho-Tasks/internal/model"
	"github.com/abequet/Psycho-Tasks/internal/triallog"
)

// Extract slices both response-time channels for one trial segment out
// of a parsed log. The log must cover the whole segment.
func Extract(log *triallog.Log, seg model.Segment) (model.TrialChannels, error) {
	if seg.Start < 1 || seg.End < seg.Start {
		return model.TrialChannels{}, fmt.Errorf("invalid trial segment %d-%d", seg.Start, seg.End)
	}
	if log.Rows() < seg.End {
		return model.TrialChannels{}, &triallog.MissingDataError{
			Path:   log.Path,
			Detail: fmt.Sprintf("rows %d-%d required, log has %d", seg.Start, seg.End, log.Rows()),
		}
	}
	return model.TrialChannels{
		WithRetry:    append([]float64(nil), log.WithRetry[seg.Start-1:seg.End]...),
		KeyboardOnly: append([]float64(nil), log.KeyboardOnly[seg.Start-1:seg.End]...),
	}, nil
}

// CorrectRetries reconciles the two channels per trial. A mismatch
// means the participant needed a second response attempt: the with-retry
// value is penalized by penaltyMs and the trial counts as an error.
// Channels are compared exactly; they are raw readings of different
// measurement paths, equal only when no retry occurred.
func CorrectRetries(ch model.TrialChannels, penaltyMs float64) ([]float64, int) {
	out := make([]float64, len(ch.WithRetry))
	errCount := 0
	for i, v := range ch.WithRetry {
		if i < len(ch.KeyboardOnly) && v != ch.KeyboardOnly[i] {
			v += penaltyMs
			errCount++
		}
		out[i] = v
	}
	return out, errCount
}

// Clip clamps every value into the closed range [minMs, maxMs].
func Clip(values []float64, minMs, maxMs float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v < minMs {
			v = minMs
		}
		if v > maxMs {
			v = maxMs
		}
		out[i] = v
	}
	return out
}

// Summarize drops the leading warm-up trials and computes the sample
// mean and the unbiased (n-1) sample standard deviation of the rest.
func Summarize(values []float64, excludeLeading int) (mean, std float64) {
	if excludeLeading < 0 {
		excludeLeading = 0
	}
	if excludeLeading >= len(values) {
		return 0, 0
	}
	vals := values[excludeLeading:]
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(len(vals)-1))
	return mean, std
}

// Block runs extraction, correction, clipping, and summarization for
// both trial segments of one log and derives the block's D-score.
func Block(log *triallog.Log, cfg model.ScoringConfig) (model.BlockSummary, error) {
	congruent, err := Extract(log, cfg.Congruent)
	if err != nil {
		return model.BlockSummary{}, err
	}
	incongruent, err := Extract(log, cfg.Incongruent)
	if err != nil {
		return model.BlockSummary{}, err
	}

	congCorrected, congErrors := CorrectRetries(congruent, cfg.RetryPenaltyMs)
	incongCorrected, incongErrors := CorrectRetries(incongruent, cfg.RetryPenaltyMs)

	congClipped := Clip(congCorrected, cfg.ClipMinMs, cfg.ClipMaxMs)
	incongClipped := Clip(incongCorrected, cfg.ClipMinMs, cfg.ClipMaxMs)

	congMean, congStd := Summarize(congClipped, cfg.ExcludeLeading)
	incongMean, incongStd := Summarize(incongClipped, cfg.ExcludeLeading)

	return model.BlockSummary{
		CongruentMean:     congMean,
		IncongruentMean:   incongMean,
		DScore:            congMean - incongMean,
		CongruentStd:      congStd,
		IncongruentStd:    incongStd,
		CongruentErrors:   congErrors,
		IncongruentErrors: incongErrors,
	}, nil
}
