// Package model defines shared data structures.
package model

import "time"

// Segment is a 1-based inclusive range of trial rows within a log.
type Segment struct {
	Start int
	End   int
}

// Len returns the number of trials covered by the segment.
func (s Segment) Len() int {
	return s.End - s.Start + 1
}

// Default trial segments for the fixed block layout: congruent trials
// occupy rows 51-90, incongruent trials rows 121-160.
var (
	DefaultCongruent   = Segment{Start: 51, End: 90}
	DefaultIncongruent = Segment{Start: 121, End: 160}
)

// ScoringConfig holds the scoring parameters for one run.
type ScoringConfig struct {
	RetryPenaltyMs   float64
	ClipMinMs        float64
	ClipMaxMs        float64
	ExcludeLeading   int
	RTColumn         string
	RTKeyboardColumn string
	Congruent        Segment
	Incongruent      Segment
}

// RunConfig defines a full scoring run.
type RunConfig struct {
	InputRoot string
	OutputDir string
	Scoring   ScoringConfig
}

// TrialChannels holds the two logged response-time channels for one
// trial segment, index-aligned per trial.
type TrialChannels struct {
	WithRetry    []float64
	KeyboardOnly []float64
}

// BlockSummary holds the per-block statistics for one participant.
// DScore is always CongruentMean - IncongruentMean.
type BlockSummary struct {
	CongruentMean     float64
	IncongruentMean   float64
	DScore            float64
	CongruentStd      float64
	IncongruentStd    float64
	CongruentErrors   int
	IncongruentErrors int
}

// ArchivedBlock is one per-participant block summary as stored in the
// run archive.
type ArchivedBlock struct {
	Participant string
	Block       int
	Summary     BlockSummary
}

// RunRecord summarizes one archived scoring run.
type RunRecord struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	InputRoot    string
	OutputPath   string
	Participants int
	Files        int
	Warnings     int
}
