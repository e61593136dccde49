// Package pipeline composes discovery, scoring, and aggregation into
// one pass over an input tree.
package pipeline

import (
	"fmt"

	"github.com/abequet/Psycho-Tasks/internal/locate"
	"github.com/abequet/Psycho-Tasks/internal/model"
	"github.com/abequet/Psycho-Tasks/internal/results"
	"github.com/abequet/Psycho-Tasks/internal/score"
	"github.com/abequet/Psycho-Tasks/internal/triallog"
)

// Outcome is the result of scoring one input tree. Warnings carry
// every non-fatal anomaly seen during the run.
type Outcome struct {
	Table        *results.Table
	Participants int
	Files        int
	Warnings     []string
}

// Run scores every trial log under cfg.InputRoot into one results
// table. Any unreadable or incomplete log aborts the run; nothing is
// written by this function.
func Run(cfg model.RunConfig) (Outcome, error) {
	if err := validateSegments(cfg.Scoring); err != nil {
		return Outcome{}, err
	}
	scan, err := locate.Scan(cfg.InputRoot)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Table: results.New(), Warnings: scan.Warnings}
	minRows := cfg.Scoring.Congruent.End
	if cfg.Scoring.Incongruent.End > minRows {
		minRows = cfg.Scoring.Incongruent.End
	}

	for _, p := range scan.Participants {
		out.Table.Ensure(p.ID, p.Number)
		out.Participants++
		for _, file := range p.Files {
			log, err := triallog.Read(file.Path, cfg.Scoring.RTColumn, cfg.Scoring.RTKeyboardColumn, minRows)
			if err != nil {
				return Outcome{}, err
			}
			summary, err := score.Block(log, cfg.Scoring)
			if err != nil {
				return Outcome{}, err
			}
			if err := out.Table.Add(p.ID, p.Number, file.Block, summary); err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%v (%s); block not stored", err, file.Path))
				continue
			}
			out.Files++
		}
	}
	return out, nil
}

func validateSegments(cfg model.ScoringConfig) error {
	for _, seg := range []model.Segment{cfg.Congruent, cfg.Incongruent} {
		if seg.Start < 1 || seg.End < seg.Start {
			return fmt.Errorf("invalid trial segment %d-%d", seg.Start, seg.End)
		}
	}
	return nil
}
