// Package report renders scoring results for the terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/abequet/Psycho-Tasks/internal/model"
	"github.com/abequet/Psycho-Tasks/internal/results"
)

const (
	sparkChars          = " .:-=+*#%@"
	terminalWidthBackup = 80
	sparkLabelWidth     = 24
	minSparkWidth       = 10
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#73D13D"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// Render writes the results table, per-block D-score sparklines, and a
// short summary, sized to the current terminal.
func Render(w io.Writer, table *results.Table) error {
	return RenderWithOptions(w, table, terminalWidth(), shouldUseColor(w, false))
}

// RenderWithOptions renders with explicit width and color settings.
func RenderWithOptions(w io.Writer, table *results.Table, totalWidth int, useColor bool) error {
	rows := table.Rows()
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No participants found.")
		return err
	}

	if _, err := fmt.Fprintln(w, styled(titleStyle, "IAT results", useColor)); err != nil {
		return err
	}

	headers := []string{
		"Participant",
		"B1 cong", "B1 incong", "B1 dscore", "B1 err",
		"B2 cong", "B2 incong", "B2 dscore", "B2 err",
	}
	tableRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := []string{row.ParticipantID}
		for _, block := range row.Blocks {
			cells = append(cells, blockCells(block)...)
		}
		tableRows = append(tableRows, cells)
	}
	rightAlign := map[int]bool{}
	for i := 1; i < len(headers); i++ {
		rightAlign[i] = true
	}
	lines := formatTable(headers, tableRows, rightAlign)
	for i, line := range lines {
		if i == 0 {
			line = styled(headerStyle, line, useColor)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}

	sparkWidth := totalWidth - sparkLabelWidth
	if sparkWidth < minSparkWidth {
		sparkWidth = minSparkWidth
	}
	for b := 0; b < results.BlockCount; b++ {
		dscores := blockDScores(rows, b)
		if len(dscores) == 0 {
			continue
		}
		mean := meanOf(dscores)
		meanLabel := fmt.Sprintf("mean %+.1f", mean)
		if mean > 0 {
			meanLabel = styled(positiveStyle, meanLabel, useColor)
		} else if mean < 0 {
			meanLabel = styled(negativeStyle, meanLabel, useColor)
		}
		spark := Sparkline(downsample(dscores, sparkWidth))
		if _, err := fmt.Fprintf(w, "Block %d D-scores: %s (%s)\n", b+1, spark, meanLabel); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "\nParticipants: %d\n", len(rows)); err != nil {
		return err
	}
	return nil
}

// RenderRuns prints a table of archived scoring runs.
func RenderRuns(w io.Writer, runs []model.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No archived runs found.")
		return err
	}
	headers := []string{"ID", "Finished", "Input", "Output", "Participants", "Files", "Warnings"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.FinishedAt.Format("2006-01-02 15:04:05"),
			run.InputRoot,
			run.OutputPath,
			strconv.Itoa(run.Participants),
			strconv.Itoa(run.Files),
			strconv.Itoa(run.Warnings),
		})
	}
	rightAlign := map[int]bool{0: true, 4: true, 5: true, 6: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderRunBlocks prints the archived block summaries of one run.
func RenderRunBlocks(w io.Writer, blocks []model.ArchivedBlock) error {
	if len(blocks) == 0 {
		_, err := fmt.Fprintln(w, "No block summaries archived for this run.")
		return err
	}
	headers := []string{"Participant", "Block", "Cong RT", "Incong RT", "D-score", "Cong std", "Incong std", "Cong err", "Incong err"}
	rows := make([][]string, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, []string{
			b.Participant,
			strconv.Itoa(b.Block),
			fmt.Sprintf("%.1f", b.Summary.CongruentMean),
			fmt.Sprintf("%.1f", b.Summary.IncongruentMean),
			fmt.Sprintf("%+.1f", b.Summary.DScore),
			fmt.Sprintf("%.1f", b.Summary.CongruentStd),
			fmt.Sprintf("%.1f", b.Summary.IncongruentStd),
			strconv.Itoa(b.Summary.CongruentErrors),
			strconv.Itoa(b.Summary.IncongruentErrors),
		})
	}
	rightAlign := map[int]bool{}
	for i := 1; i < len(headers); i++ {
		rightAlign[i] = true
	}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func blockCells(block *model.BlockSummary) []string {
	if block == nil {
		return []string{"", "", "", ""}
	}
	return []string{
		fmt.Sprintf("%.1f", block.CongruentMean),
		fmt.Sprintf("%.1f", block.IncongruentMean),
		fmt.Sprintf("%+.1f", block.DScore),
		fmt.Sprintf("%d/%d", block.CongruentErrors, block.IncongruentErrors),
	}
}

func blockDScores(rows []*results.Row, blockIdx int) []float64 {
	var out []float64
	for _, row := range rows {
		if row.Blocks[blockIdx] == nil {
			continue
		}
		out = append(out, row.Blocks[blockIdx].DScore)
	}
	return out
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// downsample averages values into at most width buckets so the
// sparkline fits the terminal.
func downsample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := int(float64(i) * float64(len(values)) / float64(width))
		end := int(float64(i+1) * float64(len(values)) / float64(width))
		if end <= start {
			end = start + 1
		}
		if end > len(values) {
			end = len(values)
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func styled(style lipgloss.Style, text string, useColor bool) string {
	if !useColor {
		return text
	}
	return style.Render(text)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
