// Package report renders and persists finished backtest runs.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"quantbench/internal/domain"
)

const (
	dateWidth  = 10
	priceWidth = 10
	volWidth   = 8
	estWidth   = 9
	valWidth   = 12
	diffWidth  = 8
)

// Console writes a run as a styled table followed by a per-algorithm
// summary. Colors are used only when the writer is a terminal.
type Console struct {
	w        io.Writer
	lastRows int

	headerStyle lipgloss.Style
	dimStyle    lipgloss.Style
	priceStyle  lipgloss.Style
	gainStyle   lipgloss.Style
	lossStyle   lipgloss.Style
	bestStyle   lipgloss.Style
	titleStyle  lipgloss.Style
}

// NewConsole creates a Console. lastRows > 0 limits the record table to the
// initial record plus the last lastRows records.
func NewConsole(w io.Writer, lastRows int) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:           w,
		lastRows:    lastRows,
		headerStyle: r.NewStyle().Foreground(lipgloss.Color("245")),
		dimStyle:    r.NewStyle().Foreground(lipgloss.Color("245")),
		priceStyle:  r.NewStyle().Foreground(lipgloss.Color("15")),
		gainStyle:   r.NewStyle().Foreground(lipgloss.Color("10")),
		lossStyle:   r.NewStyle().Foreground(lipgloss.Color("9")),
		bestStyle:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		titleStyle:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")),
	}
}

// Render writes the record table and the summary.
func (c *Console) Render(run *domain.Run) error {
	var b strings.Builder
	c.writeTitle(&b, run)
	c.writeRecords(&b, run)
	b.WriteString("\n")
	c.writeSummary(&b, run)
	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) writeTitle(b *strings.Builder, run *domain.Run) {
	title := fmt.Sprintf(" %s  %s .. %s  margin %dd  cap %s  run %s ",
		run.Symbol,
		run.From.Format(time.DateOnly), run.To.Format(time.DateOnly),
		run.MarginDays, FormatMoney(run.MaxTradeCash), run.ID)
	b.WriteString(c.titleStyle.Render(title))
	b.WriteString("\n")
}

// visibleRecords returns the initial record followed by the last lastRows
// records, and how many records were skipped in between.
func (c *Console) visibleRecords(records []domain.TradeResult) ([]domain.TradeResult, int) {
	if c.lastRows <= 0 || len(records) <= c.lastRows+1 {
		return records, 0
	}
	out := make([]domain.TradeResult, 0, c.lastRows+1)
	out = append(out, records[0])
	out = append(out, records[len(records)-c.lastRows:]...)
	return out, len(records) - 1 - c.lastRows
}

func (c *Console) writeRecords(b *strings.Builder, run *domain.Run) {
	var hdr strings.Builder
	fmt.Fprintf(&hdr, "%-*s %*s %*s", dateWidth, "date", priceWidth, "close", volWidth, "volume")
	for _, name := range run.Algorithms {
		fmt.Fprintf(&hdr, " | %-*s", estWidth+valWidth+diffWidth+2, truncate(name, estWidth+valWidth+diffWidth+2))
	}
	b.WriteString(c.headerStyle.Render(hdr.String()))
	b.WriteString("\n")

	records, skipped := c.visibleRecords(run.Records)
	for i, rec := range records {
		if skipped > 0 && i == 1 {
			b.WriteString(c.dimStyle.Render(fmt.Sprintf("... %d rows omitted", skipped)))
			b.WriteString("\n")
		}
		date := rec.Date.Format(time.DateOnly)
		if rec.Initial {
			date = "initial"
		}
		b.WriteString(c.dimStyle.Render(fmt.Sprintf("%-*s", dateWidth, date)))
		b.WriteString(" ")
		b.WriteString(c.priceStyle.Render(fmt.Sprintf("%*s", priceWidth, FormatPrice(rec.ClosePrice))))
		b.WriteString(" ")
		b.WriteString(c.dimStyle.Render(fmt.Sprintf("%*s", volWidth, FormatVolume(rec.Volume))))
		for _, st := range rec.Algorithms {
			b.WriteString(" | ")
			b.WriteString(fmt.Sprintf("%-*s", estWidth, FormatEstimate(st.Estimate)))
			b.WriteString(" ")
			b.WriteString(c.priceStyle.Render(fmt.Sprintf("%*s", valWidth, FormatMoney(st.Valuation))))
			b.WriteString(" ")
			b.WriteString(c.changeStyle(st.ValuationDifference).Render(fmt.Sprintf("%*s", diffWidth, FormatChange(st.ValuationDifference))))
		}
		b.WriteString("\n")
	}
}

func (c *Console) writeSummary(b *strings.Builder, run *domain.Run) {
	nameWidth := len("algorithm")
	for _, s := range run.Summaries {
		nameWidth = max(nameWidth, len(s.Name))
	}
	b.WriteString(c.headerStyle.Render(fmt.Sprintf("%-*s %*s %*s %*s %7s %6s %6s %6s",
		nameWidth, "algorithm", valWidth, "valuation", diffWidth, "change", diffWidth, "max dd", "sharpe", "buys", "sells", "holds")))
	b.WriteString("\n")

	best, ok := run.Best()
	for _, s := range run.Summaries {
		name := fmt.Sprintf("%-*s", nameWidth, s.Name)
		if ok && s.Name == best.Name {
			b.WriteString(c.bestStyle.Render(name))
		} else {
			b.WriteString(name)
		}
		b.WriteString(" ")
		b.WriteString(c.priceStyle.Render(fmt.Sprintf("%*s", valWidth, FormatMoney(s.FinalValuation))))
		b.WriteString(" ")
		b.WriteString(c.changeStyle(s.ValuationDifference).Render(fmt.Sprintf("%*s", diffWidth, FormatChange(s.ValuationDifference))))
		b.WriteString(" ")
		b.WriteString(c.changeStyle(s.MaxDrawdown).Render(fmt.Sprintf("%*s", diffWidth, FormatChange(s.MaxDrawdown))))
		fmt.Fprintf(b, " %7.3f %6d %6d %6d\n", s.SharpeRatio, s.Buys, s.Sells, s.Holds)
	}
	if ok {
		fmt.Fprintf(b, "best: %s (%s) in %s\n", best.Name, FormatChange(best.ValuationDifference), run.Duration.Round(time.Millisecond))
	}
}

func (c *Console) changeStyle(d float64) lipgloss.Style {
	switch {
	case d > 0:
		return c.gainStyle
	case d < 0:
		return c.lossStyle
	default:
		return c.dimStyle
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
