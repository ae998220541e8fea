package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"quantbench/internal/domain"
)

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := FormatInt(tt.in); got != tt.want {
			t.Errorf("FormatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	if got := FormatMoney(101000.99); got != "101,000" {
		t.Errorf("FormatMoney(101000.99) = %q, want 101,000", got)
	}
}

func TestFormatVolume(t *testing.T) {
	tests := map[float64]string{
		12:      "12",
		1500:    "1.5K",
		2500000: "2.5M",
		3e9:     "3.0B",
	}
	for in, want := range tests {
		if got := FormatVolume(in); got != want {
			t.Errorf("FormatVolume(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatChange(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0%"},
		{0.125, "+12.5%"},
		{-0.5, "-50.0%"},
		{1.5, "+150%"},
		{-1, "-100%"},
	}
	for _, tt := range tests {
		if got := FormatChange(tt.in); got != tt.want {
			t.Errorf("FormatChange(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if FormatGain(-0.1) != "" || FormatLoss(-0.1) != "" {
		t.Error("FormatGain/FormatLoss of a negative value should be empty")
	}
	if FormatPrice(0) != "-" || FormatPrice(12.345) != "12.35" {
		t.Errorf("FormatPrice = %q, %q", FormatPrice(0), FormatPrice(12.345))
	}
}

func sampleRun(n int) *domain.Run {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := &domain.Run{
		ID:           uuid.New(),
		Symbol:       "BTC",
		From:         t0,
		To:           t0.AddDate(0, 0, n-1),
		MarginDays:   3,
		MaxTradeCash: 100000,
		Algorithms:   []string{"hold", "trend"},
		Duration:     1500 * time.Millisecond,
	}
	state := func(name string, sig domain.SignalType, val, diff float64) domain.AlgorithmState {
		return domain.AlgorithmState{Name: name, Estimate: domain.Estimate{Signal: sig, Confidence: 1}, Valuation: val, ValuationDifference: diff}
	}
	run.Records = append(run.Records, domain.TradeResult{Date: t0, ClosePrice: 100, Volume: 10, Initial: true,
		Algorithms: []domain.AlgorithmState{state("hold", domain.SignalTypeHold, 101000, 0), state("trend", domain.SignalTypeHold, 101000, 0)}})
	for i := 0; i < n; i++ {
		run.Records = append(run.Records, domain.TradeResult{Date: t0.AddDate(0, 0, i), ClosePrice: float64(100 + i), Volume: 2000,
			Algorithms: []domain.AlgorithmState{
				state("hold", domain.SignalTypeHold, 101000, 0),
				state("trend", domain.SignalTypeBuy, 101000+float64(i)*1010, float64(i)/100),
			}})
	}
	run.Summaries = []domain.AlgorithmSummary{
		{Name: "hold", FinalValuation: 101000, Holds: n},
		{Name: "trend", FinalValuation: 101000 + float64(n-1)*1010, ValuationDifference: float64(n-1) / 100, MaxDrawdown: -0.02, Buys: n},
	}
	return run
}

func TestConsoleRender(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsole(&buf, 0).Render(sampleRun(3)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"BTC", "2024-01-01 .. 2024-01-03", "initial", "2024-01-03", "hold", "trend", "buy 1.00", "101,000", "+2.0%", "-2.0%", "best: trend"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "omitted") {
		t.Errorf("output omits rows without a limit:\n%s", out)
	}
}

func TestConsoleLastRows(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsole(&buf, 2).Render(sampleRun(10)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "initial") {
		t.Errorf("initial record missing:\n%s", out)
	}
	if !strings.Contains(out, "8 rows omitted") {
		t.Errorf("omitted marker missing:\n%s", out)
	}
	if strings.Contains(out, "2024-01-05 ") {
		t.Errorf("middle row rendered:\n%s", out)
	}
	if !strings.Contains(out, "2024-01-09") || !strings.Contains(out, "2024-01-10") {
		t.Errorf("last rows missing:\n%s", out)
	}
}

type recordingStore struct {
	saved []uuid.UUID
	err   error
}

func (s *recordingStore) SaveRun(_ context.Context, run *domain.Run) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, run.ID)
	return nil
}

func TestMultiSaveRun(t *testing.T) {
	boom := errors.New("disk full")
	a, b, c := &recordingStore{}, &recordingStore{err: boom}, &recordingStore{}
	m := NewMulti(nil, a, b, c)
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}

	run := sampleRun(2)
	err := m.SaveRun(context.Background(), run)
	if !errors.Is(err, boom) {
		t.Errorf("SaveRun error = %v, want %v", err, boom)
	}
	if len(a.saved) != 1 || len(c.saved) != 1 || c.saved[0] != run.ID {
		t.Errorf("stores after a failure: a=%v c=%v, want both saved", a.saved, c.saved)
	}

	if err := NewMulti(nil).SaveRun(context.Background(), run); err != nil {
		t.Errorf("empty Multi SaveRun = %v, want nil", err)
	}
}
