package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

var (
	farPast   = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	farFuture = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestCSVStoreReadBars(t *testing.T) {
	path := writeCSV(t, `Timestamp,Open,High,Low,Close,Volume
2023-01-03,12,13,11,12.5,300
2023-01-01,10,11,9,10.5,100
2023-01-02,11,12,10,11.5,200
`)
	s := NewCSVStore(path, nil)

	bars, err := s.ReadBars(context.Background(), "BTC", farPast, farFuture)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("ReadBars returned %d bars, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Errorf("bars not ascending at %d: %v then %v", i, bars[i-1].Timestamp, bars[i].Timestamp)
		}
	}
	if bars[0].Close != 10.5 || bars[2].Volume != 300 {
		t.Errorf("unexpected values: first close %v, last volume %v", bars[0].Close, bars[2].Volume)
	}
	if bars[0].Symbol != "BTC" {
		t.Errorf("Symbol = %q, want BTC", bars[0].Symbol)
	}
}

func TestCSVStoreRange(t *testing.T) {
	path := writeCSV(t, `timestamp,open,high,low,close,volume
2023-01-01,10,11,9,10,1
2023-01-02,10,11,9,10,1
2023-01-03,10,11,9,10,1
2023-01-04,10,11,9,10,1
`)
	s := NewCSVStore(path, nil)

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	bars, err := s.ReadBars(context.Background(), "X", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2 (end inclusive)", len(bars))
	}
	if !bars[1].Timestamp.Equal(end) {
		t.Errorf("last bar at %v, want %v", bars[1].Timestamp, end)
	}
}

func TestCSVStoreSkipsMalformedRows(t *testing.T) {
	path := writeCSV(t, `Timestamp,Open,High,Low,Close,Volume
2023-01-01,10,11,9,10,100
2023-01-02,abc,11,9,10,100
2023-01-03,10,9,11,10,100
2023-01-04,10,11,9,NaN,100
2023-01-05,10,11,9,10,-1
2023-01-06,10,11,9
not-a-date,10,11,9,10,100
2023-01-07,1"0,11,9,10,100
2023-01-08,10,11,9,10,100
`)
	s := NewCSVStore(path, nil)

	bars, err := s.ReadBars(context.Background(), "X", farPast, farFuture)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(bars))
	}
	if bars[0].Timestamp.Day() != 1 || bars[1].Timestamp.Day() != 8 {
		t.Errorf("kept bars at %v and %v, want Jan 1 and Jan 8", bars[0].Timestamp, bars[1].Timestamp)
	}
}

func TestCSVStoreDuplicateKeepsLast(t *testing.T) {
	path := writeCSV(t, `Timestamp,Open,High,Low,Close,Volume
2023-01-01,10,11,9,10,100
2023-01-01,10,12,9,11,200
`)
	s := NewCSVStore(path, nil)

	bars, err := s.ReadBars(context.Background(), "X", farPast, farFuture)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("ReadBars returned %d bars, want 1", len(bars))
	}
	if bars[0].Close != 11 || bars[0].Volume != 200 {
		t.Errorf("kept bar = %+v, want the later row", bars[0])
	}
}

func TestCSVStoreColumnOrder(t *testing.T) {
	path := writeCSV(t, `VOLUME, close, Low, High, Open, Date
100, 10, 9, 11, 10, 2023-01-01
`)
	s := NewCSVStore(path, nil)

	bars, err := s.ReadBars(context.Background(), "X", farPast, farFuture)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("ReadBars returned %d bars, want 1", len(bars))
	}
	b := bars[0]
	if b.Open != 10 || b.High != 11 || b.Low != 9 || b.Close != 10 || b.Volume != 100 {
		t.Errorf("bar = %+v, want O10 H11 L9 C10 V100", b)
	}
}

func TestCSVStoreMissingColumn(t *testing.T) {
	path := writeCSV(t, "Timestamp,Open,High,Low,Close\n2023-01-01,10,11,9,10\n")
	s := NewCSVStore(path, nil)

	_, err := s.ReadBars(context.Background(), "X", farPast, farFuture)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("ReadBars error = %v, want ErrMissingColumn", err)
	}
}

func TestCSVStoreEmptyFile(t *testing.T) {
	s := NewCSVStore(writeCSV(t, ""), nil)

	bars, err := s.ReadBars(context.Background(), "X", farPast, farFuture)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("ReadBars returned %d bars, want 0", len(bars))
	}
}

func TestCSVStoreMissingFile(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "nope.csv"), nil)
	if _, err := s.ReadBars(context.Background(), "X", farPast, farFuture); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadBars error = %v, want os.ErrNotExist", err)
	}
}

func TestCSVStoreUTF16(t *testing.T) {
	content := "Timestamp,Open,High,Low,Close,Volume\r\n2023-01-01,10,11,9,10,100\r\n2023-01-02,10,11,9,10.5,100\r\n"
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(content)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := NewCSVStore(writeCSV(t, encoded), nil)

	bars, err := s.ReadBars(context.Background(), "X", farPast, farFuture)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(bars))
	}
	if bars[1].Close != 10.5 {
		t.Errorf("second close = %v, want 10.5", bars[1].Close)
	}
}

func TestCSVStoreUTF8BOM(t *testing.T) {
	s := NewCSVStore(writeCSV(t, "\xEF\xBB\xBFTimestamp,Open,High,Low,Close,Volume\n2023-01-01,10,11,9,10,100\n"), nil)

	bars, err := s.ReadBars(context.Background(), "X", farPast, farFuture)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("ReadBars returned %d bars, want 1", len(bars))
	}
}

func TestCSVStoreCancelled(t *testing.T) {
	s := NewCSVStore(writeCSV(t, "Timestamp,Open,High,Low,Close,Volume\n2023-01-01,10,11,9,10,100\n"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ReadBars(ctx, "X", farPast, farFuture); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadBars error = %v, want context.Canceled", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	jan1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1672531200", jan1},
		{"1672531200000", jan1},
		{"1672531200.5", jan1.Add(500 * time.Millisecond)},
		{"2023-01-01", jan1},
		{"2023-01-01 06:30:00", jan1.Add(6*time.Hour + 30*time.Minute)},
		{"2023-01-01T02:00:00+02:00", jan1},
		{"2023-01-01T00:00:00Z", jan1},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if got.Location() != time.UTC {
			t.Errorf("ParseTimestamp(%q) location = %v, want UTC", tt.in, got.Location())
		}
	}

	for _, bad := range []string{"", "yesterday", "-5", "01/02/2023"} {
		if _, err := ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) succeeded, want error", bad)
		}
	}
}
