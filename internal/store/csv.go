package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"quantbench/internal/domain"
)

// Compile-time interface check.
var _ BarReader = (*CSVStore)(nil)

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("csv: missing column")

// Timestamps at or above this are Unix milliseconds, below it Unix seconds.
const millisThreshold = 1e12

// Accepted names for each column, lower case.
var csvColumns = map[string][]string{
	"timestamp": {"timestamp", "time", "date", "open_time"},
	"open":      {"open"},
	"high":      {"high"},
	"low":       {"low"},
	"close":     {"close"},
	"volume":    {"volume"},
}

// CSVStore reads bars for a single instrument from a CSV file with a
// Timestamp,Open,High,Low,Close,Volume header. Columns may appear in any
// order and case. UTF-16 files with a byte order mark are decoded.
type CSVStore struct {
	path string
	log  *slog.Logger
}

// NewCSVStore creates a CSVStore over path. A nil logger uses the default.
func NewCSVStore(path string, log *slog.Logger) *CSVStore {
	if log == nil {
		log = slog.Default()
	}
	return &CSVStore{path: path, log: log.With("component", "csv", "file", path)}
}

// ReadBars parses the file and returns the bars within [start, end] in
// ascending order. Malformed rows are skipped with a warning; when two rows
// share a timestamp the later one wins. symbol labels the returned bars.
func (s *CSVStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := s.parse(ctx, f, symbol)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var bars []domain.Bar
	for _, b := range all {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func (s *CSVStore) parse(ctx context.Context, r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(decodeReader(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	byTime := make(map[int64]domain.Bar)
	skipped := 0
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				s.log.Warn("skipping malformed row", "line", perr.Line, "reason", perr.Err)
				continue
			}
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		b, err := parseRow(rec, cols)
		if err == nil {
			err = b.Validate()
		}
		if err != nil {
			skipped++
			s.log.Warn("skipping malformed row", "line", line, "reason", err)
			continue
		}
		b.Symbol = symbol
		byTime[b.Timestamp.UnixNano()] = b
	}

	bars := make([]domain.Bar, 0, len(byTime))
	for _, b := range byTime {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	if skipped > 0 {
		s.log.Warn("skipped rows", "count", skipped, "kept", len(bars))
	}
	return bars, nil
}

// decodeReader transcodes UTF-16 input (detected by its BOM) to UTF-8 and
// drops a UTF-8 BOM.
func decodeReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(3)
	switch {
	case len(head) >= 2 && ((head[0] == 0xFF && head[1] == 0xFE) || (head[0] == 0xFE && head[1] == 0xFF)):
		return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	case len(head) == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF:
		_, _ = br.Discard(3)
	}
	return br
}

func mapColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make(map[string]int, len(csvColumns))
	for col, names := range csvColumns {
		found := false
		for _, n := range names {
			if i, ok := idx[n]; ok {
				cols[col] = i
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w %q in header %v", ErrMissingColumn, col, header)
		}
	}
	return cols, nil
}

func parseRow(rec []string, cols map[string]int) (domain.Bar, error) {
	field := func(col string) (string, error) {
		i := cols[col]
		if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
			return "", fmt.Errorf("missing %s", col)
		}
		return strings.TrimSpace(rec[i]), nil
	}
	num := func(col string) (float64, error) {
		v, err := field(col)
		if err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q is not a number", col, v)
		}
		return f, nil
	}

	var b domain.Bar
	ts, err := field("timestamp")
	if err != nil {
		return b, err
	}
	if b.Timestamp, err = ParseTimestamp(ts); err != nil {
		return b, err
	}
	if b.Open, err = num("open"); err != nil {
		return b, err
	}
	if b.High, err = num("high"); err != nil {
		return b, err
	}
	if b.Low, err = num("low"); err != nil {
		return b, err
	}
	if b.Close, err = num("close"); err != nil {
		return b, err
	}
	if b.Volume, err = num("volume"); err != nil {
		return b, err
	}
	return b, nil
}

// ParseTimestamp accepts Unix seconds or milliseconds (values >= 1e12 are
// milliseconds), RFC3339, "2006-01-02 15:04:05" and "2006-01-02". The result
// is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return time.Time{}, fmt.Errorf("timestamp %q out of range", s)
		}
		if v >= millisThreshold {
			return time.UnixMilli(int64(v)).UTC(), nil
		}
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
