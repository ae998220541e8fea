package util

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error {
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	// The first token is available immediately.
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", "text").Warn("hello", "k", 1)
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text logger output = %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "info", "json").Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("json logger output = %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "error", "json").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("error-level logger wrote info line: %q", buf.String())
	}
}

func TestParseDate(t *testing.T) {
	got, dateOnly, err := ParseDate("2023-03-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !dateOnly || !got.Equal(time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate = %v, %v", got, dateOnly)
	}

	got, dateOnly, err = ParseDate("2023-03-15T10:00:00+02:00")
	if err != nil {
		t.Fatalf("ParseDate RFC3339: %v", err)
	}
	if dateOnly || !got.Equal(time.Date(2023, 3, 15, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate RFC3339 = %v, %v", got, dateOnly)
	}

	if _, _, err := ParseDate("15/03/2023"); err == nil {
		t.Error("ParseDate accepted 15/03/2023")
	}
}

func TestEndOfDay(t *testing.T) {
	got := EndOfDay(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if !got.Equal(want) {
		t.Errorf("EndOfDay = %v, want %v", got, want)
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"20d", 20 * 24 * time.Hour, true},
		{"1.5d", 36 * time.Hour, true},
		{"36h", 36 * time.Hour, true},
		{"90m", 90 * time.Minute, true},
		{"0d", 0, false},
		{"-3h", 0, false},
		{"week", 0, false},
		{"", 0, false},
		{"1e10d", 0, false},
		{"NaNd", 0, false},
		{"Infd", 0, false},
		{"100000d", 100000 * 24 * time.Hour, true},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseWindow(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParseWindow(%q) = %v, want error", tt.in, got)
		}
	}
}

func TestRetryPermanent(t *testing.T) {
	attempts := 0
	bad := errors.New("forbidden")

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		return Permanent(bad)
	})
	if err != bad {
		t.Errorf("Retry error = %v, want %v", err, bad)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait on disabled limiter: %v", err)
		}
	}
}
