package source

import (
	"testing"
	"time"

	"github.com/KurimiTokisakiQAQ/kd/internal/globaltime"
)

func TestParseTimeLayouts(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 6, 1, 14, 30, 5, 0, time.Local)
	for _, raw := range []string{
		"2025-06-01 14:30:05",
		"2025-06-01T14:30:05",
	} {
		if got := ParseTime(raw); !got.Equal(want) {
			t.Fatalf("ParseTime(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParseTimeUnixSeconds(t *testing.T) {
	t.Parallel()

	got := ParseTime("1748766605")
	if got.Unix() != 1748766605 {
		t.Fatalf("unexpected unix parse: %v", got)
	}
}

func TestParseTimeUnparseableFallsBackToNow(t *testing.T) {
	mock := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	globaltime.SetMockTime(mock)
	defer globaltime.ResetTime()

	if got := ParseTime("not a time"); !got.Equal(mock) {
		t.Fatalf("expected mocked now, got %v", got)
	}
	if got := ParseTime(""); !got.Equal(mock) {
		t.Fatalf("expected mocked now for empty input, got %v", got)
	}
}

func TestSafeInt(t *testing.T) {
	t.Parallel()

	if got := SafeInt("42", -99); got != 42 {
		t.Fatalf("unexpected value: %d", got)
	}
	if got := SafeInt(" 3.0 ", -99); got != 3 {
		t.Fatalf("float coercion failed: %d", got)
	}
	if got := SafeInt("many", -99); got != -99 {
		t.Fatalf("expected sentinel, got %d", got)
	}
	if got := SafeInt("", -99); got != -99 {
		t.Fatalf("expected sentinel for empty, got %d", got)
	}
}

func TestNullableInt(t *testing.T) {
	t.Parallel()

	if got := NullableInt("-1"); !got.Valid || got.Int64 != -1 {
		t.Fatalf("unexpected nullable: %+v", got)
	}
	if got := NullableInt(""); got.Valid {
		t.Fatalf("empty input should be NULL")
	}
	if got := NullableInt("abc"); got.Valid {
		t.Fatalf("garbage input should be NULL")
	}
}

func TestCoerceString(t *testing.T) {
	t.Parallel()

	if got := coerceString(nil); got != "" {
		t.Fatalf("nil should coerce to empty, got %q", got)
	}
	if got := coerceString([]byte("bytes")); got != "bytes" {
		t.Fatalf("unexpected byte coercion: %q", got)
	}
	if got := coerceString(int64(7)); got != "7" {
		t.Fatalf("unexpected int coercion: %q", got)
	}
	ts := time.Date(2025, 6, 1, 14, 30, 5, 0, time.Local)
	if got := coerceString(ts); got != "2025-06-01 14:30:05" {
		t.Fatalf("unexpected time coercion: %q", got)
	}
}
