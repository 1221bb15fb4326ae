package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnixSecondsAndMillis(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime(strconv.FormatInt(want.Unix(), 10))
	if !ok || !got.Equal(want) {
		t.Fatalf("seconds: got %v ok=%v", got, ok)
	}
	got, ok = ParseTime(strconv.FormatInt(want.UnixMilli(), 10))
	if !ok || !got.Equal(want) {
		t.Fatalf("millis: got %v ok=%v", got, ok)
	}
}

func TestParseTimeframe(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"2h":  2 * time.Hour,
		"1d":  24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		if err != nil || got != want {
			t.Fatalf("ParseTimeframe(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "h", "0h", "5x", "-1h"} {
		if _, err := ParseTimeframe(bad); err == nil {
			t.Fatalf("ParseTimeframe(%q) expected error", bad)
		}
	}
}

func TestHourBucket(t *testing.T) {
	a := time.Date(2024, 3, 1, 14, 0, 1, 0, time.UTC)
	b := time.Date(2024, 3, 1, 14, 59, 59, 0, time.UTC)
	c := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	if HourBucket(a) != HourBucket(b) {
		t.Fatalf("same hour should share a bucket: %s vs %s", HourBucket(a), HourBucket(b))
	}
	if HourBucket(b) == HourBucket(c) {
		t.Fatalf("different hours should not share a bucket")
	}
	if got := HourBucket(a); got != "2024030114" {
		t.Fatalf("HourBucket = %s", got)
	}
}
