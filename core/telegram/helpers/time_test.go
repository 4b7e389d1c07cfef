package helpers

import (
	"testing"
	"time"
)

func TestParseReportDate(t *testing.T) {
	want := time.Date(2026, 10, 5, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	for _, in := range []string{"2026-10-05", "05.10.2026", "5.10.2026", " 2026-10-5 "} {
		got, ok := ParseReportDate(in)
		if !ok {
			t.Fatalf("%q: expected parse success", in)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
	if _, ok := ParseReportDate("yesterday"); ok {
		t.Fatal("expected failure for free text")
	}
}
