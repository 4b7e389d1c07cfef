package logger

import (
	"context"
	"testing"
	"time"
)

func TestCompactRID(t *testing.T) {
	cases := map[string]string{
		"12:34:56":            "c.y.1k",
		"-1:0:35":             "-1.0.z",
		"not-a-rid":           "not-a-rid",
		"1:x:2":               "1:x:2",
		BuildRID(7, -100, 42): "7.-2s.16",
	}
	for in, want := range cases {
		if got := CompactRID(in); got != want {
			t.Fatalf("CompactRID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\nd", 10); got != "abc\nd" {
		t.Fatalf("unexpected sanitize result %q", got)
	}
	if got := SanitizeLimit("привет", 3); got != "при" {
		t.Fatalf("limit must count runes, got %q", got)
	}
	if got := SanitizeLimit("x", 0); got != "" {
		t.Fatalf("zero limit should yield empty string, got %q", got)
	}
}

func TestRoundMS(t *testing.T) {
	if got := RoundMS(1499 * time.Microsecond); got != time.Millisecond {
		t.Fatalf("RoundMS = %v", got)
	}
	if got := RoundMS(-time.Second); got != 0 {
		t.Fatalf("negative durations should clamp to zero, got %v", got)
	}
}

func TestContextMetaDoesNotLeakToParent(t *testing.T) {
	parent := WithRID(context.Background(), "1:2:3")
	child := WithRunID(WithHandler(parent, "survey_answer"), "run-9")

	if m := metaFrom(parent); m.handler != "" || m.runID != "" {
		t.Fatalf("parent meta changed: %+v", m)
	}
	m := metaFrom(child)
	if m.rid != "1:2:3" || m.handler != "survey_answer" || m.runID != "run-9" {
		t.Fatalf("unexpected child meta: %+v", m)
	}
	if metaFrom(WithHandler(child, "")).handler != "survey_answer" {
		t.Fatal("empty handler must not clear the current one")
	}
}
