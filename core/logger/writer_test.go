package logger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestAsyncWriterKeepsOrderAndRejectsAfterClose(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, nil, &b}, 16)
	for _, line := range []string{"one\n", "two\n", "three\n"} {
		if err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if a.String() != "one\ntwo\nthree\n" || a.String() != b.String() {
		t.Fatalf("unexpected sink contents %q / %q", a.String(), b.String())
	}
	if err := w.Write([]byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("expected errWriterClosed, got %v", err)
	}
	if strings.Contains(a.String(), "late") {
		t.Fatal("line written after close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
