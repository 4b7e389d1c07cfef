package format

import "testing"

func TestEscapeMarkdownV1(t *testing.T) {
	got := EscapeMD("my_name *bold* [x]")
	if got != `my\_name \*bold\* \[x]` {
		t.Fatalf("unexpected escape: %s", got)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got, err := EscapeMarkdown("350.000 ₽ (грант)!", MarkdownV2)
	if err != nil {
		t.Fatalf("escape: %v", err)
	}
	if got != `350\.000 ₽ \(грант\)\!` {
		t.Fatalf("unexpected escape: %s", got)
	}
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

