package ui

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

var errText = errors.New("text")

type partial struct{}

func (partial) UnknownText() tele.HandlerFunc     { return func(tele.Context) error { return errText } }
func (partial) UnknownDocument() tele.HandlerFunc { return nil }
func (partial) UnknownCallback() tele.HandlerFunc { return nil }

func TestResolveFillsMissingHandlers(t *testing.T) {
	fb := Resolve(partial{})
	if err := fb.Text(nil); !errors.Is(err, errText) {
		t.Fatalf("text fallback not kept: %v", err)
	}
	if fb.Document == nil || fb.Callback == nil {
		t.Fatal("missing handlers must be replaced")
	}
	if err := fb.Document(nil); err != nil {
		t.Fatalf("no-op fallback returned %v", err)
	}

	none := Resolve(nil)
	if none.Text(nil) != nil || none.Callback(nil) != nil {
		t.Fatal("nil provider should ignore updates")
	}
}
