// Package ui holds the contract for answering updates that no command,
// callback key or conversation state claims.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider supplies the handlers for unmatched updates.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Fallbacks are the provider's handlers resolved once at wiring time.
// Missing ones are replaced by a no-op so routers can call them blindly.
type Fallbacks struct {
	Text     tele.HandlerFunc
	Document tele.HandlerFunc
	Callback tele.HandlerFunc
}

func ignore(tele.Context) error { return nil }

func orIgnore(h tele.HandlerFunc) tele.HandlerFunc {
	if h == nil {
		return ignore
	}
	return h
}

// Resolve collects p's handlers. A nil provider ignores everything.
func Resolve(p FallbackProvider) Fallbacks {
	if p == nil {
		return Fallbacks{Text: ignore, Document: ignore, Callback: ignore}
	}
	return Fallbacks{
		Text:     orIgnore(p.UnknownText()),
		Document: orIgnore(p.UnknownDocument()),
		Callback: orIgnore(p.UnknownCallback()),
	}
}
