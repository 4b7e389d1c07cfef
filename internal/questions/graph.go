// Package questions holds the fixed survey definition: question order, answer
// options and the two branch points of the flow.
package questions

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrNotFound is returned for question ids absent from the graph.
var ErrNotFound = errors.New("question not found")

// Branch points of the survey.
const (
	// CheckpointAfter is the question after which the "continue?" interstitial is shown.
	CheckpointAfter = "micro_result"
	// CheckpointID is the pseudo question id used while the interstitial is pending.
	CheckpointID = "checkpoint"
	// ContinueSignal is the only answer accepted at the checkpoint.
	ContinueSignal = "continue"

	// AgeBracketField selects the final message variant.
	AgeBracketField = "is_under_25"
	// AgeBracketUnder25 is the answer that unlocks the grant option.
	AgeBracketUnder25 = "Да"
)

// Question is one survey step. Next == "" marks the terminal question.
type Question struct {
	ID        string
	PromptKey string
	Options   []string
	Next      string
	Field     string
}

// Choice reports whether the question restricts answers to Options.
func (q Question) Choice() bool { return len(q.Options) > 0 }

// Terminal reports whether the question ends the survey.
func (q Question) Terminal() bool { return q.Next == "" }

// Graph is an immutable, validated question chain.
type Graph struct {
	first      string
	checkpoint string
	byID       map[string]Question
	order      []string
}

// New validates qs and builds a Graph starting at first. The checkpoint fires
// after checkpointAfter; pass "" for a survey without one.
func New(first string, qs []Question, checkpointAfter string) (*Graph, error) {
	g := &Graph{
		first:      first,
		checkpoint: checkpointAfter,
		byID:       make(map[string]Question, len(qs)),
	}
	fields := make(map[string]string, len(qs))
	for _, q := range qs {
		if q.ID == "" {
			return nil, fmt.Errorf("question with empty id")
		}
		if q.ID == CheckpointID {
			return nil, fmt.Errorf("question id %q is reserved", q.ID)
		}
		if _, dup := g.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		if q.Field == "" {
			q.Field = q.ID
		}
		if other, dup := fields[q.Field]; dup {
			return nil, fmt.Errorf("questions %q and %q share field %q", other, q.ID, q.Field)
		}
		fields[q.Field] = q.ID
		if q.PromptKey == "" {
			q.PromptKey = "question_" + q.ID
		}
		q.Options = slices.Clone(q.Options)
		g.byID[q.ID] = q
	}

	if _, ok := g.byID[first]; !ok {
		return nil, fmt.Errorf("first question %q: %w", first, ErrNotFound)
	}

	seen := make(map[string]bool, len(qs))
	terminals := 0
	for id := first; id != ""; {
		if seen[id] {
			return nil, fmt.Errorf("cycle detected at question %q", id)
		}
		seen[id] = true
		q, ok := g.byID[id]
		if !ok {
			return nil, fmt.Errorf("next question %q: %w", id, ErrNotFound)
		}
		g.order = append(g.order, id)
		if q.Terminal() {
			terminals++
		}
		id = q.Next
	}
	if terminals != 1 {
		return nil, fmt.Errorf("expected exactly one terminal question, found %d", terminals)
	}
	if len(seen) != len(g.byID) {
		for id := range g.byID {
			if !seen[id] {
				return nil, fmt.Errorf("question %q is unreachable from %q", id, first)
			}
		}
	}

	if checkpointAfter != "" {
		q, ok := g.byID[checkpointAfter]
		if !ok {
			return nil, fmt.Errorf("checkpoint question %q: %w", checkpointAfter, ErrNotFound)
		}
		if q.Terminal() {
			return nil, fmt.Errorf("checkpoint question %q cannot be terminal", checkpointAfter)
		}
	}
	return g, nil
}

// MustNew is New that panics on an invalid definition.
func MustNew(first string, qs []Question, checkpointAfter string) *Graph {
	g, err := New(first, qs, checkpointAfter)
	if err != nil {
		panic("questions: " + err.Error())
	}
	return g
}

// First returns the id of the opening question.
func (g *Graph) First() string { return g.first }

// Get returns the question with the given id.
func (g *Graph) Get(id string) (Question, error) {
	q, ok := g.byID[id]
	if !ok {
		return Question{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	q.Options = slices.Clone(q.Options)
	return q, nil
}

// Next returns the id following id; ok is false at the terminal question.
func (g *Graph) Next(id string) (string, bool, error) {
	q, err := g.Get(id)
	if err != nil {
		return "", false, err
	}
	return q.Next, !q.Terminal(), nil
}

// IsCheckpoint reports whether answering id triggers the interstitial.
func (g *Graph) IsCheckpoint(id string) bool {
	return g.checkpoint != "" && id == g.checkpoint
}

// Len returns the number of questions.
func (g *Graph) Len() int { return len(g.order) }

// Position returns the 1-based position of id in the chain, 0 if unknown.
func (g *Graph) Position(id string) int {
	return slices.Index(g.order, id) + 1
}

// Fields returns response field names in question order.
func (g *Graph) Fields() []string {
	out := make([]string, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.byID[id].Field)
	}
	return out
}

// Questions returns questions in chain order.
func (g *Graph) Questions() []Question {
	out := make([]Question, 0, len(g.order))
	for _, id := range g.order {
		q, _ := g.Get(id)
		out = append(out, q)
	}
	return out
}

// Accepts validates raw against the question. Choice questions accept only one
// of their option labels; free-text questions accept any non-blank input.
// The returned value is the normalized answer to persist.
func (q Question) Accepts(raw string) (string, bool) {
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", false
	}
	if !q.Choice() {
		return answer, true
	}
	for _, opt := range q.Options {
		if opt == answer {
			return opt, true
		}
	}
	return "", false
}

// Option returns the option label at idx.
func (q Question) Option(idx int) (string, bool) {
	if idx < 0 || idx >= len(q.Options) {
		return "", false
	}
	return q.Options[idx], true
}
