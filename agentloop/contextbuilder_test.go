package agentloop

import (
	"strings"
	"testing"
)

func historyOf(contents ...string) []Message {
	msgs := make([]Message, len(contents))
	for i, c := range contents {
		role := RoleUser
		switch i {
		case 0:
			role = RoleSystem
		default:
			if i%2 == 0 {
				role = RoleAssistant
			}
		}
		msgs[i] = Message{Role: role, Content: c, Ordinal: i}
	}
	return msgs
}

func TestBuildNoBudgetReturnsAll(t *testing.T) {
	b := &ContextBuilder{}
	history := historyOf("system", "goal", "reply", "result")
	got := b.Build(history)
	if len(got) != 4 {
		t.Errorf("zero budget means unlimited, got %d messages", len(got))
	}
}

func TestBuildUnderBudgetReturnsAll(t *testing.T) {
	b := &ContextBuilder{BudgetChars: 1000}
	history := historyOf("system", "goal", "reply", "result")
	got := b.Build(history)
	if len(got) != len(history) {
		t.Errorf("expected full history, got %d messages", len(got))
	}
}

func TestBuildKeepsSeedAndRecentSuffix(t *testing.T) {
	system := strings.Repeat("s", 40)
	goal := strings.Repeat("g", 40)
	history := historyOf(
		system, goal,
		strings.Repeat("a", 200), // old, should drop
		strings.Repeat("b", 200), // old, should drop
		strings.Repeat("c", 50),
		strings.Repeat("d", 50),
	)

	b := &ContextBuilder{BudgetChars: 300}
	got := b.Build(history)

	if got[0].Content != system || got[1].Content != goal {
		t.Fatal("seed messages must always survive")
	}

	var hasMarker bool
	for _, m := range got {
		if strings.Contains(m.Content, "omitted") {
			hasMarker = true
		}
		if strings.HasPrefix(m.Content, "a") || strings.HasPrefix(m.Content, "b") {
			t.Error("old middle messages should be dropped")
		}
	}
	if !hasMarker {
		t.Error("dropped history should leave a marker")
	}

	last := got[len(got)-1]
	if !strings.HasPrefix(last.Content, "d") {
		t.Errorf("most recent message must survive, got %q prefix", last.Content[:1])
	}
}

func TestBuildMarkerOnlyWhenDropping(t *testing.T) {
	b := &ContextBuilder{BudgetChars: 10000}
	history := historyOf("system", "goal", "reply")
	for _, m := range b.Build(history) {
		if strings.Contains(m.Content, "omitted") {
			t.Error("no marker when nothing is dropped")
		}
	}
}
