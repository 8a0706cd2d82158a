package templating

import (
	"strings"
	"testing"

	"github.com/sai-assistant/sai/internal/conversation"
)

func TestSystemPerMode(t *testing.T) {
	r := NewRenderer("")
	seen := map[string]bool{}
	for _, mode := range []string{ModeDefault, ModeMeeting, ModeLearning, ModeSummary} {
		prompt := r.System(mode)
		if prompt == "" {
			t.Errorf("mode %s has empty system prompt", mode)
		}
		if seen[prompt] {
			t.Errorf("mode %s shares a system prompt with another mode", mode)
		}
		seen[prompt] = true
	}

	// Unknown modes never fail a dispatch; they render as default.
	if got := r.System("bogus"); got != r.System(ModeDefault) {
		t.Error("unknown mode should fall back to the default prompt")
	}
}

func TestCustomMode(t *testing.T) {
	r := NewRenderer("You are a pirate.")
	if got := r.System(ModeCustom); got != "You are a pirate." {
		t.Errorf("custom mode should use the configured prompt, got %q", got)
	}

	// Empty custom template falls back to the default prompt.
	fallback := NewRenderer("")
	if got := fallback.System(ModeCustom); got != fallback.System(ModeDefault) {
		t.Error("empty custom prompt should fall back to default")
	}
}

func TestUserPromptWithContext(t *testing.T) {
	r := NewRenderer("")
	recent := []conversation.Pair{
		{Utterance: "first question", Response: "first answer"},
		{Utterance: "second question", Response: "second answer"},
	}

	got, err := r.User("what about now", recent)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "first question") || !strings.Contains(got, "second answer") {
		t.Errorf("prompt missing context pairs:\n%s", got)
	}
	if !strings.HasSuffix(got, "Current statement: what about now") {
		t.Errorf("prompt should end with the current statement:\n%s", got)
	}
	if strings.Index(got, "first question") > strings.Index(got, "second question") {
		t.Error("context pairs out of order")
	}
}

func TestUserPromptWithoutContext(t *testing.T) {
	r := NewRenderer("")
	got, err := r.User("hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Current statement: hello" {
		t.Errorf("want bare statement, got %q", got)
	}
}

func TestIsValidMode(t *testing.T) {
	for _, mode := range Modes() {
		if !IsValidMode(mode) {
			t.Errorf("mode %s should be valid", mode)
		}
	}
	if IsValidMode("nope") {
		t.Error("unknown mode should be invalid")
	}
}
