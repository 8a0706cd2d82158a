package conversation

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func pair(i int) Pair {
	return Pair{
		Utterance: fmt.Sprintf("question %d", i),
		Response:  fmt.Sprintf("answer %d", i),
		Mode:      "default",
		At:        time.Now(),
	}
}

func TestAppendBounded(t *testing.T) {
	c := New(3)
	for i := 0; i < 5; i++ {
		c.Append(pair(i))
	}
	if c.Len() != 3 {
		t.Fatalf("want 3 pairs, got %d", c.Len())
	}

	snap := c.Snapshot()
	if snap[0].Utterance != "question 2" {
		t.Errorf("oldest surviving pair should be question 2, got %q", snap[0].Utterance)
	}
	if snap[2].Utterance != "question 4" {
		t.Errorf("newest pair should be question 4, got %q", snap[2].Utterance)
	}
}

func TestRecentTruncates(t *testing.T) {
	c := New(10)
	c.Append(Pair{Utterance: strings.Repeat("x", 300), Response: strings.Repeat("y", 300)})

	got := c.Recent(2, 200)
	if len(got) != 1 {
		t.Fatalf("want 1 pair, got %d", len(got))
	}
	if len([]rune(got[0].Utterance)) != 200 {
		t.Errorf("want utterance capped at 200 runes, got %d", len([]rune(got[0].Utterance)))
	}
	if len([]rune(got[0].Response)) != 200 {
		t.Errorf("want response capped at 200 runes, got %d", len([]rune(got[0].Response)))
	}

	// Truncation must not mutate the stored pair.
	if len(c.Snapshot()[0].Utterance) != 300 {
		t.Error("Recent mutated the stored pair")
	}
}

func TestRecentOrder(t *testing.T) {
	c := New(10)
	for i := 0; i < 4; i++ {
		c.Append(pair(i))
	}

	got := c.Recent(2, 0)
	if len(got) != 2 {
		t.Fatalf("want 2 pairs, got %d", len(got))
	}
	if got[0].Utterance != "question 2" || got[1].Utterance != "question 3" {
		t.Errorf("want last two pairs oldest first, got %q then %q", got[0].Utterance, got[1].Utterance)
	}
}

func TestSnapshotRestore(t *testing.T) {
	c := New(5)
	for i := 0; i < 3; i++ {
		c.Append(pair(i))
	}

	snap := c.Snapshot()
	restored := New(5)
	restored.Restore(snap)
	if restored.Len() != 3 {
		t.Fatalf("want 3 restored pairs, got %d", restored.Len())
	}

	// Restore respects the bound of the receiving context.
	small := New(2)
	small.Restore(snap)
	if small.Len() != 2 {
		t.Fatalf("want restore clipped to 2, got %d", small.Len())
	}
	if small.Snapshot()[0].Utterance != "question 1" {
		t.Error("restore should keep the newest pairs")
	}
}

func TestClear(t *testing.T) {
	c := New(5)
	c.Append(pair(0))
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("want empty context, got %d pairs", c.Len())
	}
}
