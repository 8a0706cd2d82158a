// Package conversation keeps the bounded exchange history that seeds
// LLM prompts. Only successful exchanges enter the context; cache hits
// and failed dispatches never do.
package conversation

import (
	"sync"
	"time"
)

// Pair is one completed exchange: what the user said and what came back.
type Pair struct {
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
	Mode      string    `json:"mode"`
	At        time.Time `json:"at"`
}

// Context is a bounded FIFO of exchange pairs. Safe for concurrent use.
type Context struct {
	mu       sync.Mutex
	maxPairs int
	pairs    []Pair
}

// New creates a context holding at most maxPairs exchanges.
func New(maxPairs int) *Context {
	if maxPairs <= 0 {
		maxPairs = 100
	}
	return &Context{maxPairs: maxPairs}
}

// Append records a completed exchange, discarding the oldest pair when
// the context is full.
func (c *Context) Append(p Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = append(c.pairs, p)
	if len(c.pairs) > c.maxPairs {
		c.pairs = c.pairs[len(c.pairs)-c.maxPairs:]
	}
}

// Recent returns the last n pairs with each text field truncated to
// maxRunes. Used to build the prompt context block.
func (c *Context) Recent(n, maxRunes int) []Pair {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > len(c.pairs) {
		n = len(c.pairs)
	}
	out := make([]Pair, n)
	copy(out, c.pairs[len(c.pairs)-n:])
	for i := range out {
		out[i].Utterance = truncate(out[i].Utterance, maxRunes)
		out[i].Response = truncate(out[i].Response, maxRunes)
	}
	return out
}

// Len returns the number of pairs currently held.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairs)
}

// Snapshot returns a copy of all pairs, oldest first. Used by the
// persistence layer at shutdown.
func (c *Context) Snapshot() []Pair {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pair, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// Restore replaces the context contents, keeping only the newest
// maxPairs entries. Used at startup to resume a previous session.
func (c *Context) Restore(pairs []Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(pairs) > c.maxPairs {
		pairs = pairs[len(pairs)-c.maxPairs:]
	}
	c.pairs = append(c.pairs[:0], pairs...)
}

// Clear empties the context.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = nil
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
