// Package templating renders LLM prompts for each assistant mode. The
// system prompt sets the mode's register; the user prompt carries a
// short window of recent exchanges plus the current utterance.
package templating

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/sai-assistant/sai/internal/conversation"
)

// Assistant modes. Each mode swaps the system prompt, nothing else.
const (
	ModeDefault  = "default"
	ModeMeeting  = "meeting"
	ModeLearning = "learning"
	ModeSummary  = "summary"
	ModeCustom   = "custom"
)

var systemPrompts = map[string]string{
	ModeDefault: "You are a quiet desktop assistant overhearing the user speak. " +
		"Reply with one short, helpful remark about what was just said. " +
		"Be concise; never exceed two sentences.",
	ModeMeeting: "You are assisting during a live meeting. For each statement, " +
		"surface an action item, decision, or open question if one is present. " +
		"If nothing actionable was said, reply with a one-line recap.",
	ModeLearning: "You are a study companion. For each statement, add one " +
		"clarifying fact, definition, or correction that deepens the user's " +
		"understanding of the topic. Keep it to two sentences.",
	ModeSummary: "You condense speech. Reply with a single-sentence summary " +
		"of what was just said, preserving names and numbers.",
}

const userPromptText = `{{if .Pairs}}Recent conversation:
{{range .Pairs}}User: {{.Utterance}}
Assistant: {{.Response}}
{{end}}
{{end}}Current statement: {{.Utterance}}`

var userPrompt = template.Must(template.New("user").Parse(userPromptText))

// IsValidMode reports whether name is a recognized assistant mode.
func IsValidMode(name string) bool {
	if name == ModeCustom {
		return true
	}
	_, ok := systemPrompts[name]
	return ok
}

// Modes lists the recognized mode names.
func Modes() []string {
	return []string{ModeDefault, ModeMeeting, ModeLearning, ModeSummary, ModeCustom}
}

// Renderer produces the system and user prompt for a dispatch.
type Renderer struct {
	customPrompt string
}

// NewRenderer creates a renderer. customPrompt is the system prompt used
// by the custom mode; empty falls back to the default mode's prompt.
func NewRenderer(customPrompt string) *Renderer {
	return &Renderer{customPrompt: customPrompt}
}

// System returns the system prompt for the given mode. Unrecognized
// modes fall back to the default prompt rather than failing a dispatch.
func (r *Renderer) System(mode string) string {
	if mode == ModeCustom {
		if r.customPrompt == "" {
			return systemPrompts[ModeDefault]
		}
		return r.customPrompt
	}
	if prompt, ok := systemPrompts[mode]; ok {
		return prompt
	}
	return systemPrompts[ModeDefault]
}

// promptData feeds the user prompt template.
type promptData struct {
	Utterance string
	Pairs     []conversation.Pair
}

// User renders the user prompt: the recent exchange window followed by
// the current utterance.
func (r *Renderer) User(utterance string, recent []conversation.Pair) (string, error) {
	var buf bytes.Buffer
	err := userPrompt.Execute(&buf, promptData{Utterance: utterance, Pairs: recent})
	if err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}
	return buf.String(), nil
}
