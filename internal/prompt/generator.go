// Package prompt turns accumulated speech transcripts into an LLM prompt and
// decides whether a detected speech onset was a real barge-in or a false
// alarm (backchannel or noise). On a real interruption it rewrites chat
// history so the agent's unheard response disappears and the user's new words
// read as a continuation of their previous turn.
package prompt

import (
	"strings"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/types"
)

// DefaultBackchannels are short acknowledgements that keep the agent talking
// rather than interrupting it. The config layer may replace this list.
var DefaultBackchannels = []string{
	"uh huh", "uh-huh", "mhmm", "mm-hmm",
	"okay", "ok", "yeah", "yep", "yes",
	"got it", "i see", "right", "sure", "alright",
	"continue", "go on", "go ahead",
}

// maxBackchannelTokens bounds the "contains a backchannel phrase" rule so
// that e.g. "okay but actually stop" still counts as a real interruption.
const maxBackchannelTokens = 2

// Result is what the decision logic needs from one generator invocation.
type Result struct {
	// NeedsNewPrompt reports whether the transcripts carry content the
	// agent must respond to. False means resume whatever was playing.
	NeedsNewPrompt bool

	// Prompt is the merged transcript text, empty when nothing was said.
	Prompt string

	// History is the (possibly rewritten) chat history to continue from.
	History []types.Message
}

// Generator classifies merged transcripts against a backchannel phrase set.
// The zero value is not usable; call New.
type Generator struct {
	backchannels map[string]struct{}
}

// New builds a Generator. An empty phrase list falls back to
// DefaultBackchannels.
func New(backchannels []string) *Generator {
	if len(backchannels) == 0 {
		backchannels = DefaultBackchannels
	}
	set := make(map[string]struct{}, len(backchannels))
	for _, p := range backchannels {
		set[normalize(p)] = struct{}{}
	}
	return &Generator{backchannels: set}
}

// Generate merges transcripts and decides how to proceed. The merged prompt
// keeps its original casing; classification is case-insensitive. Generate
// never mutates history; when a rewrite is needed it returns a copy.
func (g *Generator) Generate(transcripts []string, history []types.Message, isInterruption bool) Result {
	merged := collapse(strings.Join(transcripts, " "))

	if merged == "" {
		return Result{NeedsNewPrompt: false, Prompt: "", History: history}
	}
	if !isInterruption {
		return Result{NeedsNewPrompt: true, Prompt: merged, History: history}
	}
	if g.isFalseAlarm(strings.ToLower(merged)) {
		return Result{NeedsNewPrompt: false, Prompt: merged, History: history}
	}

	// Real barge-in: the trailing agent message was never heard, so drop
	// it, then fuse the new words onto the user's previous turn.
	cleaned := make([]types.Message, len(history))
	copy(cleaned, history)
	if n := len(cleaned); n > 0 && cleaned[n-1].Role == types.RoleAgent {
		cleaned = cleaned[:n-1]
	}
	if n := len(cleaned); n > 0 && cleaned[n-1].Role == types.RoleUser {
		cleaned[n-1].Content = cleaned[n-1].Content + " " + merged
	}
	return Result{NeedsNewPrompt: true, Prompt: merged, History: cleaned}
}

// isFalseAlarm reports whether lowered (the lowercased merged text) is a
// backchannel. Exact membership always matches; a phrase contained in a
// longer utterance only matches when the utterance is at most two tokens.
func (g *Generator) isFalseAlarm(lowered string) bool {
	if _, ok := g.backchannels[lowered]; ok {
		return true
	}
	if len(strings.Fields(lowered)) > maxBackchannelTokens {
		return false
	}
	for phrase := range g.backchannels {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// normalize lowercases and collapses whitespace; used for the phrase set.
func normalize(s string) string {
	return strings.ToLower(collapse(s))
}

// collapse reduces all whitespace runs to single spaces and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
