package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/observe"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/llm"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/types"
)

// maxToolRounds bounds the tool-call loop so a misbehaving model cannot spin
// the session forever.
const maxToolRounds = 8

// sentenceBoundary are the characters that trigger a sentence flush to the
// TTS queue.
const sentenceBoundary = ".!?\n"

// runAgent drives one LLM generation identified by gen. It streams tokens,
// batches them into sentences for the TTS worker, services tool calls, and
// finally commits the full response to chat history, but only if gen is
// still the current generation at commit time. A superseded runner's output
// is dropped wholesale.
func (o *Orchestrator) runAgent(ctx context.Context, hist []types.Message, gen uint64) {
	ctx, span := observe.StartSpan(ctx, "agent.generation",
		trace.WithAttributes(
			attribute.String("session_id", o.id),
			attribute.Int64("generation_id", int64(gen)),
		),
	)
	defer span.End()

	o.withCurrentGen(gen, func() {
		o.state.responseInProgress = true
	})

	start := time.Now()
	full, completed := o.streamGeneration(ctx, hist, gen)
	o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())

	if !completed {
		// Cancelled mid-stream. Downstream queues are drained by whoever
		// cancelled us; nothing to commit.
		o.withCurrentGen(gen, func() {
			o.state.agentStatus = StageIdle
		})
		return
	}

	o.pushSentence(ctx, sentence{gen: gen, eos: true})

	o.mu.Lock()
	if o.state.generationID == gen {
		if full != "" {
			o.history = append(o.history, types.Message{Role: types.RoleAgent, Content: full})
		}
		o.state.agentStatus = StageIdle
		o.mu.Unlock()
		o.archiveEntry(types.RoleAgent, full, gen)
		o.log.Info("generation committed", "generation_id", gen, "chars", len(full))
		return
	}
	o.mu.Unlock()
	o.metrics.RecordStaleDrop(ctx, "history")
	o.log.Debug("generation superseded, response dropped", "generation_id", gen)
}

// streamGeneration runs the LLM stream including the tool-call loop. It
// returns the concatenated response text and whether the stream ran to
// natural completion (false means cancelled).
func (o *Orchestrator) streamGeneration(ctx context.Context, hist []types.Message, gen uint64) (string, bool) {
	working := make([]types.Message, len(hist))
	copy(working, hist)

	var full strings.Builder

	for round := 0; ; round++ {
		req := llm.CompletionRequest{
			Messages:     working,
			Temperature:  o.temperature,
			SystemPrompt: o.systemPrompt,
		}
		if o.toolsEnabled && round < maxToolRounds {
			req.Tools = o.catalog.Definitions()
		}

		ch, err := o.llmP.StreamCompletion(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return full.String(), false
			}
			o.log.Error("LLM stream failed", "error", err, "generation_id", gen)
			o.metrics.RecordProviderError(ctx, "llm")
			o.pushSentence(ctx, sentence{gen: gen, text: fallbackSentence})
			full.WriteString(fallbackSentence)
			return full.String(), true
		}

		text, toolCalls, ok := o.consumeStream(ctx, ch, gen, &full)
		if !ok {
			return full.String(), false
		}
		if len(toolCalls) == 0 {
			return full.String(), true
		}

		// Service the tool calls and loop with their results appended.
		working = append(working, types.Message{
			Role:      types.RoleAssistant,
			Content:   text,
			ToolCalls: toolCalls,
		})
		results, ok := o.invokeTools(ctx, toolCalls)
		if !ok {
			return full.String(), false
		}
		working = append(working, results...)
	}
}

// consumeStream reads one LLM stream to completion, flushing sentences to
// the TTS queue as boundaries appear. It returns the text produced by this
// round, any tool calls the model issued, and ok=false on cancellation.
func (o *Orchestrator) consumeStream(ctx context.Context, ch <-chan llm.Chunk, gen uint64, full *strings.Builder) (string, []types.ToolCall, bool) {
	var (
		roundText strings.Builder
		buf       strings.Builder
		toolCalls []types.ToolCall
		sawToken  bool
	)

	for {
		select {
		case <-ctx.Done():
			return roundText.String(), toolCalls, false

		case chunk, open := <-ch:
			if !open {
				if tail := strings.TrimSpace(buf.String()); tail != "" {
					if !o.pushSentence(ctx, sentence{gen: gen, text: tail}) {
						return roundText.String(), toolCalls, false
					}
				}
				return roundText.String(), toolCalls, true
			}

			if chunk.FinishReason == llm.FinishReasonError {
				o.log.Error("LLM stream error mid-generation", "detail", chunk.Text, "generation_id", gen)
				o.metrics.RecordProviderError(ctx, "llm")
				o.pushSentence(ctx, sentence{gen: gen, text: fallbackSentence})
				full.WriteString(fallbackSentence)
				return roundText.String() + fallbackSentence, nil, true
			}

			if len(chunk.ToolCalls) > 0 {
				toolCalls = append(toolCalls, chunk.ToolCalls...)
			}

			if chunk.Text != "" {
				if !sawToken {
					sawToken = true
					o.withCurrentGen(gen, func() {
						o.state.agentStatus = StageStreaming
					})
				}
				roundText.WriteString(chunk.Text)
				full.WriteString(chunk.Text)
				buf.WriteString(chunk.Text)

				if strings.ContainsAny(chunk.Text, sentenceBoundary) {
					if s := strings.TrimSpace(buf.String()); s != "" {
						if !o.pushSentence(ctx, sentence{gen: gen, text: s}) {
							return roundText.String(), toolCalls, false
						}
					}
					buf.Reset()
				}
			}
		}
	}
}

// invokeTools runs each requested tool through the catalog, returning their
// result messages. ok=false means the context died mid-invocation.
func (o *Orchestrator) invokeTools(ctx context.Context, calls []types.ToolCall) ([]types.Message, bool) {
	o.withState(func() {
		o.state.toolStatus = StageProcessing
	})
	defer o.withState(func() {
		o.state.toolStatus = StageIdle
	})

	results := make([]types.Message, 0, len(calls))
	for _, call := range calls {
		if ctx.Err() != nil {
			return nil, false
		}

		out, err := o.catalog.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false
			}
			o.log.Warn("tool invocation failed", "tool", call.Name, "error", err)
			o.metrics.RecordToolCall(ctx, call.Name, "error")
			out = "Error: " + err.Error()
		} else {
			o.metrics.RecordToolCall(ctx, call.Name, "ok")
		}

		results = append(results, types.Message{
			Role:       types.RoleTool,
			Content:    out,
			ToolCallID: call.ID,
		})
	}
	return results, true
}

// pushSentence delivers one item to the text queue, blocking for
// backpressure. Returns false if ctx dies first.
func (o *Orchestrator) pushSentence(ctx context.Context, s sentence) bool {
	select {
	case o.textQ <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

// withCurrentGen runs fn under the session lock only if gen is still the
// current generation. Superseded runners must not touch shared state.
func (o *Orchestrator) withCurrentGen(gen uint64, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.generationID == gen {
		fn()
	}
}

// withState runs fn under the session lock unconditionally.
func (o *Orchestrator) withState(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}
