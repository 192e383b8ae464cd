package orchestrator

import (
	"context"
	"sync"
)

// Default queue bounds. The text and audio queues apply natural backpressure
// on the LLM stream and the TTS worker; the STT job queue is unbounded
// because utterance rate is bounded by the human speaker.
const (
	defaultTextQueueBound  = 50
	defaultAudioQueueBound = 20
)

// sentence is one item of the text stream between agent runner and TTS
// worker. eos marks the end-of-stream sentinel for its generation.
type sentence struct {
	gen  uint64
	text string
	eos  bool
}

// frame is one item of the audio stream between TTS worker and playback
// dispatcher. Audio is base64-encoded, opaque to the orchestrator.
type frame struct {
	gen   uint64
	audio string
	eos   bool
}

// jobQueue is an unbounded FIFO of audio buffers awaiting transcription.
// Push never blocks; Pop blocks until an item arrives, the queue closes, or
// ctx is cancelled.
type jobQueue struct {
	mu     sync.Mutex
	items  [][]byte
	wake   chan struct{}
	closed bool
}

func newJobQueue() *jobQueue {
	return &jobQueue{wake: make(chan struct{}, 1)}
}

func (q *jobQueue) Push(buf []byte) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, buf)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop returns the next buffer. ok is false when the queue is closed or ctx
// is done.
func (q *jobQueue) Pop(ctx context.Context) (buf []byte, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			buf = q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return buf, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.wake:
		}
	}
}

// Drain discards all queued buffers and returns how many were dropped.
func (q *jobQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *jobQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drainSentences empties ch without blocking and reports how many items were
// discarded. Safe to call while a producer is blocked on the channel; the
// producer's next send lands in the freed capacity and is later dropped by
// the consumer's generation filter.
func drainSentences(ch chan sentence) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

// drainFrames empties ch without blocking.
func drainFrames(ch chan frame) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

// gate is a reopenable barrier used to pause the playback dispatcher.
// The zero value is not usable; call newGate.
type gate struct {
	mu   sync.Mutex
	open chan struct{} // closed channel = gate open
}

func newGate() *gate {
	g := &gate{open: make(chan struct{})}
	close(g.open) // starts open
	return g
}

// Open lets waiters through. Idempotent.
func (g *gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
	default:
		close(g.open)
	}
}

// Shut blocks subsequent waiters. Idempotent.
func (g *gate) Shut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
	}
}

// Wait blocks until the gate is open or ctx is done, returning false on the
// latter.
func (g *gate) Wait(ctx context.Context) bool {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}
