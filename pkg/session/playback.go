package session

import "sync"

// PlaybackQueue buffers model audio chunks for a playback consumer.
// It is a bounded FIFO: when pushing would exceed the byte budget, the
// oldest chunks are dropped first. An empty queue means playback is
// paused, not finished; more audio may arrive at any time.
type PlaybackQueue struct {
	mu       sync.Mutex
	format   AudioFormat
	maxBytes int
	chunks   [][]byte
	bytes    int
	dropped  int64
}

// NewPlaybackQueue creates a queue holding up to maxDurationMs of
// audio in the given format.
func NewPlaybackQueue(format AudioFormat, maxDurationMs int) *PlaybackQueue {
	return &PlaybackQueue{
		format:   format,
		maxBytes: format.BytesForDurationMs(maxDurationMs),
	}
}

// Push appends a chunk, evicting the oldest chunks if the budget is
// exceeded. Returns the number of chunks dropped.
func (q *PlaybackQueue) Push(chunk []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.chunks = append(q.chunks, chunk)
	q.bytes += len(chunk)

	dropped := 0
	for q.bytes > q.maxBytes && len(q.chunks) > 1 {
		q.bytes -= len(q.chunks[0])
		q.chunks = q.chunks[1:]
		dropped++
	}
	q.dropped += int64(dropped)
	return dropped
}

// Pop removes and returns the oldest chunk. ok is false when the
// queue is empty.
func (q *PlaybackQueue) Pop() (chunk []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk = q.chunks[0]
	q.chunks = q.chunks[1:]
	q.bytes -= len(chunk)
	return chunk, true
}

// Flush discards all buffered audio. Used on interruption so stale
// speech does not play over the next turn. Returns the number of
// chunks discarded.
func (q *PlaybackQueue) Flush() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.chunks)
	q.chunks = nil
	q.bytes = 0
	return n
}

// Len reports the number of buffered chunks.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// BufferedMs reports the buffered audio duration in milliseconds.
func (q *PlaybackQueue) BufferedMs() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.format.DurationMs(q.bytes)
}

// Dropped reports the total chunks evicted by overflow.
func (q *PlaybackQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
