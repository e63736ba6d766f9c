package session

import (
	"strings"

	"github.com/sonacove/livebridge/pkg/wire"
)

// maxTrackedCancelledTurns bounds the cancelled-turn filter. Stale
// chunks only ever trail their turn by a few frames, so a short
// history is enough.
const maxTrackedCancelledTurns = 8

// outputRelay routes server content parts to consumer events and
// filters chunks belonging to interrupted turns. Owned by the session
// loop.
type outputRelay struct {
	cancelled  []int
	transcript strings.Builder
}

// markCancelled records that a turn was interrupted. Audio and text
// still in flight for that turn is dropped on arrival.
func (r *outputRelay) markCancelled(turn int) {
	r.cancelled = append(r.cancelled, turn)
	if len(r.cancelled) > maxTrackedCancelledTurns {
		r.cancelled = r.cancelled[len(r.cancelled)-maxTrackedCancelledTurns:]
	}
}

func (r *outputRelay) isCancelled(turn int) bool {
	for _, t := range r.cancelled {
		if t == turn {
			return true
		}
	}
	return false
}

// beginTurn resets per-turn accumulation.
func (r *outputRelay) beginTurn() {
	r.transcript.Reset()
}

// outputTranscript returns the accumulated output transcription for
// the current turn.
func (r *outputRelay) outputTranscript() string {
	return r.transcript.String()
}

// route converts one serverContent payload into ordered consumer
// events. Chunks for cancelled turns are dropped. Returns the events
// to emit; lifecycle flags are left to the caller.
func (r *outputRelay) route(sc *wire.ServerContent, turn int) []Event {
	var events []Event

	if !r.isCancelled(turn) && sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.Text != "" {
				events = append(events, &TextDeltaEvent{Turn: turn, Text: part.Text})
			}
			if blob := part.InlineData; blob != nil && len(blob.Data) > 0 {
				events = append(events, &AudioChunkEvent{
					Turn:     turn,
					MIMEType: blob.MIMEType,
					Data:     blob.Data,
				})
			}
		}
	}

	if t := sc.InputTranscription; t != nil && t.Text != "" {
		events = append(events, &TranscriptEvent{
			Turn: turn, Kind: TranscriptInput, Text: t.Text, Finished: t.Finished,
		})
	}
	if t := sc.OutputTranscription; t != nil && t.Text != "" {
		if !r.isCancelled(turn) {
			r.transcript.WriteString(t.Text)
			events = append(events, &TranscriptEvent{
				Turn: turn, Kind: TranscriptOutput, Text: t.Text, Finished: t.Finished,
			})
		}
	}

	return events
}
