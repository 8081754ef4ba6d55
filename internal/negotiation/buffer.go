package negotiation

import "github.com/BioHazard786/pairlink/internal/protocol"

const maxBufferedCandidates = 256

// candidateBuffer holds remote candidates that arrive before the remote
// description they belong to.
type candidateBuffer struct {
	pending []protocol.Candidate
}

// push queues c. It reports false if the buffer is full and c was dropped.
func (b *candidateBuffer) push(c protocol.Candidate) bool {
	if len(b.pending) >= maxBufferedCandidates {
		return false
	}
	b.pending = append(b.pending, c)
	return true
}

// flush hands every queued candidate to add, in arrival order, and empties
// the buffer. It stops at the first error; the rest are discarded.
func (b *candidateBuffer) flush(add func(protocol.Candidate) error) error {
	pending := b.pending
	b.pending = nil
	for _, c := range pending {
		if err := add(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *candidateBuffer) reset() { b.pending = nil }

func (b *candidateBuffer) len() int { return len(b.pending) }
