package sensor

import "sync"

// Mailbox is a BodyFrameReader that holds at most one pending arrival.
// Offering while an arrival is still pending replaces it and counts a drop.
type Mailbox struct {
	ch chan FrameReference

	mu     sync.Mutex
	closed bool
	drops  uint64
}

// NewMailbox returns an open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan FrameReference, 1)}
}

// Arrivals implements BodyFrameReader.
func (m *Mailbox) Arrivals() <-chan FrameReference { return m.ch }

// Offer publishes ref, displacing an unconsumed arrival. Offers after Close
// are ignored.
func (m *Mailbox) Offer(ref FrameReference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.ch <- ref:
		return
	default:
	}
	select {
	case <-m.ch:
		m.drops++
	default:
	}
	m.ch <- ref
}

// Drops reports how many arrivals were displaced before being consumed.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}

// Close closes the arrival channel. It is safe to call more than once.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
	return nil
}
