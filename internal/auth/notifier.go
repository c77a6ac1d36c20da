package auth

import "sync"

type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
)

type Event struct {
	Kind   EventKind
	UserID string
}

// Notifier fans authentication events out to subscribers. Subscribers are
// called synchronously in registration order and must not block.
type Notifier struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Subscribe(fn func(Event)) {
	n.mu.Lock()
	n.subs = append(n.subs, fn)
	n.mu.Unlock()
}

func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	subs := make([]func(Event), len(n.subs))
	copy(subs, n.subs)
	n.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
