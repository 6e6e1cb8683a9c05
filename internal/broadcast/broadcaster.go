package broadcast

import (
	"sync"

	"github.com/Belphemur/SubTranslate/internal/metrics"
	"github.com/Belphemur/SubTranslate/internal/models"
)

const (
	DefaultHistorySize = 100
	DefaultQueueSize   = 200
)

// Subscription is one listener of the event stream. Events arrive on C until
// the subscription is removed, at which point C is closed.
type Subscription struct {
	C  <-chan models.Event
	ch chan models.Event
}

// Broadcaster fans events out to every subscriber and keeps a short history
// that new subscribers receive first. Publish never blocks: a subscriber whose
// queue is full misses the event.
type Broadcaster struct {
	mu        sync.Mutex
	history   []models.Event // ring buffer
	next      int
	full      bool
	queueSize int
	subs      map[*Subscription]struct{}
}

// New creates a Broadcaster. Non-positive sizes fall back to the defaults.
func New(historySize, queueSize int) *Broadcaster {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		history:   make([]models.Event, historySize),
		queueSize: queueSize,
		subs:      make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a listener. The retained history is queued before any
// new event, so a subscriber sees neither gaps nor duplicates.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan models.Event, b.queueSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.snapshot() {
		select {
		case ch <- e:
		default:
		}
	}
	b.subs[sub] = struct{}{}
	metrics.BroadcastSubscribers.Set(float64(len(b.subs)))
	return sub
}

// Unsubscribe removes sub and closes its channel. Unknown or already removed
// subscriptions are ignored.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	metrics.BroadcastSubscribers.Set(float64(len(b.subs)))
}

// Publish records e in the history and offers it to every subscriber.
func (b *Broadcaster) Publish(e models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history[b.next] = e
	b.next = (b.next + 1) % len(b.history)
	if b.next == 0 {
		b.full = true
	}

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			metrics.BroadcastDroppedEventsTotal.Inc()
		}
	}
}

// History returns the retained events, oldest first.
func (b *Broadcaster) History() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close removes every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.ch)
	}
	clear(b.subs)
	metrics.BroadcastSubscribers.Set(0)
}

// snapshot must be called with mu held.
func (b *Broadcaster) snapshot() []models.Event {
	if !b.full {
		return append([]models.Event(nil), b.history[:b.next]...)
	}
	out := make([]models.Event, 0, len(b.history))
	out = append(out, b.history[b.next:]...)
	return append(out, b.history[:b.next]...)
}
