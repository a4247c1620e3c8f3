package pipeline

import (
	"log/slog"
	"sync"
)

// Broadcaster is the single authority for one job's event stream. It keeps
// a capped log of recent events so late subscribers can replay history
// before receiving live updates, and it records the terminal event so a
// subscriber arriving after completion still sees how the job ended.
type Broadcaster struct {
	mu       sync.Mutex
	jobID    string
	logCap   int
	events   []StreamEvent
	subs     map[*Subscription]struct{}
	finished bool
	logger   *slog.Logger
}

// Subscription is one consumer's view of a job stream. Events arrive on C;
// the channel is closed after the terminal event is delivered or when the
// subscriber falls too far behind.
type Subscription struct {
	C      <-chan StreamEvent
	ch     chan StreamEvent
	closed bool
}

// DefaultEventLogCap bounds the replay log when no cap is configured.
const DefaultEventLogCap = 100

// NewBroadcaster creates a broadcaster for a job's event stream.
func NewBroadcaster(jobID string, logCap int, logger *slog.Logger) *Broadcaster {
	if logCap <= 0 {
		logCap = DefaultEventLogCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		jobID:  jobID,
		logCap: logCap,
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Publish appends a progress event to the log and fans it out to all live
// subscribers. Publishing never blocks: a subscriber whose buffer is full
// is dropped and its channel closed.
func (b *Broadcaster) Publish(ev ProgressEvent) {
	b.deliver(StreamEvent{Type: EventProgress, Data: ev})
}

// Succeed delivers the terminal done event and closes all subscriptions.
func (b *Broadcaster) Succeed() {
	b.deliver(StreamEvent{Type: EventDone, Data: map[string]string{"job_id": b.jobID}})
}

// Fail delivers the terminal error event and closes all subscriptions.
func (b *Broadcaster) Fail(message string) {
	b.deliver(StreamEvent{Type: EventError, Data: map[string]string{"message": message}})
}

func (b *Broadcaster) deliver(ev StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finished {
		return
	}

	b.events = append(b.events, ev)
	if len(b.events) > b.logCap+1 {
		b.events = b.events[len(b.events)-b.logCap-1:]
	}

	terminal := ev.Type == EventDone || ev.Type == EventError

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer: drop it rather than stall the pipeline.
			b.logger.Warn("dropping slow stream subscriber",
				slog.String("job_id", b.jobID))
			delete(b.subs, sub)
			b.closeSub(sub)
			continue
		}
		if terminal {
			delete(b.subs, sub)
			b.closeSub(sub)
		}
	}

	if terminal {
		b.finished = true
	}
}

// Subscribe registers a consumer. The full retained history is queued
// first, so a subscriber always sees replayed events before live ones. If
// the job already finished, the replay ends with the terminal event and
// the channel is closed immediately.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Buffer covers the full replay plus headroom for live events.
	ch := make(chan StreamEvent, b.logCap+16)
	sub := &Subscription{C: ch, ch: ch}

	for _, ev := range b.events {
		ch <- ev
	}

	if b.finished {
		sub.closed = true
		close(ch)
		return sub
	}

	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches a consumer and closes its channel. Safe to call
// after the broadcaster already closed the subscription.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		b.closeSub(sub)
	}
}

func (b *Broadcaster) closeSub(sub *Subscription) {
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Finished reports whether a terminal event has been delivered.
func (b *Broadcaster) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}
