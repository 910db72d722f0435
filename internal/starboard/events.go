package starboard

import (
	"log/slog"
	"sync"

	"starboard-bot/internal/models"
)

// EventKind enumerates the domain events the service publishes.
type EventKind int

const (
	EventStarboardCreate EventKind = iota
	EventStarboardDelete
	EventReactionAdd
	EventReactionRemove
	EventReactionRemoveAll
)

func (k EventKind) String() string {
	switch k {
	case EventStarboardCreate:
		return "starboardCreate"
	case EventStarboardDelete:
		return "starboardDelete"
	case EventReactionAdd:
		return "starboardReactionAdd"
	case EventReactionRemove:
		return "starboardReactionRemove"
	case EventReactionRemoveAll:
		return "starboardReactionRemoveAll"
	}
	return "unknown"
}

// Event carries the payload for one published domain event. Config is set for
// every kind; Message/User/Emoji/Count are populated per kind:
//
//	starboardCreate / starboardDelete:   Config only
//	starboardReactionAdd:                Message, User, Emoji, Count, Counting
//	starboardReactionRemove:             Message, User, Emoji, Count
//	starboardReactionRemoveAll:          Message
type Event struct {
	Kind    EventKind
	Config  Config
	Message *models.Message
	User    *models.User
	Emoji   string

	// Count is the live number of distinct reactors with the configured
	// emoji, read from platform state at emission time.
	Count int

	// Counting is false when the reaction exists on the platform but does
	// not count toward the threshold (a self-star with SelfStar disabled).
	// Such events are still published for observability.
	Counting bool
}

// MeetsThreshold reports whether the live count has reached the starboard's
// threshold. Non-counting events never meet it.
func (e Event) MeetsThreshold() bool {
	return e.Counting && e.Count >= e.Config.Options.Threshold
}

// Listener receives published events. Listeners run synchronously on the
// publishing goroutine, in registration order.
type Listener func(Event)

// Bus is the typed publish/subscribe layer. A panic in one listener is
// recovered and logged so later listeners still run.
type Bus struct {
	log *slog.Logger

	mu        sync.RWMutex
	listeners map[EventKind][]Listener
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		log:       log,
		listeners: make(map[EventKind][]Listener),
	}
}

// Subscribe registers fn for one event kind.
func (b *Bus) Subscribe(kind EventKind, fn Listener) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.listeners[kind] = append(b.listeners[kind], fn)
	b.mu.Unlock()
}

// Publish delivers ev to every listener registered for its kind.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	fns := make([]Listener, len(b.listeners[ev.Kind]))
	copy(fns, b.listeners[ev.Kind])
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(ev, fn)
	}
}

func (b *Bus) deliver(ev Event, fn Listener) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("listener_panic",
				"event", ev.Kind.String(),
				"panic", r,
			)
		}
	}()
	fn(ev)
}
