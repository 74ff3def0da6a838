package executor

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	EventCreate   = "create"
	EventMove     = "move"
	EventDelete   = "delete"
	EventProgress = "progress"

	subscriberBuffer = 64
)

// Event reports the outcome of one operation, or a phase message when
// Type is EventProgress.
type Event struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Name      string `json:"name,omitempty"`
	ID        string `json:"id,omitempty"`
	FileID    string `json:"fileId,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Observer receives events synchronously, in publication order.
type Observer func(Event)

// Broadcaster fans events out to observers and channel subscribers. A
// panicking observer is logged and skipped; slow subscribers drop events.
type Broadcaster struct {
	mutex       sync.Mutex
	observers   []Observer
	subscribers map[chan Event]struct{}
	logger      *zap.Logger
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{subscribers: make(map[chan Event]struct{}), logger: logger}
}

func (b *Broadcaster) Observe(observer Observer) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.observers = append(b.observers, observer)
}

// Subscribe returns a buffered event channel. The caller must call Unsubscribe.
func (b *Broadcaster) Subscribe() chan Event {
	channel := make(chan Event, subscriberBuffer)
	b.mutex.Lock()
	b.subscribers[channel] = struct{}{}
	b.mutex.Unlock()
	return channel
}

func (b *Broadcaster) Unsubscribe(channel chan Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.subscribers[channel]; ok {
		delete(b.subscribers, channel)
		close(channel)
	}
}

func (b *Broadcaster) Publish(event Event) {
	if b == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for index, observer := range b.observers {
		b.notify(index, observer, event)
	}
	for channel := range b.subscribers {
		select {
		case channel <- event:
		default:
		}
	}
}

func (b *Broadcaster) Progress(format string, args ...any) {
	b.Publish(Event{Type: EventProgress, Success: true, Message: fmt.Sprintf(format, args...)})
}

func (b *Broadcaster) notify(index int, observer Observer, event Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Warn("observer panicked", zap.Int("observer", index), zap.String("event", event.Type), zap.Any("panic", recovered))
		}
	}()
	observer(event)
}
