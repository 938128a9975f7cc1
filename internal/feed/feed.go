package feed

import (
	"context"
	"encoding/json"
	"time"
)

// Table names carried in change events.
const (
	TableCalls         = "calls"
	TableMessages      = "messages"
	TableConversations = "conversations"
)

// Kind is the change-event kind.
type Kind string

const (
	Insert Kind = "insert"
	Update Kind = "update"
	Delete Kind = "delete"
)

// Event is one change notification. Record carries the affected row as JSON.
// Delivery is at-least-once: consumers must tolerate duplicates and their own
// writes echoing back.
type Event struct {
	Table     string          `json:"table"`
	Kind      Kind            `json:"kind"`
	Record    json.RawMessage `json:"record"`
	Timestamp time.Time       `json:"timestamp"`
}

// Filter decides whether an event is delivered to a subscription. A nil
// filter matches everything.
type Filter func(Event) bool

// Handler consumes events one at a time, in arrival order per subscription.
// No ordering holds across different subscriptions.
type Handler func(ctx context.Context, ev Event)

// Subscription is an explicit handle for one registered listener. Close
// stops delivery; it is safe to call more than once.
type Subscription interface {
	Close()
}

// Dispatcher is the subscribe-by-filter change feed boundary.
type Dispatcher interface {
	Subscribe(ctx context.Context, table string, kinds []Kind, filter Filter, h Handler) (Subscription, error)
}

// Publisher is the write side of the feed. Repositories publish after every
// successful store mutation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Broker combines both sides of the feed.
type Broker interface {
	Dispatcher
	Publisher
}

// NewEvent marshals record into a change event for table.
func NewEvent(table string, kind Kind, record any) (Event, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Event{}, err
	}
	return Event{Table: table, Kind: kind, Record: data, Timestamp: time.Now()}, nil
}

func kindMatches(kinds []Kind, k Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// multiSub groups several subscriptions behind one handle.
type multiSub struct {
	subs []Subscription
}

// Join combines subscriptions into a single handle whose Close tears down
// every member.
func Join(subs ...Subscription) Subscription {
	return &multiSub{subs: subs}
}

func (m *multiSub) Close() {
	for _, s := range m.subs {
		if s != nil {
			s.Close()
		}
	}
}
