package feed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	N int `json:"n"`
}

func TestMemoryBrokerDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()

	var mu sync.Mutex
	var got []int
	sub, err := broker.Subscribe(ctx, TableMessages, nil, nil, func(_ context.Context, ev Event) {
		var r record
		require.NoError(t, json.Unmarshal(ev.Record, &r))
		mu.Lock()
		got = append(got, r.N)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 20; i++ {
		ev, err := NewEvent(TableMessages, Insert, record{N: i})
		require.NoError(t, err)
		require.NoError(t, broker.Publish(ctx, ev))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 20
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, n := range got {
		assert.Equal(t, i, n)
	}
}

func TestMemoryBrokerKindAndFilter(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()

	delivered := make(chan Event, 8)
	sub, err := broker.Subscribe(ctx, TableCalls, []Kind{Update},
		func(ev Event) bool {
			var r record
			return json.Unmarshal(ev.Record, &r) == nil && r.N > 0
		},
		func(_ context.Context, ev Event) { delivered <- ev },
	)
	require.NoError(t, err)
	defer sub.Close()

	publish := func(table string, kind Kind, n int) {
		ev, err := NewEvent(table, kind, record{N: n})
		require.NoError(t, err)
		require.NoError(t, broker.Publish(ctx, ev))
	}

	publish(TableCalls, Insert, 1)    // wrong kind
	publish(TableMessages, Update, 1) // wrong table
	publish(TableCalls, Update, 0)    // filtered out
	publish(TableCalls, Update, 7)    // delivered

	select {
	case ev := <-delivered:
		var r record
		require.NoError(t, json.Unmarshal(ev.Record, &r))
		assert.Equal(t, 7, r.N)
	case <-time.After(2 * time.Second):
		t.Fatal("expected one delivery")
	}

	select {
	case <-delivered:
		t.Fatal("unexpected extra delivery")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBrokerCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()

	delivered := make(chan Event, 8)
	sub, err := broker.Subscribe(ctx, TableMessages, nil, nil,
		func(_ context.Context, ev Event) { delivered <- ev })
	require.NoError(t, err)

	sub.Close()
	sub.Close() // closing twice is safe

	ev, err := NewEvent(TableMessages, Insert, record{N: 1})
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, ev))

	select {
	case <-delivered:
		t.Fatal("delivery after close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinClosesAllMembers(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()

	delivered := make(chan Event, 8)
	h := func(_ context.Context, ev Event) { delivered <- ev }

	a, err := broker.Subscribe(ctx, TableMessages, nil, nil, h)
	require.NoError(t, err)
	b, err := broker.Subscribe(ctx, TableConversations, nil, nil, h)
	require.NoError(t, err)

	Join(a, b).Close()

	for _, table := range []string{TableMessages, TableConversations} {
		ev, err := NewEvent(table, Insert, record{N: 1})
		require.NoError(t, err)
		require.NoError(t, broker.Publish(ctx, ev))
	}

	select {
	case <-delivered:
		t.Fatal("delivery after join close")
	case <-time.After(100 * time.Millisecond):
	}
}
