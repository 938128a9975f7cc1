package feed

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process feed for single-node deployments and tests.
// Each subscription gets its own delivery goroutine so handlers see events
// one at a time in publish order, while publishers never run handlers inline.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string][]*memorySub
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string][]*memorySub)}
}

type memorySub struct {
	broker *MemoryBroker
	table  string
	kinds  []Kind
	filter Filter
	h      Handler

	mu      sync.Mutex
	queue   []Event
	wake    chan struct{}
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	drained sync.WaitGroup
}

func (b *MemoryBroker) Subscribe(ctx context.Context, table string, kinds []Kind, filter Filter, h Handler) (Subscription, error) {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &memorySub{
		broker: b,
		table:  table,
		kinds:  kinds,
		filter: filter,
		h:      h,
		wake:   make(chan struct{}, 1),
		ctx:    subCtx,
		cancel: cancel,
	}
	b.mu.Lock()
	b.subs[table] = append(b.subs[table], sub)
	b.mu.Unlock()

	sub.drained.Add(1)
	go sub.run()
	return sub, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	subs := make([]*memorySub, len(b.subs[ev.Table]))
	copy(subs, b.subs[ev.Table])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(ev)
	}
	return nil
}

func (s *memorySub) enqueue(ev Event) {
	if !kindMatches(s.kinds, ev.Kind) {
		return
	}
	if s.filter != nil && !s.filter(ev) {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memorySub) run() {
	defer s.drained.Done()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-s.wake:
			case <-s.ctx.Done():
				return
			}
			continue
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.h(s.ctx, ev)
	}
}

func (s *memorySub) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	s.broker.mu.Lock()
	list := s.broker.subs[s.table]
	for i, cur := range list {
		if cur == s {
			s.broker.subs[s.table] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.broker.mu.Unlock()
}
