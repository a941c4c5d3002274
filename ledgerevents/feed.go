package ledgerevents

import (
	"context"
	"sync"
)

// Feed fans values out to keyed subscribers. Every subscriber owns an
// unbounded queue, so a slow swap never stalls the watcher publishing to it.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[uint64]*feedSub[T]
	next uint64
}

type feedSub[T any] struct {
	key   string
	mu    sync.Mutex
	queue []T
	wake  chan struct{}
	out   chan T
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[uint64]*feedSub[T])}
}

// Subscribe registers for values published under key. backlog is delivered
// first. The returned channel is closed once ctx is done.
func (f *Feed[T]) Subscribe(ctx context.Context, key string, backlog ...T) <-chan T {
	s := &feedSub[T]{
		key:   key,
		queue: append([]T(nil), backlog...),
		wake:  make(chan struct{}, 1),
		out:   make(chan T),
	}

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = s
	f.mu.Unlock()

	go func() {
		defer close(s.out)
		defer f.remove(id)
		s.pump(ctx)
	}()
	return s.out
}

func (f *Feed[T]) Publish(key string, v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subs {
		if s.key == key {
			s.push(v)
		}
	}
}

// Keys lists the distinct keys with at least one live subscriber.
func (f *Feed[T]) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[string]struct{}, len(f.subs))
	keys := make([]string, 0, len(f.subs))
	for _, s := range f.subs {
		if _, ok := seen[s.key]; ok {
			continue
		}
		seen[s.key] = struct{}{}
		keys = append(keys, s.key)
	}
	return keys
}

func (f *Feed[T]) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subs {
		if s.key == key {
			return true
		}
	}
	return false
}

func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed[T]) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

func (s *feedSub[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *feedSub[T]) pump(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-ctx.Done():
			return
		}
	}
}
