package client

import (
	"sync"
	"sync/atomic"
)

// Subscription is a cancellable registration on an event feed.
type Subscription struct {
	feed      *feed
	fn        func(Event)
	cancelled atomic.Bool
}

// Cancel stops further deliveries to the handler. It is idempotent and may be
// called from inside a handler.
func (s *Subscription) Cancel() {
	if s == nil || !s.cancelled.CompareAndSwap(false, true) {
		return
	}
	s.feed.remove(s)
}

// feed dispatches events one at a time, in push order, from a single goroutine.
// Handlers run without any lock held, so they may subscribe, cancel or push.
type feed struct {
	mu    sync.Mutex
	queue []Event
	subs  []*Subscription

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newFeed() *feed {
	f := &feed{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *feed) push(ev Event) {
	f.mu.Lock()
	f.queue = append(f.queue, ev)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *feed) subscribe(fn func(Event)) *Subscription {
	s := &Subscription{feed: f, fn: fn}

	f.mu.Lock()
	next := make([]*Subscription, len(f.subs), len(f.subs)+1)
	copy(next, f.subs)
	f.subs = append(next, s)
	f.mu.Unlock()

	return s
}

func (f *feed) remove(s *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make([]*Subscription, 0, len(f.subs))
	for _, cur := range f.subs {
		if cur != s {
			next = append(next, cur)
		}
	}
	f.subs = next
}

// close stops the feed. Events queued before close are still dispatched.
func (f *feed) close() {
	f.once.Do(func() { close(f.done) })
}

func (f *feed) run() {
	for {
		stopping := false
		select {
		case <-f.wake:
		case <-f.done:
			stopping = true
		}

		f.drain()
		if stopping {
			return
		}
	}
}

func (f *feed) drain() {
	for {
		f.mu.Lock()
		if len(f.queue) == 0 {
			f.mu.Unlock()
			return
		}
		ev := f.queue[0]
		f.queue[0] = Event{}
		f.queue = f.queue[1:]
		// subs is copy-on-write, so the snapshot stays valid after unlock.
		subs := f.subs
		f.mu.Unlock()

		for _, s := range subs {
			if !s.cancelled.Load() {
				s.fn(ev)
			}
		}
	}
}
