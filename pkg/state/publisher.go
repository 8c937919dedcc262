package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Publisher holds the latest Snapshot. Writers are serialized and each
// write swaps in a fresh immutable value; readers never block.
//
// Field ownership: the tracking loop writes target/region, the supervisor
// writes shutdown, and an optional external producer writes direction.
type Publisher struct {
	current atomic.Pointer[Snapshot]

	mu     sync.Mutex // Serializes writers and subscriber delivery
	subs   map[int]func(Snapshot)
	nextID int

	done     chan struct{}
	doneOnce sync.Once
	now      func() time.Time
}

// NewPublisher creates a publisher with all fields empty. An empty session
// gets a random id so consumers can detect a restarted tracker.
func NewPublisher(session string) *Publisher {
	if session == "" {
		session = uuid.NewString()
	}
	p := &Publisher{
		subs: make(map[int]func(Snapshot)),
		done: make(chan struct{}),
		now:  time.Now,
	}
	p.current.Store(&Snapshot{Session: session, UpdatedAt: p.now()})
	return p
}

// Snapshot returns the latest published state.
func (p *Publisher) Snapshot() Snapshot {
	return *p.current.Load()
}

// Publish writes the locked region, or clears target and region when r is
// nil. Both fields change in one swap.
func (p *Publisher) Publish(r *Region) Snapshot {
	return p.update(func(s *Snapshot) {
		if r == nil {
			s.Target, s.SelectedRegion = nil, nil
			return
		}
		region := *r
		target := region.Center()
		s.Target, s.SelectedRegion = &target, &region
	})
}

// SetDirection writes the direction field, or clears it when d is nil.
func (p *Publisher) SetDirection(d *Direction) Snapshot {
	return p.update(func(s *Snapshot) {
		if d == nil {
			s.Direction = nil
			return
		}
		dir := *d
		s.Direction = &dir
	})
}

// RequestShutdown sets the shutdown flag. It is idempotent.
func (p *Publisher) RequestShutdown() {
	p.doneOnce.Do(func() {
		p.update(func(s *Snapshot) { s.Shutdown = true })
		close(p.done)
	})
}

// ShutdownRequested is a non-blocking read of the shutdown flag.
func (p *Publisher) ShutdownRequested() bool {
	return p.current.Load().Shutdown
}

// Done is closed once shutdown has been requested.
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}

// Subscribe registers fn to receive every new snapshot in publish order.
// fn runs while the writer lock is held and must not block or publish.
// The returned func unsubscribes.
func (p *Publisher) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Publisher) update(mutate func(*Snapshot)) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := *p.current.Load()
	mutate(&next)
	next.Seq++
	next.UpdatedAt = p.now()
	p.current.Store(&next)

	for _, fn := range p.subs {
		fn(next)
	}
	return next
}
