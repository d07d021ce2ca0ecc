package backend

import "sync"

type dispatchItem struct {
	event   Event
	session *Session
}

// Dispatcher delivers session events to subscribers in emit order.
//
// Subscribers are called from a dispatcher goroutine, never from the
// goroutine calling Emit, and never concurrently with each other.
type Dispatcher struct {
	mu      sync.Mutex
	subs    map[int]func(Event, *Session)
	nextID  int
	queue   []dispatchItem
	running bool
	idle    *sync.Cond
}

func (d *Dispatcher) OnSessionChange(fn func(Event, *Session)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subs == nil {
		d.subs = make(map[int]func(Event, *Session))
	}
	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

// Emit queues an event for delivery.
func (d *Dispatcher) Emit(event Event, session *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, dispatchItem{event, session.Clone()})
	if !d.running {
		d.running = true
		go d.drain()
	}
}

// Wait blocks until every emitted event has been delivered.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.running {
		d.cond().Wait()
	}
}

func (d *Dispatcher) cond() *sync.Cond {
	if d.idle == nil {
		d.idle = sync.NewCond(&d.mu)
	}
	return d.idle
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.running = false
			d.cond().Broadcast()
			d.mu.Unlock()
			return
		}
		item := d.queue[0]
		d.queue = d.queue[1:]
		subs := make([]func(Event, *Session), 0, len(d.subs))
		for i := 0; i < d.nextID; i++ {
			if fn, ok := d.subs[i]; ok {
				subs = append(subs, fn)
			}
		}
		d.mu.Unlock()

		for _, fn := range subs {
			fn(item.event, item.session.Clone())
		}
	}
}
