package flock

import (
	"sync"

	"github.com/pthm-cable/flock/components"
)

// GoalChange is published whenever the active goal is replaced.
type GoalChange[V any] struct {
	Tick     uint64
	Previous Goal[V] // nil for the initial goal
	Current  Goal[V]
}

// GateFill is published when the gate reports the goal as reached.
type GateFill[V any] struct {
	Tick      uint64
	Goal      V
	Count     int
	FlockSize int
}

// AgentEvent is published when an agent joins or leaves the flock.
type AgentEvent[V any] struct {
	Tick     uint64
	ID       components.AgentID
	Position V
}

// Subscription is returned by the On* methods.
type Subscription interface {
	Unsubscribe()
}

// observers is a subscriber list. Handlers run synchronously in
// subscription order on the goroutine that publishes.
type observers[T any] struct {
	mu       sync.RWMutex
	handlers map[int]func(T)
	order    []int
	nextID   int
}

func (o *observers[T]) subscribe(fn func(T)) Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handlers == nil {
		o.handlers = make(map[int]func(T))
	}
	id := o.nextID
	o.nextID++
	o.handlers[id] = fn
	o.order = append(o.order, id)
	return &subscription[T]{list: o, id: id}
}

func (o *observers[T]) remove(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.handlers[id]; !ok {
		return
	}
	delete(o.handlers, id)
	for i, v := range o.order {
		if v == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *observers[T]) publish(ev T) {
	o.mu.RLock()
	fns := make([]func(T), 0, len(o.order))
	for _, id := range o.order {
		fns = append(fns, o.handlers[id])
	}
	o.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

type subscription[T any] struct {
	list *observers[T]
	id   int
}

// Unsubscribe is idempotent.
func (s *subscription[T]) Unsubscribe() {
	s.list.remove(s.id)
}
