package flock

// Goal is the shared target every member steers toward.
type Goal[V any] interface {
	Position() V
}

// Waypoint is a fixed goal. A new value is created each time the goal
// advances; existing values are never changed.
type Waypoint[V any] struct {
	pos V
}

// NewWaypoint creates a fixed goal at p.
func NewWaypoint[V any](p V) *Waypoint[V] {
	return &Waypoint[V]{pos: p}
}

func (w *Waypoint[V]) Position() V { return w.pos }

// WaypointQueue is a cyclic queue of candidate goals. Every dequeue puts the
// item back at the tail, so size and order never change.
type WaypointQueue[V any] struct {
	items []V
	head  int
}

// NewWaypointQueue copies points into a new queue.
func NewWaypointQueue[V any](points []V) *WaypointQueue[V] {
	items := make([]V, len(points))
	copy(items, points)
	return &WaypointQueue[V]{items: items}
}

// Len returns the number of candidate goals.
func (q *WaypointQueue[V]) Len() int { return len(q.items) }

// Next dequeues the head and re-enqueues it. It panics on an empty queue.
func (q *WaypointQueue[V]) Next() V {
	v := q.items[q.head]
	q.head = (q.head + 1) % len(q.items)
	return v
}

// Peek returns the item Next would return.
func (q *WaypointQueue[V]) Peek() V { return q.items[q.head] }

// Items returns the queue contents from head to tail.
func (q *WaypointQueue[V]) Items() []V {
	out := make([]V, 0, len(q.items))
	for i := range q.items {
		out = append(out, q.items[(q.head+i)%len(q.items)])
	}
	return out
}
