package orchestration

import (
	"sync"
	"time"
)

type queued[T any] struct {
	value    T
	queuedAt time.Time
}

// queue is an unbounded FIFO with a single consumer. push never blocks so
// adapter callbacks running on device or socket goroutines can always hand
// off.
type queue[T any] struct {
	mu     sync.Mutex
	items  []queued[T]
	notify chan struct{}

	closed bool
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{notify: make(chan struct{}, 1)}
}

func (q *queue[T]) push(value T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, queued[T]{value: value, queuedAt: time.Now()})
	q.mu.Unlock()

	q.wake()
	return true
}

// pop blocks until a value is available. It reports false once the queue
// is closed and drained.
func (q *queue[T]) pop() (queued[T], bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = queued[T]{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		if q.closed {
			q.mu.Unlock()
			return queued[T]{}, false
		}
		q.mu.Unlock()

		<-q.notify
	}
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

func (q *queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
