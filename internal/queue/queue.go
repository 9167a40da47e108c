package queue

// FIFO is an unbounded first-in first-out queue. It is not safe for
// concurrent use; callers hold their own lock.
type FIFO[T any] struct {
	items []T
}

func New[T any]() *FIFO[T] {
	return &FIFO[T]{}
}

// Push appends item at the tail.
func (q *FIFO[T]) Push(item T) {
	q.items = append(q.items, item)
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *FIFO[T]) Pop() (item T, ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

func (q *FIFO[T]) Len() int {
	return len(q.items)
}

// Clear drops every queued item and returns how many were dropped.
func (q *FIFO[T]) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}
