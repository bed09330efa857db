package pool

// fifo is an unbounded task queue. The pool's mutex guards it.
type fifo struct {
	items []Task
	head  int
}

func (q *fifo) len() int {
	return len(q.items) - q.head
}

func (q *fifo) push(t Task) {
	q.items = append(q.items, t)
}

func (q *fifo) pop() Task {
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	// Compact once the consumed prefix dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return t
}
