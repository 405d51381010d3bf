package announce

import (
	"container/heap"
	"time"
)

type Priority int

const (
	PrioritySafety       Priority = 1
	PriorityStatus       Priority = 2
	PriorityQuery        Priority = 3
	PriorityConversation Priority = 5
	PriorityDiagnostic   Priority = 6
	PriorityShutdown     Priority = 10
)

type Announcement struct {
	ID         string
	Priority   Priority
	Text       string
	Stop       bool
	EnqueuedAt time.Time

	seq uint64
}

// Queue orders announcements by ascending priority, then by insertion order.
// A stop entry sorts after every spoken entry regardless of its priority, so
// everything enqueued before it drains first. Queue is not safe for
// concurrent use; Channel guards it.
type Queue struct {
	items entries
	seq   uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(a Announcement) {
	q.seq++
	a.seq = q.seq
	heap.Push(&q.items, a)
}

func (q *Queue) Pop() (Announcement, bool) {
	if len(q.items) == 0 {
		return Announcement{}, false
	}
	return heap.Pop(&q.items).(Announcement), true
}

func (q *Queue) Peek() (Announcement, bool) {
	if len(q.items) == 0 {
		return Announcement{}, false
	}
	return q.items[0], true
}

func (q *Queue) Len() int {
	return len(q.items)
}

type entries []Announcement

func (e entries) Len() int { return len(e) }

func (e entries) Less(i, j int) bool {
	if e[i].Stop != e[j].Stop {
		return !e[i].Stop
	}
	if e[i].Priority != e[j].Priority {
		return e[i].Priority < e[j].Priority
	}
	return e[i].seq < e[j].seq
}

func (e entries) Swap(i, j int) { e[i], e[j] = e[j], e[i] }

func (e *entries) Push(x any) {
	*e = append(*e, x.(Announcement))
}

func (e *entries) Pop() any {
	old := *e
	n := len(old)
	item := old[n-1]
	*e = old[:n-1]
	return item
}
