package strata

import "container/heap"

type eventKind uint8

const (
	eventCall eventKind = iota
	eventDelete
	eventRemove
)

// event is one deferred action. Entity events carry the target entity so
// removal can purge them; world-level callbacks carry fn.
type event struct {
	at     float64
	seq    uint64
	kind   eventKind
	entity *Entity
	fn     func()
}

// eventQueue is a min-heap ordered by (at, seq); seq keeps events scheduled
// for the same time in submission order.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

func (q *eventQueue) push(ev *event) { heap.Push(q, ev) }

// popDue removes and returns the earliest event if it is due at or before now.
func (q *eventQueue) popDue(now float64) *event {
	if len(*q) == 0 || (*q)[0].at > now {
		return nil
	}
	return heap.Pop(q).(*event)
}

// purge drops every event targeting e and returns how many were dropped.
// Cost is proportional to the number of pending events.
func (q *eventQueue) purge(e *Entity) int {
	old := *q
	kept := old[:0]
	for _, ev := range old {
		if ev.entity != e {
			kept = append(kept, ev)
		}
	}
	dropped := len(old) - len(kept)
	if dropped == 0 {
		return 0
	}
	for i := len(kept); i < len(old); i++ {
		old[i] = nil
	}
	*q = kept
	heap.Init(q)
	return dropped
}

// countFor returns the number of pending events targeting e.
func (q eventQueue) countFor(e *Entity) int {
	n := 0
	for _, ev := range q {
		if ev.entity == e {
			n++
		}
	}
	return n
}
