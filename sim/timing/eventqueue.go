package timing

import (
	"container/heap"
)

// EventQueue is a queue of events ordered by time. Events with the same time
// leave the queue in the order they entered it.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Peek() Event
	Len() int

	// Remove takes a pending event out of the queue.
	Remove(evt Event) bool
}

type queuedEvent struct {
	evt   Event
	seq   uint64
	index int
}

// eventQueueImpl is a binary heap keyed by (time, insertion order).
type eventQueueImpl struct {
	events  eventHeap
	byID    map[string]*queuedEvent
	nextSeq uint64
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() EventQueue {
	q := &eventQueueImpl{
		byID: make(map[string]*queuedEvent),
	}
	heap.Init(&q.events)

	return q
}

func (q *eventQueueImpl) Push(evt Event) {
	if _, dup := q.byID[evt.ID()]; dup {
		panic("event " + evt.ID() + " is already scheduled")
	}

	item := &queuedEvent{evt: evt, seq: q.nextSeq}
	q.nextSeq++

	heap.Push(&q.events, item)
	q.byID[evt.ID()] = item
}

func (q *eventQueueImpl) Pop() Event {
	item := heap.Pop(&q.events).(*queuedEvent)
	delete(q.byID, item.evt.ID())

	return item.evt
}

func (q *eventQueueImpl) Peek() Event {
	return q.events[0].evt
}

func (q *eventQueueImpl) Len() int {
	return q.events.Len()
}

func (q *eventQueueImpl) Remove(evt Event) bool {
	item, ok := q.byID[evt.ID()]
	if !ok {
		return false
	}

	heap.Remove(&q.events, item.index)
	delete(q.byID, evt.ID())

	return true
}

type eventHeap []*queuedEvent

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	if h[i].evt.Time() != h[j].evt.Time() {
		return h[i].evt.Time() < h[j].evt.Time()
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x interface{}) {
	item := x.(*queuedEvent)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]

	return item
}
