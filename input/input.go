// Input event queue
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package input provides the event types and queue through which human
// interface device drivers deliver samples to the rest of the system.
package input

import (
	"container/list"
	"sync"
)

// MouseEvent represents a single pointer sample, with coordinates already
// scaled to the active display resolution.
type MouseEvent struct {
	// Horizontal position (0 .. xres-1)
	X int
	// Vertical position (0 .. yres-1)
	Y int

	// button states
	Left   bool
	Middle bool
	Right  bool
}

// Queue represents an input event queue, the zero value is ready for use.
type Queue struct {
	sync.Mutex

	events list.List
}

// Push appends an event to the queue.
func (q *Queue) Push(ev MouseEvent) {
	q.Lock()
	defer q.Unlock()

	q.events.PushBack(ev)
}

// Pop removes and returns the oldest queued event, the boolean return is
// false when the queue is empty.
func (q *Queue) Pop() (ev MouseEvent, ok bool) {
	q.Lock()
	defer q.Unlock()

	e := q.events.Front()

	if e == nil {
		return
	}

	q.events.Remove(e)

	return e.Value.(MouseEvent), true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}
