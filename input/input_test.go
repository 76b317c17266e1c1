// Input event queue
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package input

import (
	"testing"
)

func TestQueueOrder(t *testing.T) {
	q := &Queue{}

	if _, ok := q.Pop(); ok {
		t.Error("expected empty queue")
	}

	for i := 0; i < 3; i++ {
		q.Push(MouseEvent{X: i})
	}

	if n := q.Len(); n != 3 {
		t.Fatalf("queue length %d, expected 3", n)
	}

	for i := 0; i < 3; i++ {
		ev, ok := q.Pop()

		if !ok || ev.X != i {
			t.Errorf("event %d out of order (%+v, %v)", i, ev, ok)
		}
	}

	if n := q.Len(); n != 0 {
		t.Errorf("queue length %d after drain", n)
	}
}
