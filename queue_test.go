// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"testing"

	"code.hybscloud.com/sched"
)

func newTestProcess() *sched.Process {
	return sched.NewProcess(sched.NewProgram("p"))
}

func TestQueueCapacityRoundsToPow2(t *testing.T) {
	q := sched.NewProcessQueue(5)
	// 5 rounds up to 8; fill it and confirm the 9th enqueue fails.
	for i := 0; i < 8; i++ {
		if ok, _ := q.TryEnqueue(newTestProcess()); !ok {
			t.Fatalf("enqueue %d unexpectedly failed", i)
		}
	}
	if ok, _ := q.TryEnqueue(newTestProcess()); ok {
		t.Fatal("enqueue past rounded capacity unexpectedly succeeded")
	}
}

func TestQueueEnqueueDequeueOrder(t *testing.T) {
	q := sched.NewProcessQueue(4)
	a, b, c := newTestProcess(), newTestProcess(), newTestProcess()

	if ok, wasEmpty := q.TryEnqueue(a); !ok || !wasEmpty {
		t.Fatalf("first enqueue: ok=%v wasEmpty=%v, want true, true", ok, wasEmpty)
	}
	if ok, wasEmpty := q.TryEnqueue(b); !ok || wasEmpty {
		t.Fatalf("second enqueue: ok=%v wasEmpty=%v, want true, false", ok, wasEmpty)
	}
	q.TryEnqueue(c)

	for _, want := range []*sched.Process{a, b, c} {
		got, res := q.TryDequeue()
		if res != sched.DequeueOK {
			t.Fatalf("TryDequeue result = %v, want DequeueOK", res)
		}
		if got != want {
			t.Fatal("dequeue order violated FIFO")
		}
	}

	if _, res := q.TryDequeue(); res != sched.DequeueEmpty {
		t.Fatalf("TryDequeue on empty queue = %v, want DequeueEmpty", res)
	}
}

func TestQueueIsEmpty(t *testing.T) {
	q := sched.NewProcessQueue(4)
	if !q.IsEmpty() {
		t.Fatal("new queue reports non-empty")
	}
	p := newTestProcess()
	q.TryEnqueue(p)
	if q.IsEmpty() {
		t.Fatal("queue with one entry reports empty")
	}
	q.TryDequeue()
	if !q.IsEmpty() {
		t.Fatal("drained queue reports non-empty")
	}
}

func TestQueueTryDequeueEntryRemovesMiddle(t *testing.T) {
	q := sched.NewProcessQueue(4)
	a, b, c := newTestProcess(), newTestProcess(), newTestProcess()
	q.TryEnqueue(a)
	q.TryEnqueue(b)
	q.TryEnqueue(c)

	if !q.TryDequeueEntry(b) {
		t.Fatal("TryDequeueEntry did not find b")
	}
	if q.TryDequeueEntry(b) {
		t.Fatal("TryDequeueEntry found b twice")
	}

	got, res := q.TryDequeue()
	if res != sched.DequeueOK || got != a {
		t.Fatalf("first dequeue = %v, %v, want a, DequeueOK", got, res)
	}
	got, res = q.TryDequeue()
	if res != sched.DequeueOK || got != c {
		t.Fatalf("second dequeue = %v, %v, want c (b tombstoned), DequeueOK", got, res)
	}
	if _, res := q.TryDequeue(); res != sched.DequeueEmpty {
		t.Fatalf("third dequeue result = %v, want DequeueEmpty", res)
	}
}

func TestQueueTryDequeueEntryMissing(t *testing.T) {
	q := sched.NewProcessQueue(4)
	a := newTestProcess()
	q.TryEnqueue(a)

	other := newTestProcess()
	if q.TryDequeueEntry(other) {
		t.Fatal("TryDequeueEntry reported found for a process never enqueued")
	}
}

