// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// DequeueResult classifies the outcome of a TryDequeue attempt: the queue
// distinguishes genuine emptiness from transient contention so callers
// know whether to fall back to stealing or simply retry.
type DequeueResult int

const (
	// DequeueOK means a process was returned.
	DequeueOK DequeueResult = iota
	// DequeueEmpty means the queue held nothing at the moment of the check.
	DequeueEmpty
	// DequeueRetry means a concurrent operation raced this one; the caller
	// should retry rather than treat the queue as empty.
	DequeueRetry
)

// defaultQueueCapacity is the default per-worker ready-queue capacity.
const defaultQueueCapacity = 256

type queueSlot struct {
	sequence atomix.Uint64
	process  atomix.Pointer[Process]
}

// ProcessQueue is a bounded queue of Ready processes belonging to one
// worker. Only the owning worker dequeues for interpretation in the
// steady state; the pause protocol and work-stealing additionally call
// TryDequeue/TryDequeueEntry from any goroutine and must tolerate
// transient contention.
//
// The ring buffer follows the sequence-numbered slot algorithm lfq
// documents for its FAA-based queues (doc.go, "Algorithm Selection"), but
// is hand-rolled rather than built on lfq.Build: lfq's public Queue[T]
// interface has no operation to remove an arbitrary, already-enqueued
// entry, which TryDequeueEntry requires for target-yield and pause
// draining (spec §4.2, §4.5). A slot whose process has been tombstoned by
// TryDequeueEntry is skipped, not returned, by a subsequent TryDequeue.
type ProcessQueue struct {
	mask  uint64
	slots []queueSlot
	head  atomix.Uint64 // consumer cursor
	tail  atomix.Uint64 // producer cursor
}

// NewProcessQueue creates a queue whose capacity is rounded up to the
// next power of 2 (minimum 2), matching lfq's documented capacity rule.
func NewProcessQueue(capacity int) *ProcessQueue {
	if capacity < 2 {
		capacity = 2
	}
	capacity = nextPow2(capacity)
	q := &ProcessQueue{
		mask:  uint64(capacity - 1),
		slots: make([]queueSlot, capacity),
	}
	for i := range q.slots {
		q.slots[i].sequence.Store(uint64(i))
	}
	return q
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// IsEmpty is an observation, not a guarantee, outside the owning worker.
func (q *ProcessQueue) IsEmpty() bool {
	return q.head.Load() == q.tail.Load()
}

// TryEnqueue never blocks. On success it reports whether the queue
// transitioned from empty to non-empty due to this enqueue (wasEmpty),
// which callers use to decide whether to wake an idle worker.
func (q *ProcessQueue) TryEnqueue(p *Process) (ok, wasEmpty bool) {
	pos := q.tail.Load()
	for {
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				wasEmpty = pos == q.head.Load()
				slot.process.Store(p)
				p.setQueue(q)
				slot.sequence.Store(pos + 1)
				return true, wasEmpty
			}
			spin.Pause()
			pos = q.tail.Load()
		case diff < 0:
			return false, false // full
		default:
			spin.Pause()
			pos = q.tail.Load()
		}
	}
}

// TryDequeue removes and returns the oldest live process, skipping any
// slot tombstoned by a concurrent TryDequeueEntry. It distinguishes
// DequeueEmpty (nothing to take) from DequeueRetry (contention; call
// again) so callers never mistake contention for emptiness.
func (q *ProcessQueue) TryDequeue() (*Process, DequeueResult) {
	for {
		pos := q.head.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if !q.head.CompareAndSwap(pos, pos+1) {
				spin.Pause()
				return nil, DequeueRetry
			}
			p := slot.process.Load()
			slot.process.Store(nil)
			slot.sequence.Store(pos + q.mask + 1)
			if p == nil {
				// Tombstoned by TryDequeueEntry; keep looking.
				continue
			}
			p.clearQueue(q)
			return p, DequeueOK
		case diff < 0:
			return nil, DequeueEmpty
		default:
			return nil, DequeueRetry
		}
	}
}

// TryDequeueEntry removes p if it is still present in the queue,
// regardless of position, and reports whether it was found. The removed
// slot is left tombstoned (process set to nil); TryDequeue skips it when
// it reaches that position. Callers must ensure p is not Running before
// calling this (spec §3: "if still present and not Running").
func (q *ProcessQueue) TryDequeueEntry(p *Process) bool {
	head := q.head.Load()
	tail := q.tail.Load()
	for pos := head; pos != tail; pos++ {
		slot := &q.slots[pos&q.mask]
		if slot.process.Load() == p {
			if slot.process.CompareAndSwap(p, nil) {
				p.clearQueue(q)
				return true
			}
		}
	}
	return false
}
