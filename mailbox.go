// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// defaultMailboxCapacity is the bounded capacity for a process's inbound
// message transport. Rounded up to a power of 2 by lfq.
const defaultMailboxCapacity = 16

// Mailbox is a process's inbound message queue: bounded, lock-free,
// multi-producer (any process may Post) single-consumer (only the
// interpreter running the owning process calls Take).
type Mailbox struct {
	q     lfq.Queue[any]
	count atomix.Int64
}

// NewMailbox creates a mailbox with the given bounded capacity.
func NewMailbox(capacity int) *Mailbox {
	return &Mailbox{q: lfq.NewMPSC[any](capacity)}
}

// Post enqueues msg, backing off on iox.ErrWouldBlock (mailbox full) with
// adaptive backoff exactly as the teacher's dispatchWait does.
func (m *Mailbox) Post(msg any) {
	var bo iox.Backoff
	for {
		if err := m.q.Enqueue(&msg); err == nil {
			break
		}
		bo.Wait()
	}
	m.count.Add(1)
}

// Take removes and returns the oldest message, or (nil, false) if empty.
// Only the process's own interpreter goroutine may call this.
func (m *Mailbox) Take() (any, bool) {
	v, err := m.q.Dequeue()
	if err != nil {
		return nil, false
	}
	m.count.Add(-1)
	return v, true
}

// Empty reports whether the mailbox currently holds no messages. This is
// an observation, not a guarantee, unless called by the sole consumer.
func (m *Mailbox) Empty() bool {
	return m.count.Load() == 0
}
