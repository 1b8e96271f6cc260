// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// idleStackBottom is the distinguished "stack is empty" sentinel (spec §3:
// "the idle stack uses a distinguished 'empty' sentinel so that nil can
// mean 'not on stack'"). Without it, a worker sitting at the bottom of the
// stack (nextIdle == nil) would be indistinguishable from a worker that
// was never pushed, and push's dedup check would fail to dedup it.
var idleStackBottom = &WorkerState{id: -2}

// idleStack is a Treiber-style lock-free stack of idle workers. Entries
// may be stale: a worker that has since woken for a different reason may
// still appear here. Consumers treat entries as advisory and wake via the
// worker's own idle monitor, whose spurious wakes are harmless.
type idleStack struct {
	head atomix.Pointer[WorkerState]
}

func newIdleStack() *idleStack {
	s := &idleStack{}
	s.head.Store(idleStackBottom)
	return s
}

// push adds w if it is not already linked (identity check against the
// current top, or a non-nil nextIdle link left over from a prior push).
func (s *idleStack) push(w *WorkerState) {
	top := s.head.Load()
	if top == w || w.nextIdle.Load() != nil {
		return
	}
	for {
		w.nextIdle.Store(top)
		if s.head.CompareAndSwap(top, w) {
			return
		}
		spin.Pause()
		top = s.head.Load()
	}
}

// pop removes and returns the top worker, or nil if the stack is empty.
func (s *idleStack) pop() *WorkerState {
	for {
		top := s.head.Load()
		if top == idleStackBottom {
			return nil
		}
		next := top.nextIdle.Load()
		if s.head.CompareAndSwap(top, next) {
			top.nextIdle.Store(nil)
			return top
		}
		spin.Pause()
	}
}
