// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Port is a mailbox that can be locked for a target-yield handoff between
// two processes. Message-delivery code (out of scope here) locks a port
// before calling RunProcessOnCurrentThread or before the interpreter
// returns a TargetYielded outcome; the scheduler always unlocks it.
//
// locked is tracked separately from mu so the goroutine already holding
// the lock can query IsLocked (spec §6) without a reentrant mutex.
type Port struct {
	mu      sync.Mutex
	locked  atomix.Uint32
	process *Process
}

// NewPort creates a port whose target is process.
func NewPort(process *Process) *Port {
	return &Port{process: process}
}

// Lock acquires the port for a handoff.
func (port *Port) Lock() {
	port.mu.Lock()
	port.locked.Store(1)
}

// IsLocked reports whether the port is currently locked.
func (port *Port) IsLocked() bool {
	return port.locked.Load() != 0
}

// Unlock releases the port. Safe to call only while holding the lock
// acquired by Lock.
func (port *Port) Unlock() {
	port.locked.Store(0)
	port.mu.Unlock()
}

// Process returns the port's target process.
func (port *Port) Process() *Process { return port.process }
