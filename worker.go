// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// WorkerState is the per-worker execution context: an id in
// [0, maxThreads), an owned ready-queue, an idle-wait monitor, a lock-free
// idle-stack link, and an interpreter-local lookup cache cleared on pause.
type WorkerState struct {
	id    int
	queue *ProcessQueue

	idleMu   sync.Mutex
	idleCond *sync.Cond
	nextIdle atomix.Pointer[WorkerState]

	cache InterpreterCache
}

func newWorkerState(id, queueCapacity int) *WorkerState {
	w := &WorkerState{id: id, queue: NewProcessQueue(queueCapacity)}
	w.idleCond = sync.NewCond(&w.idleMu)
	return w
}

// newEphemeralWorkerState builds a stack-local worker state for
// RunProcessOnCurrentThread. Its id is -1: it is never entered into
// threads[]/idle_threads and must never be enqueued on by others.
//
// TODO: only used for the interpreter's lookup cache. A pool of reusable
// queue-less worker states would avoid the allocation on every call.
func newEphemeralWorkerState() *WorkerState {
	return newWorkerState(-1, 1)
}

// ID returns the worker's id, or -1 for an ephemeral worker state.
func (w *WorkerState) ID() int { return w.id }

// Queue returns the worker's owned ready-queue.
func (w *WorkerState) Queue() *ProcessQueue { return w.queue }

func (w *WorkerState) notifyIdle() {
	w.idleMu.Lock()
	w.idleCond.Broadcast()
	w.idleMu.Unlock()
}

// InterpreterCache is a lookup cache warmed during interpretation and
// discarded whenever the scheduler pauses (spec §4.4 step 3).
type InterpreterCache struct {
	mu      sync.Mutex
	entries map[any]any
}

// Get returns the cached value for key, if present.
func (c *InterpreterCache) Get(key any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores value under key.
func (c *InterpreterCache) Put(key, value any) {
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[any]any)
	}
	c.entries[key] = value
	c.mu.Unlock()
}

// Clear discards all cached entries.
func (c *InterpreterCache) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
