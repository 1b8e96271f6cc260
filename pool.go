// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import "sync"

// ThreadPool spawns worker goroutines on demand up to a fixed cap. It has
// no notion of scheduling policy; the Scheduler decides when a new worker
// is warranted and supplies the goroutine body.
type ThreadPool struct {
	mu    sync.Mutex
	count int
	max   int
	wg    sync.WaitGroup
}

// NewThreadPool creates a pool that will never run more than max workers
// concurrently.
func NewThreadPool(max int) *ThreadPool {
	if max < 1 {
		max = 1
	}
	return &ThreadPool{max: max}
}

// TryStart spawns fn as a new worker if the pool has spare capacity.
// It reports whether a worker was actually started.
func (p *ThreadPool) TryStart(fn func()) bool {
	p.mu.Lock()
	if p.count >= p.max {
		p.mu.Unlock()
		return false
	}
	p.count++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
	return true
}

// JoinAll blocks until every worker started by TryStart has returned.
func (p *ThreadPool) JoinAll() { p.wg.Wait() }
