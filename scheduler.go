// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
)

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithQueueCapacity overrides the default per-worker ready-queue capacity.
func WithQueueCapacity(n int) Option {
	return func(s *Scheduler) { s.queueCapacity = n }
}

// WithOnProcessTerminated registers a hook invoked after a process
// terminates while other processes remain alive on this scheduler (the
// count is scheduler-wide, not per program). The
// original scheduler.cc calls program->CollectGarbage() at this point
// under sleeping_threads_ bookkeeping (spec.md is silent on GC, which is
// out of scope per §1); this hook is the seam a GC integration occupies.
func WithOnProcessTerminated(fn func(*Program)) Option {
	return func(s *Scheduler) { s.onProcessTerminated = fn }
}

// Scheduler multiplexes an unbounded population of processes over a
// bounded pool of worker goroutines (spec §1–§5). One Scheduler serves
// any number of Programs.
type Scheduler struct {
	maxThreads    int
	queueCapacity int
	newInterpreter InterpreterFactory
	onProcessTerminated func(*Program)

	pool *ThreadPool

	threads          []atomix.Pointer[WorkerState]
	currentProcesses []atomix.Pointer[Process]

	idle *idleStack

	startupQueue *ProcessQueue

	processes       atomix.Int64
	threadCount     atomix.Int64
	sleepingThreads atomix.Int64

	pauseMu   sync.Mutex
	pauseCond *sync.Cond
	pause     atomix.Uint32

	preemptMu   sync.Mutex
	preemptCond *sync.Cond

	stoppedMu sync.Mutex
	stopped   map[*Program]*stoppedList
}

type stoppedList struct {
	head *Process
}

// NewScheduler creates a scheduler that spawns up to maxThreads worker
// goroutines and interprets each dequeued process with newInterpreter.
func NewScheduler(maxThreads int, newInterpreter InterpreterFactory, opts ...Option) *Scheduler {
	if maxThreads < 1 {
		maxThreads = 1
	}
	s := &Scheduler{
		maxThreads:     maxThreads,
		queueCapacity:  defaultQueueCapacity,
		newInterpreter: newInterpreter,
		stopped:        make(map[*Program]*stoppedList),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = NewThreadPool(maxThreads)
	s.threads = make([]atomix.Pointer[WorkerState], maxThreads)
	s.currentProcesses = make([]atomix.Pointer[Process], maxThreads)
	s.idle = newIdleStack()
	s.startupQueue = NewProcessQueue(s.queueCapacity)
	s.pauseCond = sync.NewCond(&s.pauseMu)
	s.preemptCond = sync.NewCond(&s.preemptMu)
	return s
}

// ScheduleProgram associates program with this scheduler. Idempotent.
func (s *Scheduler) ScheduleProgram(program *Program) {
	program.scheduler.Store(s)
}

// EnqueueProcess transitions a Sleeping process to Ready and routes it
// onto a worker, starting one if needed.
func (s *Scheduler) EnqueueProcess(p *Process) {
	s.processes.Add(1)
	if !p.ChangeState(Sleeping, Ready) {
		panic("sched: EnqueueProcess requires a Sleeping process")
	}
	s.enqueueProcessAndNotifyThreads(nil, p)
}

// ResumeProcess transitions p from Sleeping to Ready and enqueues it,
// silently doing nothing if p was not Sleeping.
func (s *Scheduler) ResumeProcess(p *Process) {
	if !p.ChangeState(Sleeping, Ready) {
		return
	}
	s.enqueueOnAnyThread(p, 0)
}

// RunProcessOnCurrentThread runs one interpreter quantum on the calling
// goroutine if process could be claimed from Sleeping. port must already
// be locked by the caller (typically message-delivery code); this method
// always unlocks it before returning.
func (s *Scheduler) RunProcessOnCurrentThread(process *Process, port *Port) bool {
	if !port.IsLocked() {
		panic("sched: RunProcessOnCurrentThread requires a locked port")
	}
	if !process.ChangeState(Sleeping, Running) {
		port.Unlock()
		return false
	}
	port.Unlock()

	w := newEphemeralWorkerState()
	next := s.interpretProcess(process, w)
	if next != nil {
		s.enqueueOnAnyThread(next, 0)
	}
	return true
}

// StopProgram pauses every process belonging to program, blocking until
// no worker is interpreting any of them, then returns true. It returns
// false without pausing anything if program is already stopped.
func (s *Scheduler) StopProgram(program *Program) bool {
	s.pauseMu.Lock()

	s.stoppedMu.Lock()
	if _, exists := s.stopped[program]; exists {
		s.stoppedMu.Unlock()
		s.pauseMu.Unlock()
		return false
	}
	s.stopped[program] = &stoppedList{}
	s.stoppedMu.Unlock()

	s.pause.Store(1)
	s.notifyAllThreads()

	for {
		var live int64
		for i := 0; i < s.maxThreads; i++ {
			if s.threads[i].Load() != nil {
				live++
			}
			s.preemptThreadProcess(i)
		}
		if live == s.sleepingThreads.Load() {
			break
		}
		s.pauseCond.Wait()
	}

	var toEnqueue *Process
	for {
		p, settled := s.tryDequeueFromAnyThread(0)
		if !settled {
			continue
		}
		if p == nil {
			break
		}
		p.ChangeState(Ready, Running)
		if p.Program() == program {
			s.stoppedMu.Lock()
			list := s.stopped[program]
			p.SetNext(list.head)
			list.head = p
			s.stoppedMu.Unlock()
		} else {
			p.SetNext(toEnqueue)
			toEnqueue = p
		}
	}

	for toEnqueue != nil {
		next := toEnqueue.Next()
		toEnqueue.SetNext(nil)
		toEnqueue.ChangeState(Running, Ready)
		s.enqueueOnAnyThread(toEnqueue, 0)
		toEnqueue = next
	}

	s.pause.Store(0)
	s.pauseMu.Unlock()
	s.notifyAllThreads()

	return true
}

// ResumeProgram re-queues every process previously collected by
// StopProgram for program. program must currently be stopped.
func (s *Scheduler) ResumeProgram(program *Program) {
	s.pauseMu.Lock()

	s.stoppedMu.Lock()
	list, ok := s.stopped[program]
	if ok {
		delete(s.stopped, program)
	}
	s.stoppedMu.Unlock()
	if !ok {
		s.pauseMu.Unlock()
		panic("sched: ResumeProgram requires a stopped program")
	}

	p := list.head
	for p != nil {
		next := p.Next()
		p.SetNext(nil)
		p.ChangeState(Running, Ready)
		s.enqueueOnAnyThread(p, 0)
		p = next
	}

	s.pauseMu.Unlock()
	s.notifyAllThreads()
}

// VisitProcesses iterates every process of program collected by
// StopProgram, under the pause lock. program must currently be stopped.
func (s *Scheduler) VisitProcesses(program *Program, visit func(*Process)) {
	s.pauseMu.Lock()
	defer s.pauseMu.Unlock()

	s.stoppedMu.Lock()
	list, ok := s.stopped[program]
	s.stoppedMu.Unlock()
	if !ok {
		panic("sched: VisitProcesses requires a stopped program")
	}
	for p := list.head; p != nil; p = p.Next() {
		visit(p)
	}
}

// Run drives preemption on the calling goroutine until no processes
// remain, then joins every worker goroutine and returns true.
func (s *Scheduler) Run() bool {
	for {
		w := newWorkerState(-1, s.queueCapacity)
		if s.pool.TryStart(func() { s.runWorker(w) }) {
			break
		}
	}

	threadIndex := 0
	for {
		s.preemptMu.Lock()
		if s.processes.Load() == 0 {
			s.preemptMu.Unlock()
			break
		}
		interval := s.getPreemptInterval()
		condWaitTimeout(s.preemptCond, interval)
		s.preemptMu.Unlock()

		count := int(s.threadCount.Load())
		if count == 0 {
			continue
		}
		if threadIndex >= count {
			threadIndex = 0
		}
		s.preemptThreadProcess(threadIndex)
		threadIndex++
	}
	s.pool.JoinAll()
	return true
}

// ProcessCount returns the number of processes currently tracked as
// alive (enqueued but not yet terminated).
func (s *Scheduler) ProcessCount() int64 { return s.processes.Load() }

// GetPreemptInterval returns the current wait between preemption ticks:
// max(1, 100/max(1, thread_count)) milliseconds (spec §4.4).
func (s *Scheduler) GetPreemptInterval() time.Duration { return s.getPreemptInterval() }

func (s *Scheduler) getPreemptInterval() time.Duration {
	threads := s.threadCount.Load()
	if threads < 1 {
		threads = 1
	}
	ms := 100 / threads
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// condWaitTimeout waits on cond for at most d unless woken earlier by a
// Signal/Broadcast on the same condition. sync.Cond has no native timed
// wait; a one-shot timer goroutine supplies it, and Stop cancels the
// timer once a real wakeup arrives so it does not linger.
func condWaitTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}

func (s *Scheduler) preemptThreadProcess(i int) {
	p := s.currentProcesses[i].Load()
	if p == nil {
		return
	}
	if s.currentProcesses[i].CompareAndSwap(p, nil) {
		p.Preempt()
		// Restore only if nothing else claimed the slot meanwhile; a CAS
		// failure here means the process terminated concurrently, which
		// is fine to leave alone (spec §9 open question, resolved).
		s.currentProcesses[i].CompareAndSwap(nil, p)
	}
}

func (s *Scheduler) setCurrentProcess(threadID int, p *Process) {
	if threadID == -1 {
		return
	}
	s.currentProcesses[threadID].Store(p)
}

func (s *Scheduler) clearCurrentProcess(threadID int, p *Process) {
	if threadID == -1 {
		return
	}
	for !s.currentProcesses[threadID].CompareAndSwap(p, nil) {
		// preemptThreadProcess may have briefly swapped the slot to nil to
		// call Preempt; spin until it restores p, then clear it.
	}
}

func (s *Scheduler) notifyAllThreads() {
	count := int(s.threadCount.Load())
	for i := 0; i < count; i++ {
		if w := s.threads[i].Load(); w != nil {
			w.notifyIdle()
		}
	}
}

func (s *Scheduler) threadEnter(w *WorkerState) {
	id := int(s.threadCount.Add(1) - 1)
	w.id = id
	s.threads[id].Store(w)
	s.pauseMu.Lock()
	s.pauseCond.Broadcast()
	s.pauseMu.Unlock()
}

func (s *Scheduler) threadExit(w *WorkerState) {
	s.threads[w.id].Store(nil)
	s.pauseMu.Lock()
	s.pauseCond.Broadcast()
	s.pauseMu.Unlock()
}

func (s *Scheduler) enqueueProcessAndNotifyThreads(w *WorkerState, p *Process) {
	threadID := 0
	if w != nil {
		threadID = w.id
	} else if s.threadCount.Load() == 0 {
		for {
			if ok, _ := s.startupQueue.TryEnqueue(p); ok {
				return
			}
		}
	}

	if s.enqueueOnAnyThread(p, threadID+1) {
		return
	}
	// Lazily grow the pool, but never past the live process count (spec
	// §4.3): a burst of enqueues before any worker registers as idle must
	// not spawn more workers than there is work to justify.
	if s.threadCount.Load() < int64(s.maxThreads) && s.threadCount.Load() < s.processes.Load() {
		nw := newWorkerState(-1, s.queueCapacity)
		s.pool.TryStart(func() { s.runWorker(nw) })
	}
}

func (s *Scheduler) tryEnqueueOnIdleThread(p *Process) bool {
	for {
		w := s.idle.pop()
		if w == nil {
			return false
		}
		if ok, _ := w.queue.TryEnqueue(p); !ok {
			continue
		}
		w.notifyIdle()
		return true
	}
}

// enqueueOnAnyThread routes p onto an idle worker if one is available,
// otherwise circularly scans threads[startID..] for a live worker. The
// return value is a hint only (spec §6): true means p landed on an idle
// worker, false means it landed on a running one or there was nowhere
// live to enqueue yet.
func (s *Scheduler) enqueueOnAnyThread(p *Process, startID int) bool {
	if s.tryEnqueueOnIdleThread(p) {
		return true
	}
	count := int(s.threadCount.Load())
	if count == 0 {
		return false
	}
	i := startID
	for {
		if i >= count {
			i = 0
		}
		w := s.threads[i].Load()
		if w != nil {
			if ok, wasEmpty := w.queue.TryEnqueue(p); ok {
				if wasEmpty && s.currentProcesses[i].Load() == nil {
					w.notifyIdle()
				}
				return false
			}
		}
		i++
	}
}

func (s *Scheduler) enqueueOnThread(w *WorkerState, p *Process) {
	if w.id == -1 {
		s.enqueueOnAnyThread(p, 0)
		return
	}
	for {
		if ok, _ := w.queue.TryEnqueue(p); ok {
			return
		}
		count := int(s.threadCount.Load())
		for i := 0; i < count; i++ {
			other := s.threads[i].Load()
			if other != nil {
				if ok, _ := other.queue.TryEnqueue(p); ok {
					return
				}
			}
		}
	}
}

// dequeueFromThread pops the next Ready process for w, trying its own
// queue first and falling back to stealing from other workers and the
// startup queue. It returns nil only once every queue has settled empty.
func (s *Scheduler) dequeueFromThread(w *WorkerState) *Process {
	for {
		p, res := w.queue.TryDequeue()
		switch res {
		case DequeueOK:
			return p
		case DequeueRetry:
			continue
		default: // DequeueEmpty
			if p, settled := s.tryDequeueFromAnyThread(w.id + 1); settled {
				return p
			}
		}
	}
}

// tryDequeueFromAnyThread scans threads[startID..] circularly, then the
// startup queue, for the first available process. The bool result
// reports whether the scan settled (true, possibly with a nil process
// meaning genuinely empty everywhere) or hit contention and must be
// retried (false).
func (s *Scheduler) tryDequeueFromAnyThread(startID int) (*Process, bool) {
	count := int(s.threadCount.Load())
	retry := false

	scan := func(i int) (*Process, bool) {
		w := s.threads[i].Load()
		if w == nil {
			return nil, false
		}
		p, res := w.queue.TryDequeue()
		switch res {
		case DequeueOK:
			return p, true
		case DequeueRetry:
			retry = true
		}
		return nil, false
	}

	for i := startID; i < count; i++ {
		if p, found := scan(i); found {
			return p, true
		}
	}
	for i := 0; i < startID && i < count; i++ {
		if p, found := scan(i); found {
			return p, true
		}
	}

	p, res := s.startupQueue.TryDequeue()
	if res == DequeueOK {
		return p, true
	}
	if res == DequeueRetry {
		retry = true
	}
	return nil, !retry
}

// runWorker is the per-worker dispatch loop (spec §4.4).
func (s *Scheduler) runWorker(w *WorkerState) {
	s.threadEnter(w)

	for {
		w.idleMu.Lock()
		w.nextIdle.Store(nil) // clear any stale idle-stack link (spec §9)
		for w.queue.IsEmpty() && s.startupQueue.IsEmpty() && s.pause.Load() == 0 && s.processes.Load() > 0 {
			s.idle.push(w)
			w.idleCond.Wait()
		}
		w.idleMu.Unlock()

		if s.processes.Load() == 0 {
			s.preemptMu.Lock()
			s.preemptCond.Broadcast()
			s.preemptMu.Unlock()
			break
		}

		if s.pause.Load() != 0 {
			w.cache.Clear()

			s.pauseMu.Lock()
			s.sleepingThreads.Add(1)
			s.pauseCond.Broadcast()
			s.pauseMu.Unlock()

			w.idleMu.Lock()
			for s.pause.Load() != 0 {
				w.idleCond.Wait()
			}
			w.idleMu.Unlock()
			s.sleepingThreads.Add(-1)
			continue
		}

		for s.pause.Load() == 0 {
			p := s.dequeueFromThread(w)
			if p == nil {
				break
			}
			for p != nil {
				p = s.interpretProcess(p, w)
			}
		}
	}

	s.threadExit(w)
}

// interpretProcess runs one interpreter quantum for p and applies the
// scheduling consequence of its outcome (spec §4.6, and the
// TargetYielded handoff of §4.5). It returns a follow-up process to run
// immediately without re-queuing, or nil.
func (s *Scheduler) interpretProcess(p *Process, w *WorkerState) *Process {
	program := p.Program()

	// A process reaches here either freshly dequeued (Ready) or already
	// marked Running by the caller (RunProcessOnCurrentThread, or the
	// TargetYielded handoff below chaining straight into its target).
	p.ChangeState(Ready, Running)

	s.setCurrentProcess(w.id, p)
	p.setWorker(w)

	interp := s.newInterpreter(p, &w.cache)
	interp.Run()

	p.setWorker(nil)
	s.clearCurrentProcess(w.id, p)

	switch {
	case interp.IsTerminated():
		remaining := s.processes.Add(-1)
		if remaining == 0 {
			s.notifyAllThreads()
		} else if s.onProcessTerminated != nil {
			s.sleepingThreads.Add(1)
			w.cache.Clear()
			s.onProcessTerminated(program)
			s.sleepingThreads.Add(-1)
		}
		return nil

	case interp.IsYielded():
		p.ChangeState(Running, Yielding)
		if p.Mailbox().Empty() {
			p.ChangeState(Yielding, Sleeping)
		} else {
			p.ChangeState(Yielding, Ready)
			s.enqueueOnThread(w, p)
		}
		return nil

	case interp.IsTargetYielded():
		port := interp.Target()
		target := port.Process()

		if target.ChangeState(Sleeping, Running) {
			port.Unlock()
			p.ChangeState(Running, Ready)
			s.enqueueOnAnyThread(p, w.id+1)
			return target
		}
		if targetQueue := target.currentQueue(); targetQueue != nil && targetQueue.TryDequeueEntry(target) {
			port.Unlock()
			p.ChangeState(Running, Ready)
			s.enqueueOnAnyThread(p, w.id+1)
			return target
		}
		port.Unlock()
		p.ChangeState(Running, Ready)
		s.enqueueOnThread(w, p)
		return nil

	case interp.IsInterrupted():
		p.ChangeState(Running, Ready)
		s.enqueueOnThread(w, p)
		return nil

	case interp.IsUncaughtException():
		// Left off every queue and un-freed: the session owner is expected
		// to observe this (e.g. via VisitProcesses) and terminate the
		// program (spec §7).
		return nil

	default:
		panic("sched: interpreter returned without a recognized outcome")
	}
}
