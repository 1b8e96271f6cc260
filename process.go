// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

import (
	"code.hybscloud.com/atomix"
)

// State is a process's position in the scheduling lifecycle.
// Transitions are CAS-only; a failed CAS means another worker won the race.
type State uint32

const (
	// Sleeping processes are not runnable: created but not yet enqueued,
	// or parked after a cooperative yield with an empty mailbox.
	Sleeping State = iota
	// Ready processes are runnable and reside in exactly one queue.
	Ready
	// Running processes are being interpreted by exactly one worker.
	Running
	// Yielding is the transient state between a cooperative yield and the
	// scheduler's decision to re-queue (Ready) or park (Sleeping) it.
	Yielding
)

func (s State) String() string {
	switch s {
	case Sleeping:
		return "sleeping"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Yielding:
		return "yielding"
	default:
		return "unknown"
	}
}

// Program is a loaded code image shared by zero or more processes.
type Program struct {
	name      string
	scheduler atomix.Pointer[Scheduler]
}

// NewProgram creates a program not yet associated with any scheduler.
func NewProgram(name string) *Program {
	return &Program{name: name}
}

// Name returns the program's display name.
func (p *Program) Name() string { return p.name }

// Scheduler returns the scheduler this program was scheduled on, or nil.
func (p *Program) Scheduler() *Scheduler { return p.scheduler.Load() }

// Process is a schedulable unit of interpreted execution with its own
// state machine and mailbox. Exactly one worker may ever observe it in
// the Running state; every transition out of Running is CAS-guarded.
type Process struct {
	program *Program
	mailbox *Mailbox

	// next is an intrusive link used only while the process is batched
	// outside any queue (the pause protocol's stopped list). The scheduler
	// owns this field; it is never read concurrently with a write.
	next *Process

	stateWord atomix.Uint32

	worker  atomix.Pointer[WorkerState]
	queue   atomix.Pointer[ProcessQueue]
	preempt atomix.Uint32
}

// ProcessOption configures a Process at construction time.
type ProcessOption func(*processConfig)

type processConfig struct {
	mailboxCapacity int
}

// WithMailboxCapacity overrides the default bounded capacity of a
// process's inbound mailbox.
func WithMailboxCapacity(n int) ProcessOption {
	return func(c *processConfig) { c.mailboxCapacity = n }
}

// NewProcess creates a process owned by program, starting Sleeping.
func NewProcess(program *Program, opts ...ProcessOption) *Process {
	cfg := processConfig{mailboxCapacity: defaultMailboxCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Process{
		program: program,
		mailbox: NewMailbox(cfg.mailboxCapacity),
	}
	p.stateWord.Store(uint32(Sleeping))
	return p
}

// Program returns the owning program.
func (p *Process) Program() *Program { return p.program }

// Mailbox returns the process's inbound message queue.
func (p *Process) Mailbox() *Mailbox { return p.mailbox }

// State returns the current lifecycle state.
func (p *Process) State() State { return State(p.stateWord.Load()) }

// ChangeState attempts the CAS transition from -> to. It returns true
// exactly once per actual transition; concurrent losers observe false.
func (p *Process) ChangeState(from, to State) bool {
	return p.stateWord.CompareAndSwap(uint32(from), uint32(to))
}

// Next returns the intrusive link used by the pause protocol's stopped
// list. It is undefined while the process is queued for scheduling.
func (p *Process) Next() *Process { return p.next }

// SetNext sets the intrusive link. Only the code currently holding the
// process outside any queue (the scheduler, mid pause/resume) may call it.
func (p *Process) SetNext(n *Process) { p.next = n }

// Worker returns the worker currently interpreting this process, or nil.
func (p *Process) Worker() *WorkerState { return p.worker.Load() }

func (p *Process) setWorker(w *WorkerState) { p.worker.Store(w) }

// currentQueue returns the ProcessQueue this process is enqueued on, if
// any. Set by ProcessQueue.TryEnqueue and cleared on dequeue.
func (p *Process) currentQueue() *ProcessQueue { return p.queue.Load() }

func (p *Process) setQueue(q *ProcessQueue) { p.queue.Store(q) }
func (p *Process) clearQueue(q *ProcessQueue) {
	p.queue.CompareAndSwap(q, nil)
}

// Preempt sets the cooperative flag the interpreter is expected to poll.
// It never blocks and never fails; multiple preemptions coalesce.
func (p *Process) Preempt() { p.preempt.Store(1) }

// ClearPreempt resets the cooperative flag. The interpreter calls this
// once it has observed and acted on a pending preemption.
func (p *Process) ClearPreempt() { p.preempt.Store(0) }

// ShouldPreempt reports whether Preempt has been called since the last
// ClearPreempt. Interpreters poll this at safepoints.
func (p *Process) ShouldPreempt() bool { return p.preempt.Load() != 0 }
