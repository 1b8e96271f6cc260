// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sched implements the core scheduler of a managed-language
// virtual machine: it multiplexes an unbounded population of lightweight
// [Process] values over a bounded pool of worker goroutines, delivers
// cooperative and preemptive scheduling, coordinates program-wide pauses,
// and hands processes off between workers via lock-free queues.
//
// # Architecture
//
//   - Process state: a strongly-typed lifecycle atom (Sleeping, Ready,
//     Running, Yielding) transitioned only via compare-and-swap. See
//     [Process] and [State].
//   - Transport: a bounded, CAS-based ready-queue per worker ([ProcessQueue])
//     supporting enqueue, dequeue, and targeted removal; a bounded
//     lock-free mailbox per process ([Mailbox]) built on
//     [code.hybscloud.com/lfq].
//   - Dispatch: each worker ([WorkerState]) repeatedly dequeues a process,
//     runs it through an externally supplied [Interpreter], and reacts to
//     the reported outcome.
//   - Pause: [Scheduler.StopProgram] quiesces every worker before
//     collecting a program's processes, without deadlock; [Scheduler.ResumeProgram]
//     reverses it.
//   - Preemption: [Scheduler.Run] drives a periodic tick that cooperatively
//     interrupts one worker's process at a time.
//   - Handoff: [Scheduler.RunProcessOnCurrentThread] and the interpreter's
//     TargetYielded outcome transfer execution directly between two
//     processes via a locked [Port].
//
// # Out of scope
//
// The bytecode interpreter, the heap and garbage collector, the
// class/object model, and top-level program loading, command-line
// handling, and logging are external collaborators, not implemented here.
//
// # Example
//
//	s := sched.NewScheduler(runtime.NumCPU(), myInterpreterFactory)
//	program := sched.NewProgram("main")
//	s.ScheduleProgram(program)
//	s.EnqueueProcess(sched.NewProcess(program))
//	s.Run()
package sched
