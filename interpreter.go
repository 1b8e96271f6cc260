// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched

// Interpreter is the external bytecode interpreter contract (spec §1,
// §4.6): a black box that runs a process until it must return with
// exactly one of the outcomes below. The contract guarantees the
// process's state is Running on entry and on every return path.
//
// This package never implements Interpreter; production wires in the
// bytecode interpreter, tests wire in a stub.
type Interpreter interface {
	// Run executes the process until one outcome below becomes true.
	Run()

	IsTerminated() bool
	IsYielded() bool
	IsTargetYielded() bool
	IsInterrupted() bool
	IsUncaughtException() bool

	// Target returns the locked port for a TargetYielded outcome. It is
	// only valid to call when IsTargetYielded reports true.
	Target() *Port
}

// InterpreterFactory constructs the Interpreter for a single process. The
// scheduler calls it once per interpretProcess call, passing the
// calling worker's InterpreterCache so the interpreter can memoize
// lookups (e.g. resolved method dispatch) across processes it runs on
// that worker; the scheduler clears the cache whenever it pauses.
type InterpreterFactory func(*Process, *InterpreterCache) Interpreter
