// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"sync"
	"time"

	"code.hybscloud.com/sched"
)

// outcomeKind names the outcome a scriptInterpreter reports, mirroring
// the Interpreter contract's five possibilities (spec §4.6).
type outcomeKind int

const (
	kindTerminated outcomeKind = iota
	kindYielded
	kindTargetYielded
	kindInterrupted
	kindUncaught
)

// scriptInterpreter is a stub Interpreter that reports one predetermined
// outcome per Run. Tests compose factories that return different
// scriptInterpreter values across successive calls to model a process
// stepping through several scheduling rounds.
type scriptInterpreter struct {
	kind      outcomeKind
	target    *sched.Port
	shouldRun func()
}

func (s *scriptInterpreter) Run() {
	if s.shouldRun != nil {
		s.shouldRun()
	}
}
func (s *scriptInterpreter) IsTerminated() bool        { return s.kind == kindTerminated }
func (s *scriptInterpreter) IsYielded() bool           { return s.kind == kindYielded }
func (s *scriptInterpreter) IsTargetYielded() bool     { return s.kind == kindTargetYielded }
func (s *scriptInterpreter) IsInterrupted() bool       { return s.kind == kindInterrupted }
func (s *scriptInterpreter) IsUncaughtException() bool { return s.kind == kindUncaught }
func (s *scriptInterpreter) Target() *sched.Port       { return s.target }

// terminateImmediately is an InterpreterFactory under which every process
// terminates on its first scheduling round.
func terminateImmediately(*sched.Process, *sched.InterpreterCache) sched.Interpreter {
	return &scriptInterpreter{kind: kindTerminated}
}

// yieldNTimesThenTerminate builds a factory under which each distinct
// process yields n times (mailbox kept non-empty so it stays Ready) before
// terminating on round n+1.
func yieldNTimesThenTerminate(n int) sched.InterpreterFactory {
	var mu sync.Mutex
	rounds := make(map[*sched.Process]int)
	return func(p *sched.Process, _ *sched.InterpreterCache) sched.Interpreter {
		mu.Lock()
		round := rounds[p]
		rounds[p] = round + 1
		mu.Unlock()
		if round < n {
			return &scriptInterpreter{kind: kindYielded}
		}
		return &scriptInterpreter{kind: kindTerminated}
	}
}

// interruptUntilFlagged builds a factory under which a process reports
// Interrupted for as long as its preempt flag is clear, then, once
// ShouldPreempt reports true, clears the flag and reports Terminated.
func interruptUntilFlagged() sched.InterpreterFactory {
	return func(p *sched.Process, _ *sched.InterpreterCache) sched.Interpreter {
		if p.ShouldPreempt() {
			p.ClearPreempt()
			return &scriptInterpreter{kind: kindTerminated}
		}
		return &scriptInterpreter{kind: kindInterrupted}
	}
}

// countingCacheLookup builds a factory under which the interpreter looks
// up key in the worker's cache, counting misses into *misses, and
// populates it on a miss before terminating. A cache cleared between
// rounds (e.g. by a pause) shows up as a repeated miss.
func countingCacheLookup(key any, misses *int) sched.InterpreterFactory {
	var mu sync.Mutex
	return func(p *sched.Process, cache *sched.InterpreterCache) sched.Interpreter {
		return &scriptInterpreter{kind: kindTerminated, shouldRun: func() {
			if _, ok := cache.Get(key); !ok {
				mu.Lock()
				*misses++
				mu.Unlock()
				cache.Put(key, true)
			}
		}}
	}
}

// waitFor polls cond every tick until it reports true or the deadline
// elapses, at which point ok is false.
func waitFor(deadline time.Duration, tick time.Duration, cond func() bool) bool {
	timeout := time.After(deadline)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	if cond() {
		return true
	}
	for {
		select {
		case <-timeout:
			return cond()
		case <-ticker.C:
			if cond() {
				return true
			}
		}
	}
}
