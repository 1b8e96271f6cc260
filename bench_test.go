// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"testing"

	"code.hybscloud.com/sched"
)

// BenchmarkQueueEnqueueDequeue measures a single enqueue/dequeue round
// trip on an otherwise-idle ProcessQueue.
func BenchmarkQueueEnqueueDequeue(b *testing.B) {
	q := sched.NewProcessQueue(1024)
	p := newTestProcess()
	b.ReportAllocs()
	for b.Loop() {
		q.TryEnqueue(p)
		q.TryDequeue()
	}
}

// BenchmarkMailboxPostTake measures a single post/take round trip on an
// otherwise-idle Mailbox.
func BenchmarkMailboxPostTake(b *testing.B) {
	m := sched.NewMailbox(1024)
	b.ReportAllocs()
	for b.Loop() {
		m.Post(struct{}{})
		m.Take()
	}
}

// BenchmarkSchedulerTerminateImmediately measures end-to-end dispatch
// overhead for a process that terminates on its first quantum.
func BenchmarkSchedulerTerminateImmediately(b *testing.B) {
	program := sched.NewProgram("bench")
	b.ReportAllocs()
	for b.Loop() {
		s := sched.NewScheduler(1, terminateImmediately)
		s.ScheduleProgram(program)
		s.EnqueueProcess(sched.NewProcess(program))
		s.Run()
	}
}
