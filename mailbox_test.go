// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sched_test

import (
	"testing"
	"time"

	"code.hybscloud.com/sched"
)

func TestMailboxEmptyOnCreation(t *testing.T) {
	m := sched.NewMailbox(4)
	if !m.Empty() {
		t.Fatal("new mailbox reports non-empty")
	}
	if _, ok := m.Take(); ok {
		t.Fatal("Take on empty mailbox reported a message")
	}
}

func TestMailboxPostTakeOrder(t *testing.T) {
	m := sched.NewMailbox(4)
	m.Post("first")
	m.Post("second")

	if m.Empty() {
		t.Fatal("mailbox with pending messages reports empty")
	}

	got, ok := m.Take()
	if !ok || got != "first" {
		t.Fatalf("first Take = %v, %v, want first, true", got, ok)
	}
	got, ok = m.Take()
	if !ok || got != "second" {
		t.Fatalf("second Take = %v, %v, want second, true", got, ok)
	}
	if !m.Empty() {
		t.Fatal("mailbox not empty after draining every message")
	}
}

func TestMailboxPostBlocksUntilCapacity(t *testing.T) {
	m := sched.NewMailbox(2)
	m.Post(1)
	m.Post(2)

	done := make(chan struct{})
	go func() {
		m.Post(3) // must back off until a slot frees
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Post returned before the mailbox had room")
	default:
	}

	m.Take()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Post did not unblock after a slot freed")
	}
}
