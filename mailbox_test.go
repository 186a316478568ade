package picker

import (
	"fmt"
	"sync"
	"testing"
)

func TestMailboxLastSubmissionWins(t *testing.T) {
	box := NewMailbox()
	for i := 0; i < 10; i++ {
		box.Submit(Job{Tag: fmt.Sprintf("frame-%d", i)})
	}

	job, ok := box.Take()
	if !ok {
		t.Fatal("expected a pending job")
	}
	if job.Tag != "frame-9" {
		t.Fatalf("expected newest job, got %q", job.Tag)
	}
	if _, ok := box.Take(); ok {
		t.Fatal("mailbox should hold at most one job")
	}
}

func TestMailboxEmptyTake(t *testing.T) {
	box := NewMailbox()
	if _, ok := box.Take(); ok {
		t.Fatal("empty mailbox returned a job")
	}
	if box.Pending() {
		t.Fatal("empty mailbox reported pending")
	}
}

func TestMailboxSubmitWhileConsumedJobOutstanding(t *testing.T) {
	box := NewMailbox()
	box.Submit(Job{Tag: "a"})

	// The worker takes A and is now "busy" with it; B and C arrive meanwhile.
	taken, ok := box.Take()
	if !ok || taken.Tag != "a" {
		t.Fatalf("expected to take a, got %v %v", taken.Tag, ok)
	}
	box.Submit(Job{Tag: "b"})
	box.Submit(Job{Tag: "c"})

	next, ok := box.Take()
	if !ok {
		t.Fatal("expected a pending job after the busy window")
	}
	if next.Tag != "c" {
		t.Fatalf("intermediate job should have been conflated away, got %q", next.Tag)
	}
}

func TestMailboxConcurrentSubmit(t *testing.T) {
	box := NewMailbox()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			box.Submit(Job{Tag: fmt.Sprintf("g-%d", i)})
		}(i)
	}
	wg.Wait()

	if _, ok := box.Take(); !ok {
		t.Fatal("expected exactly one surviving job")
	}
	if box.Pending() {
		t.Fatal("mailbox should be empty after the take")
	}
}
