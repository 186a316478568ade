package picker

import "sync"

// Mailbox is a size-1 conflating register between frame producers and the
// dispatch worker. Submit never blocks on hardware state and silently
// replaces whatever was stored before: only the most recent desired screen
// state matters, and a backlog would just replay stale frames after a burst
// of knob input.
type Mailbox struct {
	mu  sync.Mutex
	job *Job
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Submit stores job, discarding any unconsumed predecessor.
func (m *Mailbox) Submit(job Job) {
	m.mu.Lock()
	m.job = &job
	m.mu.Unlock()
}

// Take removes and returns the stored job, if any.
func (m *Mailbox) Take() (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.job == nil {
		return Job{}, false
	}
	job := *m.job
	m.job = nil
	return job, true
}

// Pending reports whether a job is waiting.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job != nil
}
