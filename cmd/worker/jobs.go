package main

import (
	"sync"
	"time"
)

// inflight tracks running update jobs for graceful shutdown. Once closed it
// admits no new jobs, so no Add can race the final Wait.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// start registers a job. It reports false after close; the caller must not
// run the job then.
func (j *inflight) start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false
	}
	j.wg.Add(1)
	return true
}

func (j *inflight) done() { j.wg.Done() }

// closeAndWait stops admitting jobs and waits up to timeout for the running
// ones. It reports whether they all finished.
func (j *inflight) closeAndWait(timeout time.Duration) bool {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}
