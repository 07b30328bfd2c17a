package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/lineup/internal/domain/scan"
)

// Status is the lifecycle of a submitted scan.
type Status string

// Job statuses. Partial means the video ended before every roster was found.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	switch s {
	case StatusSucceeded, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is a snapshot of one submitted scan.
type Job struct {
	ID          string       `json:"id"`
	Prefix      string       `json:"prefix,omitempty"`
	Status      Status       `json:"status"`
	Stage       scan.State   `json:"stage"`
	Video       string       `json:"video,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Result      *scan.Result `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type jobEntry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// jobs is the registry of submitted scans. Finished entries beyond the
// retention limit are evicted oldest first.
type jobs struct {
	mu        sync.RWMutex
	byID      map[string]*jobEntry
	order     []string
	retention int
}

func newJobs(retention int) *jobs {
	return &jobs{byID: make(map[string]*jobEntry), retention: retention}
}

func (js *jobs) add(j Job) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.byID[j.ID] = &jobEntry{job: j, done: make(chan struct{})}
	js.order = append(js.order, j.ID)
	js.evict()
}

func (js *jobs) remove(id string) {
	js.mu.Lock()
	defer js.mu.Unlock()
	delete(js.byID, id)
	for i, v := range js.order {
		if v == id {
			js.order = append(js.order[:i], js.order[i+1:]...)
			break
		}
	}
}

// evict must be called with mu held.
func (js *jobs) evict() {
	excess := len(js.order) - js.retention
	if excess <= 0 {
		return
	}
	kept := js.order[:0]
	for _, id := range js.order {
		if excess > 0 && js.byID[id].job.Status.Finished() {
			delete(js.byID, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	js.order = kept
}

func (js *jobs) get(id string) (Job, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	e, ok := js.byID[id]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

func (js *jobs) done(id string) (<-chan struct{}, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	e, ok := js.byID[id]
	if !ok {
		return nil, false
	}
	return e.done, true
}

// start moves a queued job to running. It returns false if the job was
// cancelled or evicted while it waited.
func (js *jobs) start(id string, cancel context.CancelFunc) bool {
	js.mu.Lock()
	defer js.mu.Unlock()
	e, ok := js.byID[id]
	if !ok || e.job.Status != StatusQueued {
		return false
	}
	now := time.Now()
	e.job.Status = StatusRunning
	e.job.StartedAt = &now
	e.cancel = cancel
	return true
}

func (js *jobs) update(id string, fn func(j *Job)) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if e, ok := js.byID[id]; ok && !e.job.Status.Finished() {
		fn(&e.job)
	}
}

// finish records the terminal status and releases waiters.
func (js *jobs) finish(id string, status Status, res *scan.Result, err error) Job {
	js.mu.Lock()
	defer js.mu.Unlock()
	e, ok := js.byID[id]
	if !ok {
		return Job{}
	}
	js.finishLocked(e, status, res, err)
	return e.job
}

func (js *jobs) finishLocked(e *jobEntry, status Status, res *scan.Result, err error) {
	if e.job.Status.Finished() {
		return
	}
	now := time.Now()
	e.job.Status = status
	e.job.FinishedAt = &now
	e.job.Result = res
	if res != nil {
		e.job.Stage = res.State
	}
	if err != nil {
		e.job.Error = err.Error()
	}
	e.cancel = nil
	close(e.done)
	js.evict()
}

// cancel stops a queued or running job. A queued job finishes immediately;
// a running job finishes when its scan returns.
func (js *jobs) cancel(id string) (Job, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	e, ok := js.byID[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	switch {
	case e.job.Status.Finished():
		return e.job, ErrJobFinished
	case e.job.Status == StatusRunning:
		if e.cancel != nil {
			e.cancel()
		}
	default:
		js.finishLocked(e, StatusCancelled, nil, nil)
	}
	return e.job, nil
}

func (js *jobs) list() []Job {
	js.mu.RLock()
	defer js.mu.RUnlock()
	out := make([]Job, 0, len(js.order))
	for i := len(js.order) - 1; i >= 0; i-- {
		out = append(out, js.byID[js.order[i]].job)
	}
	return out
}

func (js *jobs) counts() map[Status]int {
	js.mu.RLock()
	defer js.mu.RUnlock()
	out := make(map[Status]int)
	for _, e := range js.byID {
		out[e.job.Status]++
	}
	return out
}

// cancelAll cancels every running job.
func (js *jobs) cancelAll() {
	js.mu.Lock()
	defer js.mu.Unlock()
	for _, e := range js.byID {
		if e.cancel != nil {
			e.cancel()
		}
	}
}

// abandon finishes every job that never reached a worker.
func (js *jobs) abandon(reason error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	for _, id := range append([]string(nil), js.order...) {
		if e, ok := js.byID[id]; ok && e.job.Status == StatusQueued {
			js.finishLocked(e, StatusCancelled, nil, reason)
		}
	}
}
