// pattern: Imperative Shell

package events

import "sync"

// Job is one operation run by a Worker. A non-nil result is pushed onto
// the worker's queue.
type Job func() any

// Worker runs jobs one at a time in submission order, off the UI
// goroutine. Each job observes the full effect of the one before it.
type Worker struct {
	q *Queue

	mu      sync.Mutex
	cond    *sync.Cond
	jobs    []Job
	closing bool
	done    chan struct{}
}

// NewWorker starts a worker publishing results onto q.
func NewWorker(q *Queue) *Worker {
	w := &Worker{q: q, done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Submit enqueues job. It reports false after Close.
func (w *Worker) Submit(job Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return false
	}
	w.jobs = append(w.jobs, job)
	w.cond.Signal()
	return true
}

// Close discards pending jobs, waits for the running one and stops the
// worker.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closing {
		w.closing = true
		w.jobs = nil
		w.cond.Signal()
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.jobs) == 0 && !w.closing {
			w.cond.Wait()
		}
		if w.closing {
			w.mu.Unlock()
			return
		}
		job := w.jobs[0]
		w.jobs = w.jobs[1:]
		w.mu.Unlock()

		if msg := job(); msg != nil {
			w.q.Push(msg)
		}
	}
}
