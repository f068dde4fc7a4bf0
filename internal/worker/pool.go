// Package worker runs the engine's background jobs (media probes) on a fixed
// pool of workers fed by a buffered queue.
package worker

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Job is a unit of background work. Execute runs on a worker goroutine.
type Job interface {
	Execute() error
	ID() string
}

// Worker pulls jobs from its own channel after registering it with the
// dispatcher's pool.
type Worker struct {
	id         int
	workerPool chan chan Job
	jobChannel chan Job
	quit       chan struct{}
	wg         *sync.WaitGroup
	log        *logrus.Logger
}

func newWorker(id int, workerPool chan chan Job, wg *sync.WaitGroup, log *logrus.Logger) Worker {
	return Worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan Job),
		quit:       make(chan struct{}),
		wg:         wg,
		log:        log,
	}
}

// start makes the worker listen for jobs on its channel.
func (w Worker) start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			w.workerPool <- w.jobChannel

			select {
			case job := <-w.jobChannel:
				entry := w.log.WithFields(logrus.Fields{"worker": w.id, "job_id": job.ID()})
				entry.Info("Worker started job")
				if err := job.Execute(); err != nil {
					entry.WithField("error", err.Error()).Error("Job failed")
				} else {
					entry.Info("Worker finished job")
				}
			case <-w.quit:
				return
			}
		}
	}()
}

func (w Worker) stop() {
	close(w.quit)
}

// Dispatcher manages the pool of workers and routes submitted jobs to them.
type Dispatcher struct {
	maxWorkers int
	workerPool chan chan Job
	jobQueue   chan Job
	workers    []Worker
	wg         sync.WaitGroup
	quit       chan struct{}
	log        *logrus.Logger
}

// NewDispatcher creates a dispatcher with the given pool size and queue depth.
func NewDispatcher(maxWorkers, jobQueueSize int, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		maxWorkers: maxWorkers,
		workerPool: make(chan chan Job, maxWorkers),
		jobQueue:   make(chan Job, jobQueueSize),
		workers:    make([]Worker, 0, maxWorkers),
		quit:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the workers and the dispatch loop.
func (d *Dispatcher) Run() {
	d.log.WithField("workers", d.maxWorkers).Info("Dispatcher starting")
	for i := 1; i <= d.maxWorkers; i++ {
		w := newWorker(i, d.workerPool, &d.wg, d.log)
		d.workers = append(d.workers, w)
		w.start()
	}
	go d.dispatch()
}

func (d *Dispatcher) dispatch() {
	for {
		select {
		case job := <-d.jobQueue:
			go func(job Job) {
				jobChannel := <-d.workerPool
				jobChannel <- job
			}(job)
		case <-d.quit:
			return
		}
	}
}

// Submit queues a job without blocking. Returns false when the queue is full.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case d.jobQueue <- job:
		d.log.WithField("job_id", job.ID()).Debug("Job submitted to queue")
		return true
	default:
		d.log.WithField("job_id", job.ID()).Warn("Job queue full, job dropped")
		return false
	}
}

// Stop shuts down the dispatch loop and waits for workers to drain.
func (d *Dispatcher) Stop() {
	close(d.quit)
	for _, w := range d.workers {
		w.stop()
	}
	d.wg.Wait()
	d.log.Info("Dispatcher stopped")
}
