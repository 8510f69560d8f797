package worker

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Config sizes a Dispatcher.
type Config struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher feeds submitted jobs to a bounded, elastic worker pool. Jobs are
// taken round-robin across keys.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher

	mu        sync.Mutex
	queues    map[string]*keyQueue
	ready     *list.List // round-robin queue of keys
	positions map[string]*list.Element

	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(cfg Config) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	pool := newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout)

	d := &Dispatcher{
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      pool,
		JobQueue:  make(chan Job, queueSize),
		quit:      make(chan struct{}),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues fn and waits for it to finish. It fails fast with ErrPoolBusy
// when the queue is full. If ctx ends first, ctx.Err() is returned and the
// job sees the cancelled context.
func (d *Dispatcher) Submit(ctx context.Context, key, name string, fn func(ctx context.Context) error) error {
	select {
	case <-d.quit:
		return ErrPoolClosed
	default:
	}
	job := Job{Key: key, Name: name, Run: fn, ctx: ctx, done: make(chan error, 1)}
	select {
	case d.JobQueue <- job:
	default:
		debugLog("[dispatcher] reject %s for %s: queue full", name, key)
		return ErrPoolBusy
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and releases idle workers. Queued jobs fail with ErrPoolClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()
	})
}

func (d *Dispatcher) run() {
	for {
		if d.pending() == 0 {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				d.drain()
				return
			}
			continue
		}
		// wait for a worker before picking a key so jobs that arrive meanwhile
		// join the rotation
		workerChan := d.pool.acquire()
		if workerChan == nil {
			d.drain()
			return
		}
		d.collect()
		job := d.next()
		debugLog("[dispatcher] assign %s for %s to worker-%d", job.Name, job.Key, d.pool.workerID(workerChan))
		workerChan <- job
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// collect moves everything waiting in JobQueue into the per-key queues
func (d *Dispatcher) collect() {
	for {
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		default:
			return
		}
	}
}

// pending counts jobs accepted but not yet handed to a worker
func (d *Dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.JobQueue)
	for _, q := range d.queues {
		n += len(q.jobs)
	}
	return n
}

// next pops the oldest job of the key in the front of the rotation and moves
// that key to the back. Callers make sure at least one key is queued.
func (d *Dispatcher) next() Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	elem := d.ready.Front()
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	return job
}

func (d *Dispatcher) drain() {
	d.mu.Lock()
	for _, q := range d.queues {
		for _, job := range q.jobs {
			job.finish(ErrPoolClosed)
		}
	}
	d.queues = make(map[string]*keyQueue)
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.mu.Unlock()
	for {
		select {
		case job := <-d.JobQueue:
			job.finish(ErrPoolClosed)
		default:
			return
		}
	}
}
