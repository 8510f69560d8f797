package worker

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		debugLog("[worker-%d] started", w.id)
		for job := range w.jobChannel {
			if job.stop {
				debugLog("[worker-%d] retired", w.id)
				return
			}
			debugLog("[worker-%d] run %s for %s", w.id, job.Name, job.Key)
			job.finish(job.execute())
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				debugLog("[worker-%d] stopped", w.id)
				return
			}
		}
	}()
}
