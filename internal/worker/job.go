package worker

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPoolBusy is returned when the job queue is full.
	ErrPoolBusy = errors.New("worker pool busy")
	// ErrPoolClosed is returned for jobs submitted after Close.
	ErrPoolClosed = errors.New("worker pool closed")
)

// Job is one unit of backend work. Key groups jobs from the same caller so a
// single client cannot starve the others.
type Job struct {
	Key  string
	Name string
	Run  func(ctx context.Context) error

	ctx  context.Context
	done chan error
	stop bool
}

func (j Job) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Name, r)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		return err
	}
	return j.Run(j.ctx)
}

func (j Job) finish(err error) {
	if j.done != nil {
		j.done <- err
	}
}
