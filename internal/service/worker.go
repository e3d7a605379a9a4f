package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("collection closed")

// job is one queued collection operation.
type job struct {
	ctx    context.Context
	name   string
	run    func(ctx context.Context) error
	result chan error
}

// worker runs jobs one at a time in submission order, so remote calls and
// the local state changes that follow them resolve in the order issued.
type worker struct {
	jobs      chan job
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *zap.Logger
}

func newWorker(logger *zap.Logger) *worker {
	w := &worker{
		jobs:   make(chan job),
		done:   make(chan struct{}),
		logger: logger,
	}
	w.wg.Add(1)
	go w.start()
	return w
}

func (w *worker) start() {
	defer w.wg.Done()
	for {
		select {
		case j := <-w.jobs:
			err := j.run(j.ctx)
			if err != nil {
				w.logger.Debug("collection operation failed", zap.String("op", j.name), zap.Error(err))
			}
			j.result <- err
		case <-w.done:
			return
		}
	}
}

// submit queues fn and waits for it to finish. A job whose caller gives up
// still runs, with the caller's cancelled context.
func (w *worker) submit(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j := job{ctx: ctx, name: name, run: fn, result: make(chan error, 1)}
	select {
	case w.jobs <- j:
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop ends the worker after the running job, if any.
func (w *worker) stop() {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}
