package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/logger"
)

var ErrDispatcherClosed = errors.New("index dispatcher is closed")

// LocalDispatcher runs index jobs on in-process goroutines. Jobs are detached
// from the request that dispatched them.
type LocalDispatcher struct {
	log     *logger.Logger
	handler IndexHandler
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLocalDispatcher(log *logger.Logger, handler IndexHandler, timeout time.Duration) *LocalDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{
		log:     log.With("worker", "LocalDispatcher"),
		handler: handler,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (d *LocalDispatcher) Dispatch(_ context.Context, job model.IndexJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := runJob(d.ctx, d.handler, job, d.timeout); err != nil {
			d.log.Warn("index job failed", "document_id", job.DocumentID, "error", err)
		}
	}()
	return nil
}

// Close stops accepting jobs and waits for running ones. Jobs still running
// when ctx is done are cancelled.
func (d *LocalDispatcher) Close(ctx context.Context) {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
	}
	d.cancel()
}
