package directory

import (
	"sync"

	"go.uber.org/zap"
)

type task func()

// writeQueue runs ledger writes one at a time in submission order. It is
// unbounded so that submitting never blocks while the directory lock is held.
type writeQueue struct {
	log *zap.Logger

	mu     sync.Mutex
	tasks  []task
	closed bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newWriteQueue(log *zap.Logger) *writeQueue {
	q := &writeQueue{
		log:  log,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// submit queues t and reports whether it was accepted. Nothing is accepted
// after shutdown.
func (q *writeQueue) submit(t task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *writeQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		closed := q.closed
		q.mu.Unlock()

		for _, t := range batch {
			q.exec(t)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}

		select {
		case <-q.wake:
		case <-q.quit:
		}
	}
}

func (q *writeQueue) exec(t task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("ledger write panicked", zap.Any("panic", r))
		}
	}()
	t()
}

// shutdown stops accepting work and waits for queued tasks to finish.
func (q *writeQueue) shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.quit)
	<-q.done
}
