package chathub

import (
	"context"
	"sync"
)

// Loop is the single execution context of the hub. Tasks posted from any
// goroutine run one at a time, in posting order, on the goroutine that drains it.
type Loop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues task. It never blocks.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wake is signalled after Post. The receiver should call Drain.
func (l *Loop) Wake() <-chan struct{} { return l.wake }

// Drain runs queued tasks until the queue is empty, including tasks posted while draining.
func (l *Loop) Drain() {
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, task := range batch {
			task()
		}
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Run drains the loop until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.Drain()
		}
	}
}
