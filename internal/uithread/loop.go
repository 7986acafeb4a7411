// Package uithread provides the main execution context that UI-triggering
// host actions are marshaled onto.
package uithread

import (
	"errors"
	"fmt"
	"sync"

	"appscanner/internal/infrastructure/logging"
)

// ErrStopped is returned by Post once the loop has been stopped
var ErrStopped = errors.New("main loop stopped")

// Loop runs posted functions one at a time, in order, on a single goroutine.
// The queue is unbounded so Post never blocks the caller.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
	logger  logging.Logger
}

// NewLoop starts a loop goroutine
func NewLoop(logger logging.Logger) *Loop {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Post enqueues fn and returns immediately
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return errors.New("nil task")
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Invoke posts fn and waits for it to finish
func (l *Loop) Invoke(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	<-finished
	return nil
}

// Stop rejects new work, runs what is already queued and waits for the loop to exit
func (l *Loop) Stop() {
	l.mu.Lock()
	alreadyStopped := l.stopped
	l.stopped = true
	l.mu.Unlock()

	if !alreadyStopped {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range batch {
			l.execute(fn)
		}

		if stopped && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-l.wake
		}
	}
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Main loop task panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
