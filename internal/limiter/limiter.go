// Package limiter shapes outbound request traffic: it bounds the number of
// in-flight tasks and, once that bound has been reached, spaces consecutive
// dispatches by interval/maxConcurrent. It never rejects work, it only delays it.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"showcase/catalogservice/internal/metrics"
)

const (
	DefaultMaxConcurrent = 50
	DefaultInterval      = time.Second
)

var ErrClosed = errors.New("limiter closed")

type Config struct {
	MaxConcurrent int
	Interval      time.Duration
	Logger        *slog.Logger
}

type Stats struct {
	Active        int
	Queued        int
	MaxConcurrent int
	MinSpacing    time.Duration
}

type task struct {
	ctx      context.Context
	run      func(context.Context) error
	done     chan error
	deferred bool
	started  bool
	queuedAt time.Time
}

// Limiter is safe for concurrent use. The mutex is never held while a task runs.
type Limiter struct {
	mu            sync.Mutex
	queue         []*task
	active        int
	maxConcurrent int
	interval      time.Duration
	lastDispatch  time.Time
	retryPending  bool
	closed        bool
	logger        *slog.Logger

	now        func() time.Time
	afterFunc  func(time.Duration, func())
	onDispatch func(time.Time)
}

func New(cfg Config) *Limiter {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		maxConcurrent: maxConcurrent,
		interval:      interval,
		logger:        logger,
		now:           time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// MinSpacing is the minimum gap between dispatches while the limiter is saturated.
func (l *Limiter) MinSpacing() time.Duration {
	return l.interval / time.Duration(l.maxConcurrent)
}

// Do runs fn once the scheduling policy admits it and returns fn's error.
// If ctx ends while the task is still queued, the task is discarded and
// ctx.Err() is returned; a task that already started is waited for.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := &task{
		ctx:      ctx,
		run:      fn,
		done:     make(chan error, 1),
		queuedAt: l.now(),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	t.deferred = l.active >= l.maxConcurrent || len(l.queue) > 0
	l.queue = append(l.queue, t)
	l.logger.Debug("limiter task queued",
		slog.Int("active", l.active),
		slog.Int("queued", len(l.queue)),
		slog.Bool("deferred", t.deferred),
	)
	l.dispatchLocked()
	l.publishLocked()
	l.mu.Unlock()

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
	}

	l.mu.Lock()
	if !t.started && l.removeLocked(t) {
		l.publishLocked()
		l.mu.Unlock()
		return ctx.Err()
	}
	l.mu.Unlock()
	return <-t.done
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Active:        l.active,
		Queued:        len(l.queue),
		MaxConcurrent: l.maxConcurrent,
		MinSpacing:    l.MinSpacing(),
	}
}

// Close fails every queued task with ErrClosed and rejects new ones.
// Running tasks are left to finish.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for _, t := range l.queue {
		t.done <- ErrClosed
	}
	l.queue = nil
	l.publishLocked()
}

func (l *Limiter) dispatchLocked() {
	for len(l.queue) > 0 && l.active < l.maxConcurrent {
		next := l.queue[0]
		now := l.now()
		if next.deferred && !l.lastDispatch.IsZero() {
			if wait := l.MinSpacing() - now.Sub(l.lastDispatch); wait > 0 {
				l.scheduleRetryLocked(wait)
				return
			}
		}

		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.active++
		l.lastDispatch = now
		next.started = true
		metrics.LimiterWaitDuration.Observe(now.Sub(next.queuedAt).Seconds())
		if l.onDispatch != nil {
			l.onDispatch(now)
		}
		go l.execute(next)
	}
}

func (l *Limiter) scheduleRetryLocked(wait time.Duration) {
	if l.retryPending {
		return
	}
	l.retryPending = true
	l.afterFunc(wait, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.retryPending = false
		if l.closed {
			return
		}
		l.dispatchLocked()
		l.publishLocked()
	})
}

func (l *Limiter) execute(t *task) {
	startedAt := l.now()
	err := runTask(t)

	l.mu.Lock()
	l.active--
	l.logger.Debug("limiter task completed",
		slog.Int64("durationMs", l.now().Sub(startedAt).Milliseconds()),
		slog.Int("active", l.active),
		slog.Int("queued", len(l.queue)),
	)
	t.done <- err
	if !l.closed {
		l.dispatchLocked()
	}
	l.publishLocked()
	l.mu.Unlock()
}

func runTask(t *task) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("limiter task panic: %v", recovered)
		}
	}()
	return t.run(t.ctx)
}

func (l *Limiter) removeLocked(target *task) bool {
	for i, t := range l.queue {
		if t != target {
			continue
		}
		copy(l.queue[i:], l.queue[i+1:])
		l.queue[len(l.queue)-1] = nil
		l.queue = l.queue[:len(l.queue)-1]
		return true
	}
	return false
}

func (l *Limiter) publishLocked() {
	metrics.LimiterActive.Set(float64(l.active))
	metrics.LimiterQueued.Set(float64(len(l.queue)))
}
