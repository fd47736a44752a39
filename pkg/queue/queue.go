package queue

import (
	"context"
	"sync"

	"brutalist/pkg/logger"

	"github.com/sirupsen/logrus"
)

// Queue bounds how many report scripts run at once with a simple semaphore.
type Queue struct {
	semaphore chan struct{}
	running   int
	queued    int
	mu        sync.Mutex
	logger    *logger.Logger
}

func New(maxConcurrent int) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	q := &Queue{
		semaphore: make(chan struct{}, maxConcurrent),
		logger:    logger.NewLogger(logrus.InfoLevel),
	}
	q.logger.WithFields(logger.Fields{
		"max_concurrent": maxConcurrent,
	}).Info("Report queue initialized")
	return q
}

// Execute blocks until a slot is free, then runs fn. It gives up waiting
// when ctx is done.
func (q *Queue) Execute(ctx context.Context, fn func() error) error {
	q.mu.Lock()
	q.queued++
	currentQueued := q.queued
	currentRunning := q.running
	q.mu.Unlock()

	q.logger.WithFields(logger.Fields{
		"queued":  currentQueued,
		"running": currentRunning,
		"slots":   cap(q.semaphore),
	}).Debug("Report added to queue")

	select {
	case q.semaphore <- struct{}{}:
	case <-ctx.Done():
		q.mu.Lock()
		q.queued--
		q.mu.Unlock()
		return ctx.Err()
	}

	q.mu.Lock()
	q.queued--
	q.running++
	finalQueued := q.queued
	finalRunning := q.running
	q.mu.Unlock()

	q.logger.WithFields(logger.Fields{
		"running": finalRunning,
		"queued":  finalQueued,
	}).Debug("Report execution started")

	defer func() {
		<-q.semaphore
		q.mu.Lock()
		q.running--
		remainingRunning := q.running
		remainingQueued := q.queued
		q.mu.Unlock()

		q.logger.WithFields(logger.Fields{
			"running": remainingRunning,
			"queued":  remainingQueued,
		}).Debug("Report execution completed, slot released")
	}()

	return fn()
}

// Status returns current queue occupancy
func (q *Queue) Status() (running, queued, maxConcurrent int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running, q.queued, cap(q.semaphore)
}
