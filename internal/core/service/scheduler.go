package service

import (
	"container/heap"
	"context"
	"stockrelay/internal/core/port"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

type task struct {
	due      time.Time
	seq      uint64
	job      port.Job
	canceled atomic.Bool
}

func (t *task) Cancel() {
	t.canceled.Store(true)
}

func (t *task) Canceled() bool {
	return t.canceled.Load()
}

// taskQueue orders tasks by due time, then by insertion order.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*task)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// Scheduler runs one-shot jobs on a single goroutine once they are due. Recurring work reschedules itself from
// within its job.
type Scheduler struct {
	mutex *sync.Mutex
	queue taskQueue
	seq   uint64
	wake  chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		mutex: &sync.Mutex{},
		wake:  make(chan struct{}, 1),
	}
}

func (s *Scheduler) ScheduleAfter(delay time.Duration, job port.Job) port.Task {
	t := &task{due: time.Now().Add(delay), job: job}

	s.mutex.Lock()
	s.seq++
	t.seq = s.seq
	heap.Push(&s.queue, t)
	s.mutex.Unlock()

	log.Debug().Dur("delay", delay).Uint64("task", t.seq).Msg("scheduled task")

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return t
}

// Len returns the number of queued tasks, canceled ones included until they are discarded.
func (s *Scheduler) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.queue.Len()
}

// Run blocks, firing due tasks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	log.Debug().Msg("starting scheduler")

	for {
		due, wait := s.next()
		if due != nil {
			s.fire(ctx, due)
			continue
		}

		var timer *time.Timer
		var fired <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			fired = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Debug().Msg("stopping scheduler")
			return
		case <-s.wake:
		case <-fired:
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// next pops the head task if it is due. Otherwise it returns how long to wait for it, or -1 if the queue is empty.
func (s *Scheduler) next() (*task, time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for s.queue.Len() > 0 && s.queue[0].Canceled() {
		heap.Pop(&s.queue)
	}

	if s.queue.Len() == 0 {
		return nil, -1
	}

	wait := time.Until(s.queue[0].due)
	if wait > 0 {
		return nil, wait
	}

	return heap.Pop(&s.queue).(*task), 0
}

func (s *Scheduler) fire(ctx context.Context, t *task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint64("task", t.seq).Msg("scheduled task panicked")
		}
	}()

	if ctx.Err() != nil {
		return
	}

	t.job(ctx)
}
