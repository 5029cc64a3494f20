// Package timer runs callbacks at absolute times from a single min-heap.
package timer

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var ErrManagerStopped = errors.New("timer manager is stopped")

// idleWait bounds how long the scheduler sleeps with an empty heap
const idleWait = time.Hour

// Task is a callback due at ExpiryAt
type Task struct {
	ID       string
	ExpiryAt time.Time
	Callback func()
	index    int
}

// taskHeap orders tasks by ExpiryAt, earliest first
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].ExpiryAt.Before(h[j].ExpiryAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[:n-1]
	return task
}

// TimerManager schedules tasks by id. Due tasks are handed to a fixed pool of
// workers, so a slow callback never delays the scheduler.
type TimerManager struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*Task
	wakeup  chan struct{}
	due     chan *Task
	workers int
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	executed atomic.Int64
	logger   *zap.Logger
}

// NewTimerManager creates a manager; Start must be called before tasks fire
func NewTimerManager(workers int, logger *zap.Logger) *TimerManager {
	if workers <= 0 {
		workers = 1
	}
	tm := &TimerManager{
		heap:    make(taskHeap, 0),
		tasks:   make(map[string]*Task),
		wakeup:  make(chan struct{}, 1),
		due:     make(chan *Task, workers),
		workers: workers,
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
	heap.Init(&tm.heap)
	return tm
}

// Start launches the scheduler and its workers
func (tm *TimerManager) Start() {
	for i := 0; i < tm.workers; i++ {
		tm.wg.Add(1)
		go tm.worker()
	}
	tm.wg.Add(1)
	go tm.run()
}

// Stop discards pending tasks and waits for running callbacks to return
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	tm.stopped = true
	close(tm.stopCh)
	tm.mu.Unlock()

	tm.wg.Wait()
}

// Schedule registers callback to run at expiryAt, replacing any task with
// the same id
func (tm *TimerManager) Schedule(id string, expiryAt time.Time, callback func()) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return ErrManagerStopped
	}

	if existing, ok := tm.tasks[id]; ok {
		heap.Remove(&tm.heap, existing.index)
	}

	task := &Task{ID: id, ExpiryAt: expiryAt, Callback: callback}
	heap.Push(&tm.heap, task)
	tm.tasks[id] = task

	if tm.heap[0] == task {
		select {
		case tm.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a pending task and reports whether it existed
func (tm *TimerManager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}
	heap.Remove(&tm.heap, task.index)
	delete(tm.tasks, id)
	return true
}

// Pending reports whether id is scheduled and has not fired yet
func (tm *TimerManager) Pending(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, ok := tm.tasks[id]
	return ok
}

func (tm *TimerManager) run() {
	defer tm.wg.Done()

	for {
		tm.mu.Lock()
		wait := idleWait
		var ready *Task
		if tm.heap.Len() > 0 {
			wait = time.Until(tm.heap[0].ExpiryAt)
			if wait <= 0 {
				ready = heap.Pop(&tm.heap).(*Task)
				delete(tm.tasks, ready.ID)
			}
		}
		tm.mu.Unlock()

		if ready != nil {
			select {
			case tm.due <- ready:
			case <-tm.stopCh:
				return
			}
			continue
		}

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-tm.wakeup:
			t.Stop()
		case <-tm.stopCh:
			t.Stop()
			return
		}
	}
}

func (tm *TimerManager) worker() {
	defer tm.wg.Done()
	for {
		select {
		case task := <-tm.due:
			tm.execute(task)
		case <-tm.stopCh:
			return
		}
	}
}

func (tm *TimerManager) execute(task *Task) {
	defer func() {
		if r := recover(); r != nil {
			tm.logger.Error("Timer task panicked", zap.String("task_id", task.ID), zap.Any("panic", r))
		}
	}()
	task.Callback()
	tm.executed.Add(1)
}

// TimerStats is a snapshot of the manager
type TimerStats struct {
	ScheduledTasks int
	ExecutedTasks  int64
	Workers        int
}

func (tm *TimerManager) Stats() TimerStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return TimerStats{
		ScheduledTasks: len(tm.tasks),
		ExecutedTasks:  tm.executed.Load(),
		Workers:        tm.workers,
	}
}
