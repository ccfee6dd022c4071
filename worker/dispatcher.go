package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultQueueLimit bounds how many events a single user may have pending.
const DefaultQueueLimit = 32

var (
	// ErrStopped means the dispatcher is not accepting tasks.
	ErrStopped = errors.New("dispatcher is not running")
	// ErrQueueFull means the user already has the maximum number of pending tasks.
	ErrQueueFull = errors.New("user queue is full")
)

// Task is one unit of work for a user.
type Task func(ctx context.Context)

// Dispatcher runs tasks in submission order per user. Each user with pending
// work gets one drain goroutine that exits once the queue is empty, so tasks of
// different users run in parallel and tasks of one user never overlap.
type Dispatcher struct {
	log        zerolog.Logger
	queueLimit int

	mu        sync.Mutex
	queues    map[int64][]Task
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Log        zerolog.Logger
	QueueLimit int // per user; DefaultQueueLimit when zero
}

// NewDispatcher creates a stopped dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	limit := config.QueueLimit
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	return &Dispatcher{
		log:        config.Log.With().Str("component", "dispatcher").Logger(),
		queueLimit: limit,
		queues:     make(map[int64][]Task),
	}
}

// Start begins accepting tasks. ctx is passed to every task; cancelling it
// aborts in-flight work.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.isRunning = true
	d.log.Info().Int("queue_limit", d.queueLimit).Msg("Dispatcher started")
}

// Stop rejects new tasks and waits until every queued task has run.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return
	}
	d.isRunning = false
	d.mu.Unlock()

	d.log.Info().Msg("Stopping dispatcher...")
	d.wg.Wait()
	d.cancel()
	d.log.Info().Msg("Dispatcher stopped")
}

// Submit queues task for userID. It returns ErrStopped when the dispatcher is
// not running and ErrQueueFull when the user's queue is at its limit.
func (d *Dispatcher) Submit(userID int64, task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return ErrStopped
	}
	queue, active := d.queues[userID]
	if len(queue) >= d.queueLimit {
		d.log.Warn().Int64("user_id", userID).Int("pending", len(queue)).Msg("User queue full, dropping event")
		return ErrQueueFull
	}
	d.queues[userID] = append(queue, task)
	if !active {
		d.wg.Add(1)
		go d.drain(userID)
	}
	return nil
}

// Active returns the number of users with pending or running tasks.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// drain runs userID's tasks until the queue is empty. The queue entry stays in
// the map while its head is running, which marks the user as active.
func (d *Dispatcher) drain(userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		task := queue[0]
		ctx := d.ctx
		d.mu.Unlock()

		d.run(ctx, userID, task)

		d.mu.Lock()
		d.queues[userID] = d.queues[userID][1:]
		d.mu.Unlock()
	}
}

func (d *Dispatcher) run(ctx context.Context, userID int64, task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Int64("user_id", userID).Interface("panic", r).Msg("Task panicked")
		}
	}()
	task(ctx)
}
