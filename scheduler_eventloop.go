// Event loop for RxGo
// 单goroutine事件循环：既是调度器也是执行上下文
package rxgo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puppetlabs/leg/logging"
	"k8s.io/utils/clock"
)

// EventLoop is a single dedicated goroutine draining a FIFO queue. It serves
// both as a Scheduler and as a ContextPoster: callbacks run one at a time in
// the order they were posted.
//
// The loop also counts outstanding operations (OperationStarted and
// OperationCompleted) so a host can wait until every relocated sequence has
// been fully observed.
type EventLoop struct {
	id    string
	clock clock.WithDelayedExecution
	ctx   context.Context

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []*scheduledItem
	running     bool
	closed      bool
	outstanding int

	done chan struct{}
}

var (
	_ Scheduler     = &EventLoop{}
	_ ContextPoster = &EventLoop{}
)

// NewEventLoop starts a new loop goroutine.
func NewEventLoop(options ...Option) *EventLoop {
	config := newConfig(options)

	id := config.Name
	if id == "" {
		id = uuid.NewString()
	}

	l := &EventLoop{
		id:    id,
		clock: config.Clock,
		ctx:   logging.NewContext(context.Background(), "loop", id),
		done:  make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)

	go l.run()
	return l
}

// ID identifies the loop in logs.
func (l *EventLoop) ID() string {
	return l.id
}

// Now 事件循环时钟的当前时间
func (l *EventLoop) Now() time.Time {
	return l.clock.Now()
}

// Schedule 把任务排到队列末尾
func (l *EventLoop) Schedule(action func()) Disposable {
	item := newScheduledItem(action)
	l.enqueue(item)
	return item
}

// ScheduleAfter 到期后把任务排到队列末尾
func (l *EventLoop) ScheduleAfter(delay time.Duration, action func()) Disposable {
	if delay <= 0 {
		return l.Schedule(action)
	}

	item := &delayedItem{scheduledItem: newScheduledItem(action)}
	item.setTimer(l.clock.AfterFunc(delay, func() {
		l.enqueue(item.scheduledItem)
	}))
	return item
}

// Post queues callback behind everything already posted.
func (l *EventLoop) Post(callback func()) {
	l.enqueue(newScheduledItem(callback))
}

// OperationStarted 记录一个未完成的操作
func (l *EventLoop) OperationStarted() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.outstanding++
}

// OperationCompleted 结束一个未完成的操作并唤醒WaitIdle
func (l *EventLoop) OperationCompleted() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.outstanding > 0 {
		l.outstanding--
	}
	l.cond.Broadcast()
}

// Outstanding returns the number of started but not yet completed operations.
func (l *EventLoop) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.outstanding
}

func (l *EventLoop) idle() bool {
	return l.outstanding == 0 && len(l.queue) == 0 && !l.running
}

// WaitIdle blocks until there are no outstanding operations, no queued
// callbacks and no callback running, or until ctx is done. It must not be
// called from the loop goroutine.
func (l *EventLoop) WaitIdle(ctx context.Context) error {
	doneCh := make(chan struct{})
	defer close(doneCh)

	go func() {
		select {
		case <-doneCh:
		case <-ctx.Done():
			l.mu.Lock()
			defer l.mu.Unlock()

			l.cond.Broadcast()
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	for !l.idle() {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.cond.Wait()
	}

	return nil
}

// Close stops the loop once the callbacks already queued have run. Posting
// after Close reports ErrSchedulerClosed and drops the callback.
func (l *EventLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.cond.Broadcast()
}

// Done closes when the loop goroutine has exited.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

func (l *EventLoop) enqueue(item *scheduledItem) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		item.Dispose()
		ReportError(ErrSchedulerClosed)
		return
	}

	l.queue = append(l.queue, item)
	l.cond.Broadcast()
	l.mu.Unlock()
}

func (l *EventLoop) next() (*scheduledItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.running = false
	for len(l.queue) == 0 {
		l.cond.Broadcast()
		if l.closed {
			return nil, false
		}

		l.cond.Wait()
	}

	item := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.running = true

	return item, true
}

func (l *EventLoop) run() {
	defer close(l.done)

	log(l.ctx).Debug("event loop started")
	defer log(l.ctx).Debug("event loop stopped")

	for {
		item, ok := l.next()
		if !ok {
			return
		}

		if err := SafeExecute(item.invoke); err != nil {
			log(l.ctx).Error("event loop callback panicked", "error", err)
			ReportError(err)
		}
	}
}
