// Scheduler abstraction for RxGo
// 调度器接口、可选的长时间运行能力、递归调度蹦床与执行上下文接口
package rxgo

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，控制任务执行时机和方式。
// 每次调度返回一个任务级的Disposable：在任务开始前释放可以阻止执行，开始后不保证。
type Scheduler interface {
	// Now 调度器的当前时间
	Now() time.Time
	// Schedule 尽快执行一次action
	Schedule(action func()) Disposable
	// ScheduleAfter 延迟delay后执行一次action
	ScheduleAfter(delay time.Duration, action func()) Disposable
}

// LongRunningScheduler is an optional capability of a Scheduler. The action
// runs on a dedicated execution unit owned by the scheduler and is expected
// to loop, polling cancel between iterations.
type LongRunningScheduler interface {
	ScheduleLongRunning(action func(cancel Cancelable)) Disposable
}

// AsLongRunning 查询调度器是否支持长时间运行调度
func AsLongRunning(scheduler Scheduler) (LongRunningScheduler, bool) {
	lr, ok := scheduler.(LongRunningScheduler)
	return lr, ok
}

// ScheduleLongRunning 以state启动长时间运行的循环
func ScheduleLongRunning[S any](scheduler LongRunningScheduler, state S, action func(state S, cancel Cancelable)) Disposable {
	return scheduler.ScheduleLongRunning(func(cancel Cancelable) {
		action(state, cancel)
	})
}

// ContextPoster 执行上下文：只支持把回调投递到某个串行上下文上执行。
// 对同一个上下文的投递按投递顺序执行。
type ContextPoster interface {
	// Post 投递回调，稍后在上下文上执行
	Post(callback func())
	// OperationStarted 通知上下文一个异步操作开始
	OperationStarted()
	// OperationCompleted 通知上下文一个异步操作结束
	OperationCompleted()
}

// ============================================================================
// 递归调度
// ============================================================================

// recursion is a trampoline for self-rescheduling actions. recurse only
// queues the next state; the goroutine that wins the wip counter hands queued
// states to the scheduler one at a time, so an inline scheduler never nests.
type recursion[S any] struct {
	scheduler Scheduler
	action    func(state S, recurse func(S))
	group     *CompositeDisposable

	mu    sync.Mutex
	queue []S
	wip   atomic.Int64
}

// ScheduleRecursive 递归调度：action收到state和recurse，调用recurse(next)调度下一轮。
// 返回的Disposable会取消所有尚未执行的轮次。
func ScheduleRecursive[S any](scheduler Scheduler, state S, action func(state S, recurse func(S))) Disposable {
	r := &recursion[S]{
		scheduler: scheduler,
		action:    action,
		group:     NewCompositeDisposable(),
	}

	r.recurse(state)
	return r.group
}

func (r *recursion[S]) recurse(state S) {
	if r.group.IsDisposed() {
		return
	}

	r.mu.Lock()
	r.queue = append(r.queue, state)
	r.mu.Unlock()

	if r.wip.Inc() != 1 {
		return
	}

	for {
		r.dispatchOne()
		if r.wip.Dec() == 0 {
			return
		}
	}
}

func (r *recursion[S]) dispatchOne() {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return
	}

	var zero S
	state := r.queue[0]
	r.queue[0] = zero
	r.queue = r.queue[1:]
	r.mu.Unlock()

	if r.group.IsDisposed() {
		return
	}

	task := NewSingleAssignmentDisposable()
	r.group.Add(task)
	task.Set(r.scheduler.Schedule(func() {
		r.group.Remove(task)
		if r.group.IsDisposed() {
			return
		}

		r.action(state, r.recurse)
	}))
}

// ============================================================================
// 调度任务
// ============================================================================

const (
	itemPending int32 = iota
	itemStarted
	itemCanceled
)

// scheduledItem is the task-scoped handle returned by the bundled schedulers.
type scheduledItem struct {
	state  atomic.Int32
	action func()
}

func newScheduledItem(action func()) *scheduledItem {
	return &scheduledItem{action: action}
}

// invoke runs the action unless the item was disposed first.
func (i *scheduledItem) invoke() {
	if !i.state.CompareAndSwap(itemPending, itemStarted) {
		return
	}

	action := i.action
	i.action = nil
	action()
}

func (i *scheduledItem) Dispose() {
	if i.state.CompareAndSwap(itemPending, itemCanceled) {
		i.action = nil
	}
}

func (i *scheduledItem) IsDisposed() bool {
	return i.state.Load() == itemCanceled
}

// delayedItem couples a scheduled item with the timer that will release it.
type delayedItem struct {
	*scheduledItem
	mu    sync.Mutex
	timer interface{ Stop() bool }
}

func (d *delayedItem) setTimer(timer interface{ Stop() bool }) {
	d.mu.Lock()
	d.timer = timer
	d.mu.Unlock()

	if d.IsDisposed() {
		timer.Stop()
	}
}

func (d *delayedItem) Dispose() {
	d.scheduledItem.Dispose()

	d.mu.Lock()
	timer := d.timer
	d.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
}

// runReported runs action and reports a panic instead of letting it kill a
// scheduler-owned goroutine.
func runReported(action func()) {
	if err := SafeExecute(action); err != nil {
		ReportError(err)
	}
}

// ============================================================================
// 默认调度器
// ============================================================================

var (
	// ImmediateScheduler 立即调度器实例
	ImmediateScheduler Scheduler = NewImmediateScheduler()

	// CurrentThreadScheduler 当前线程（蹦床）调度器实例
	CurrentThreadScheduler Scheduler = NewCurrentThreadScheduler()

	// NewThreadScheduler 新线程调度器实例
	NewThreadScheduler Scheduler = NewNewThreadScheduler()

	// DefaultScheduler 生产者未指定调度器时使用。
	// 在订阅者所在的goroutine上同步执行，Range的递归由ScheduleRecursive展平。
	// 共享的CurrentThreadScheduler队列属于整个进程，只在显式传入时使用。
	DefaultScheduler = ImmediateScheduler
)

func orDefault(scheduler Scheduler) Scheduler {
	if scheduler == nil {
		return DefaultScheduler
	}
	return scheduler
}
