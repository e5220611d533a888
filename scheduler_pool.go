// Pool scheduler for RxGo
// 基于调度段（Segment）的有界工作池调度器
package rxgo

import (
	"context"
	"sync"
	"time"

	"github.com/puppetlabs/leg/scheduler"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"k8s.io/utils/clock"
)

// PoolScheduler runs scheduled work on a bounded pool of goroutines managed by
// a scheduler segment. Work submitted while every worker is busy waits in the
// segment's adhoc queue. Long-running work gets its own goroutine so it never
// pins a pool worker; the pool still owns that goroutine and Close cancels and
// waits for it.
type PoolScheduler struct {
	name      string
	clock     clock.WithDelayedExecution
	submitter *scheduler.AdhocSubmitter
	lifecycle scheduler.StartedLifecycle
	closed    atomic.Bool

	mu          sync.Mutex
	longRunning CompositeDisposable
	loops       sync.WaitGroup
}

var _ LongRunningScheduler = &PoolScheduler{}

// NewPoolScheduler creates and starts a pool of Config.Concurrency workers.
// The pool runs until Close is called.
func NewPoolScheduler(options ...Option) *PoolScheduler {
	config := newConfig(options)
	if config.Name == "" {
		config.Name = "pool"
	}

	desc, submitter := scheduler.NewAdhocDescriptor()
	segment := scheduler.NewSegment(config.Concurrency, []scheduler.Descriptor{desc}).
		WithProcessErrorBehavior(scheduler.ErrorBehaviorDrop)

	log(context.Background()).Debug("starting pool scheduler", "name", config.Name, "concurrency", config.Concurrency)

	return &PoolScheduler{
		name:      config.Name,
		clock:     config.Clock,
		submitter: submitter,
		lifecycle: segment.Start(scheduler.LifecycleStartOptions{}),
	}
}

// Now 调度器时钟的当前时间
func (p *PoolScheduler) Now() time.Time {
	return p.clock.Now()
}

// Schedule 把任务提交到工作池
func (p *PoolScheduler) Schedule(action func()) Disposable {
	item := newScheduledItem(action)
	p.submit(item)
	return item
}

// ScheduleAfter 到期后把任务提交到工作池
func (p *PoolScheduler) ScheduleAfter(delay time.Duration, action func()) Disposable {
	if delay <= 0 {
		return p.Schedule(action)
	}

	item := &delayedItem{scheduledItem: newScheduledItem(action)}
	item.setTimer(p.clock.AfterFunc(delay, func() {
		p.submit(item.scheduledItem)
	}))
	return item
}

// ScheduleLongRunning 在工作池之外的专属goroutine中运行循环，Close时取消并等待其退出
func (p *PoolScheduler) ScheduleLongRunning(action func(cancel Cancelable)) Disposable {
	cancel := NewBooleanDisposable()

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		ReportError(ErrSchedulerClosed)
		cancel.Dispose()
		return cancel
	}

	p.longRunning.Add(cancel)
	p.loops.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.loops.Done()
		defer p.longRunning.Remove(cancel)

		runReported(func() {
			action(cancel)
		})
	}()
	return cancel
}

func (p *PoolScheduler) submit(item *scheduledItem) {
	if p.closed.Load() {
		item.Dispose()
		ReportError(ErrSchedulerClosed)
		return
	}

	p.submitter.Submit(scheduler.DescribeProcessFunc(p.name, func(ctx context.Context) error {
		if err := SafeExecute(item.invoke); err != nil {
			log(ctx).Error("scheduled task panicked", "scheduler", p.name, "error", err)
			ReportError(err)
		}
		return nil
	}))
}

// Close stops accepting work, asks the segment to terminate and waits for
// running tasks to return. Work still queued is dropped. Long-running loops
// see their cancel flag set and Close waits until they return.
func (p *PoolScheduler) Close() error {
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.longRunning.Dispose()

	p.lifecycle.Close()
	<-p.lifecycle.Done()
	p.loops.Wait()

	log(context.Background()).Debug("pool scheduler closed", "name", p.name)

	return multierr.Combine(p.lifecycle.Errs()...)
}
