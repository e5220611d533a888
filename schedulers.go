// Scheduler implementations for RxGo
// 实现调度器系统，支持不同的执行策略
package rxgo

import (
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在当前goroutine中执行任务
type immediateScheduler struct {
	clock clock.WithDelayedExecution
}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler(options ...Option) Scheduler {
	config := newConfig(options)
	return &immediateScheduler{clock: config.Clock}
}

// Now 调度器时钟的当前时间
func (s *immediateScheduler) Now() time.Time {
	return s.clock.Now()
}

// Schedule 立即执行任务
func (s *immediateScheduler) Schedule(action func()) Disposable {
	action()
	return Empty()
}

// ScheduleAfter 在当前goroutine上等待delay后执行任务
func (s *immediateScheduler) ScheduleAfter(delay time.Duration, action func()) Disposable {
	if delay > 0 {
		s.clock.Sleep(delay)
	}

	action()
	return Empty()
}

// ============================================================================
// 当前线程调度器 - Current Thread Scheduler
// ============================================================================

// currentThreadScheduler runs work on the goroutine that schedules while the
// scheduler is idle. Work scheduled while a task is running is queued and run
// by that same drain loop after the task returns, which keeps recursive
// scheduling flat.
type currentThreadScheduler struct {
	clock      clock.WithDelayedExecution
	mu         sync.Mutex
	queue      []*scheduledItem
	processing bool
}

// NewCurrentThreadScheduler 创建当前线程调度器
func NewCurrentThreadScheduler(options ...Option) Scheduler {
	config := newConfig(options)
	return &currentThreadScheduler{clock: config.Clock}
}

// Now 调度器时钟的当前时间
func (s *currentThreadScheduler) Now() time.Time {
	return s.clock.Now()
}

// Schedule 在当前线程中调度任务
func (s *currentThreadScheduler) Schedule(action func()) Disposable {
	item := newScheduledItem(action)
	s.enqueue(item)
	return item
}

// ScheduleAfter 延迟调度任务，到期后由计时器goroutine进入队列
func (s *currentThreadScheduler) ScheduleAfter(delay time.Duration, action func()) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}

	item := &delayedItem{scheduledItem: newScheduledItem(action)}
	item.setTimer(s.clock.AfterFunc(delay, func() {
		s.enqueue(item.scheduledItem)
	}))
	return item
}

func (s *currentThreadScheduler) enqueue(item *scheduledItem) {
	s.mu.Lock()
	s.queue = append(s.queue, item)
	if s.processing {
		s.mu.Unlock()
		return
	}
	s.processing = true
	s.mu.Unlock()

	s.processQueue()
}

// processQueue 处理队列中的任务
func (s *currentThreadScheduler) processQueue() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.processing = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}

		item := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		item.invoke()
	}
}

// ============================================================================
// 新线程调度器 - New Thread Scheduler
// ============================================================================

// newThreadScheduler 为每个任务创建新的goroutine
type newThreadScheduler struct {
	clock clock.WithDelayedExecution
}

// NewNewThreadScheduler 创建新线程调度器
func NewNewThreadScheduler(options ...Option) Scheduler {
	config := newConfig(options)
	return &newThreadScheduler{clock: config.Clock}
}

// Now 调度器时钟的当前时间
func (s *newThreadScheduler) Now() time.Time {
	return s.clock.Now()
}

// Schedule 在新goroutine中执行任务
func (s *newThreadScheduler) Schedule(action func()) Disposable {
	item := newScheduledItem(action)
	go runReported(item.invoke)
	return item
}

// ScheduleAfter 延迟在新goroutine中执行任务
func (s *newThreadScheduler) ScheduleAfter(delay time.Duration, action func()) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}

	item := &delayedItem{scheduledItem: newScheduledItem(action)}
	item.setTimer(s.clock.AfterFunc(delay, func() {
		go runReported(item.invoke)
	}))
	return item
}

// ScheduleLongRunning 在专属goroutine中运行循环
func (s *newThreadScheduler) ScheduleLongRunning(action func(cancel Cancelable)) Disposable {
	cancel := NewBooleanDisposable()
	go runReported(func() {
		action(cancel)
	})
	return cancel
}

// ============================================================================
// 上下文调度器 - Context Scheduler
// ============================================================================

// contextScheduler 把任务投递到ContextPoster上执行
type contextScheduler struct {
	poster ContextPoster
	clock  clock.WithDelayedExecution
}

// NewContextScheduler 创建把任务投递到执行上下文的调度器
func NewContextScheduler(poster ContextPoster, options ...Option) Scheduler {
	if poster == nil {
		panic(ErrNilContext)
	}

	config := newConfig(options)
	return &contextScheduler{poster: poster, clock: config.Clock}
}

// Now 调度器时钟的当前时间
func (s *contextScheduler) Now() time.Time {
	return s.clock.Now()
}

// Schedule 投递任务
func (s *contextScheduler) Schedule(action func()) Disposable {
	item := newScheduledItem(action)
	s.poster.Post(item.invoke)
	return item
}

// ScheduleAfter 到期后投递任务
func (s *contextScheduler) ScheduleAfter(delay time.Duration, action func()) Disposable {
	if delay <= 0 {
		return s.Schedule(action)
	}

	item := &delayedItem{scheduledItem: newScheduledItem(action)}
	item.setTimer(s.clock.AfterFunc(delay, func() {
		s.poster.Post(item.invoke)
	}))
	return item
}

// ============================================================================
// 虚拟时间调度器 - Virtual Time Scheduler
// ============================================================================

// VirtualTimeScheduler 用于测试的调度器，可以手动控制时间。
// 任务只在AdvanceBy/AdvanceTo/Start被调用时、在调用者的goroutine上执行。
type VirtualTimeScheduler struct {
	mu    sync.Mutex
	clock time.Time
	seq   int64
	queue []virtualItem
}

// virtualItem 调度的动作
type virtualItem struct {
	due  time.Time
	seq  int64
	item *scheduledItem
}

// NewVirtualTimeScheduler 创建虚拟时间调度器，时钟从start开始
func NewVirtualTimeScheduler(start time.Time) *VirtualTimeScheduler {
	return &VirtualTimeScheduler{clock: start}
}

// Now 当前虚拟时间
func (s *VirtualTimeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// Schedule 在当前虚拟时间调度任务
func (s *VirtualTimeScheduler) Schedule(action func()) Disposable {
	return s.ScheduleAfter(0, action)
}

// ScheduleAfter 在当前虚拟时间之后delay调度任务
func (s *VirtualTimeScheduler) ScheduleAfter(delay time.Duration, action func()) Disposable {
	if delay < 0 {
		delay = 0
	}

	item := newScheduledItem(action)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	next := virtualItem{due: s.clock.Add(delay), seq: s.seq, item: item}

	// 插入到正确的位置以保持时间顺序，同一时刻按调度顺序
	i := sort.Search(len(s.queue), func(i int) bool {
		return s.queue[i].due.After(next.due)
	})
	s.queue = append(s.queue, virtualItem{})
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = next

	return item
}

// AdvanceBy 推进时间
func (s *VirtualTimeScheduler) AdvanceBy(duration time.Duration) {
	s.AdvanceTo(s.Now().Add(duration))
}

// AdvanceTo 推进时间到指定时刻，执行所有到期的任务
func (s *VirtualTimeScheduler) AdvanceTo(t time.Time) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].due.After(t) {
			if t.After(s.clock) {
				s.clock = t
			}
			s.mu.Unlock()
			return
		}

		next := s.queue[0]
		s.queue[0] = virtualItem{}
		s.queue = s.queue[1:]
		if next.due.After(s.clock) {
			s.clock = next.due
		}

		// 解锁以允许action执行时调度新任务
		s.mu.Unlock()
		next.item.invoke()
	}
}

// Start 执行所有任务直到队列为空
func (s *VirtualTimeScheduler) Start() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		due := s.queue[0].due
		s.mu.Unlock()

		s.AdvanceTo(due)
	}
}

// Pending 尚未执行（包括已取消但未出队）的任务数
func (s *VirtualTimeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
