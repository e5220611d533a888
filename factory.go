// Factory functions for RxGo
// 由调度器驱动的生产者：Return、Throw、Range、Empty、Never
package rxgo

import (
	"math"

	"github.com/pkg/errors"
)

// ============================================================================
// Return
// ============================================================================

type returnProducer[T any] struct {
	value     T
	scheduler Scheduler
}

type returnSink[T any] struct {
	Sink[T]
	parent *returnProducer[T]
}

// Return 在scheduler上发射value然后完成
func Return[T any](value T, scheduler Scheduler) Observable[T] {
	return NewProducer[T](&returnProducer[T]{value: value, scheduler: orDefault(scheduler)})
}

func (p *returnProducer[T]) Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
	sink := &returnSink[T]{parent: p}
	sink.Init(observer, cancel)
	setSink(sink)

	return p.scheduler.Schedule(sink.invoke)
}

func (s *returnSink[T]) invoke() {
	s.ForwardOnNext(s.parent.value)
	s.ForwardOnCompleted()
}

// ============================================================================
// Throw
// ============================================================================

type throwProducer[T any] struct {
	err       error
	scheduler Scheduler
}

type throwSink[T any] struct {
	Sink[T]
	parent *throwProducer[T]
}

// Throw 在scheduler上发射错误，不发射任何值
func Throw[T any](err error, scheduler Scheduler) Observable[T] {
	return NewProducer[T](&throwProducer[T]{err: err, scheduler: orDefault(scheduler)})
}

func (p *throwProducer[T]) Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
	sink := &throwSink[T]{parent: p}
	sink.Init(observer, cancel)
	setSink(sink)

	return p.scheduler.Schedule(sink.invoke)
}

func (s *throwSink[T]) invoke() {
	s.ForwardOnError(s.parent.err)
}

// ============================================================================
// Empty / Never
// ============================================================================

type emptyProducer[T any] struct {
	scheduler Scheduler
}

type emptySink[T any] struct {
	Sink[T]
}

// EmptyObservable 在scheduler上直接完成
func EmptyObservable[T any](scheduler Scheduler) Observable[T] {
	return NewProducer[T](&emptyProducer[T]{scheduler: orDefault(scheduler)})
}

func (p *emptyProducer[T]) Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
	sink := &emptySink[T]{}
	sink.Init(observer, cancel)
	setSink(sink)

	return p.scheduler.Schedule(sink.ForwardOnCompleted)
}

// Never 创建一个永不发射任何通知的Observable
func Never[T any]() Observable[T] {
	return ObservableFunc[T](func(observer Observer[T]) Disposable {
		if observer == nil {
			panic(ErrNilObserver)
		}
		return Empty()
	})
}

// ============================================================================
// Range
// ============================================================================

type rangeProducer struct {
	start     int
	count     int
	scheduler Scheduler
}

type rangeSink struct {
	Sink[int]
	parent *rangeProducer
}

// Range 发射start, start+1, ..., start+count-1然后完成。
// 调度器支持长时间运行调度时使用专属循环，否则每个值递归调度一次。
// count为0时在调度器上完成而不发射值；count为负数或越界时在调度器上发射ErrInvalidCount。
func Range(start, count int, scheduler Scheduler) Observable[int] {
	scheduler = orDefault(scheduler)

	if count < 0 || (count > 0 && start > math.MaxInt-(count-1)) {
		return Throw[int](errors.Wrapf(ErrInvalidCount, "range(%d, %d)", start, count), scheduler)
	}

	return NewProducer[int](&rangeProducer{start: start, count: count, scheduler: scheduler})
}

func (p *rangeProducer) Run(observer Observer[int], cancel Disposable, setSink func(Disposable)) Disposable {
	sink := &rangeSink{parent: p}
	sink.Init(observer, cancel)
	setSink(sink)

	return sink.run()
}

func (s *rangeSink) run() Disposable {
	if lr, ok := AsLongRunning(s.parent.scheduler); ok {
		return ScheduleLongRunning(lr, 0, s.loop)
	}

	return ScheduleRecursive(s.parent.scheduler, 0, s.loopRec)
}

func (s *rangeSink) loop(i int, cancel Cancelable) {
	for !cancel.IsDisposed() && i < s.parent.count {
		s.ForwardOnNext(s.parent.start + i)
		i++
	}

	if !cancel.IsDisposed() {
		s.ForwardOnCompleted()
	}

	s.Dispose()
}

func (s *rangeSink) loopRec(i int, recurse func(int)) {
	if s.IsDisposed() {
		return
	}

	if i < s.parent.count {
		s.ForwardOnNext(s.parent.start + i)
		recurse(i + 1)
		return
	}

	s.ForwardOnCompleted()
}
