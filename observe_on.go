// ObserveOn operator for RxGo
// 把通知从生产者所在的上下文迁移到目标调度器或执行上下文，保持顺序且终止通知只投递一次
package rxgo

import (
	"sync"

	"go.uber.org/atomic"
)

// observeOn holds exactly one target: a scheduler or a context poster.
type observeOn[T any] struct {
	source    Observable[T]
	scheduler Scheduler
	context   ContextPoster
}

// ObserveOn 在scheduler上向观察者投递通知
func ObserveOn[T any](source Observable[T], scheduler Scheduler) Observable[T] {
	if scheduler == nil {
		panic(ErrNilScheduler)
	}

	return NewProducer[T](&observeOn[T]{source: source, scheduler: scheduler})
}

// ObserveOnContext 把通知投递到执行上下文上。
// 订阅时通知上下文操作开始，订阅被释放（终止或外部释放）时通知操作结束。
func ObserveOnContext[T any](source Observable[T], context ContextPoster) Observable[T] {
	if context == nil {
		panic(ErrNilContext)
	}

	return NewProducer[T](&observeOn[T]{source: source, context: context})
}

func (o *observeOn[T]) Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
	if o.context != nil {
		sink := &observeOnContextSink[T]{context: o.context}
		sink.Init(observer, cancel)
		setSink(sink)

		return sink.run(o.source)
	}

	sink := &observeOnSchedulerSink[T]{scheduler: o.scheduler}
	sink.Init(observer, cancel)
	setSink(sink)

	return o.source.Subscribe(sink)
}

// ============================================================================
// 执行上下文模式
// ============================================================================

type observeOnContextSink[T any] struct {
	Sink[T]
	context ContextPoster
	stopped atomic.Bool
}

func (s *observeOnContextSink[T]) run(source Observable[T]) Disposable {
	s.context.OperationStarted()

	d := source.Subscribe(s)
	c := NewDisposable(s.context.OperationCompleted)

	return NewStableCompositeDisposable(d, c)
}

func (s *observeOnContextSink[T]) OnNext(value T) {
	if s.stopped.Load() || s.IsDisposed() {
		return
	}

	s.context.Post(func() {
		s.ForwardOnNext(value)
	})
}

func (s *observeOnContextSink[T]) OnError(err error) {
	if s.stopped.Swap(true) || s.IsDisposed() {
		return
	}

	s.context.Post(func() {
		s.ForwardOnError(err)
	})
}

func (s *observeOnContextSink[T]) OnCompleted() {
	if s.stopped.Swap(true) || s.IsDisposed() {
		return
	}

	s.context.Post(s.ForwardOnCompleted)
}

// ============================================================================
// 调度器模式
// ============================================================================

// observeOnSchedulerSink queues notifications and keeps at most one drain
// task scheduled at a time, so delivery stays ordered and serial even on a
// scheduler that runs tasks in parallel.
type observeOnSchedulerSink[T any] struct {
	Sink[T]
	scheduler Scheduler
	stopped   atomic.Bool

	mu    sync.Mutex
	queue []Notification[T]
	wip   atomic.Int64
	task  SerialDisposable
}

func (s *observeOnSchedulerSink[T]) OnNext(value T) {
	if s.stopped.Load() {
		return
	}

	s.enqueue(CreateNotification(value))
}

func (s *observeOnSchedulerSink[T]) OnError(err error) {
	if s.stopped.Swap(true) {
		return
	}

	s.enqueue(CreateErrorNotification[T](err))
}

func (s *observeOnSchedulerSink[T]) OnCompleted() {
	if s.stopped.Swap(true) {
		return
	}

	s.enqueue(CreateCompletedNotification[T]())
}

// Dispose also cancels a drain that has been scheduled but not started.
func (s *observeOnSchedulerSink[T]) Dispose() {
	s.Sink.Dispose()
	s.task.Dispose()
}

func (s *observeOnSchedulerSink[T]) enqueue(n Notification[T]) {
	if s.IsDisposed() {
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()

	if s.wip.Inc() == 1 {
		s.task.Set(s.scheduler.Schedule(s.drain))
	}
}

func (s *observeOnSchedulerSink[T]) poll() (Notification[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return Notification[T]{}, false
	}

	n := s.queue[0]
	s.queue[0] = Notification[T]{}
	s.queue = s.queue[1:]
	return n, true
}

func (s *observeOnSchedulerSink[T]) clear() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

func (s *observeOnSchedulerSink[T]) drain() {
	missed := int64(1)
	for {
		for {
			if s.IsDisposed() {
				s.clear()
				return
			}

			n, ok := s.poll()
			if !ok {
				break
			}

			switch n.Kind {
			case KindOnNext:
				s.ForwardOnNext(n.Value)
			case KindOnError:
				s.ForwardOnError(n.Error)
			case KindOnCompleted:
				s.ForwardOnCompleted()
			}
		}

		missed = s.wip.Sub(missed)
		if missed == 0 {
			return
		}
	}
}
