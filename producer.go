// Producer/Sink template for RxGo
// 所有具体操作符共用的Producer/Sink模板
package rxgo

import (
	"go.uber.org/atomic"
)

// ============================================================================
// Producer
// ============================================================================

// Runner is the single contract method of a concrete operator. Run must
// build exactly one sink around observer and cancel, pass it to setSink
// before doing anything that can notify the observer, and return a
// disposable that tears down the sink's work and any upstream subscription.
type Runner[T any] interface {
	Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable
}

// RunnerFunc 函数形式的Runner
type RunnerFunc[T any] func(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable

// Run 调用函数本身
func (f RunnerFunc[T]) Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
	return f(observer, cancel, setSink)
}

// Producer 把Runner包装为Observable
type Producer[T any] struct {
	runner Runner[T]
}

var _ Observable[int] = &Producer[int]{}

// NewProducer 创建Producer
func NewProducer[T any](runner Runner[T]) *Producer[T] {
	return &Producer[T]{runner: runner}
}

// Subscribe 订阅观察者。
// 返回的Disposable由两个槽组成：sink槽在Run发出任何通知前被赋值，
// subscription槽在Run返回后被赋值；释放时二者都会被释放，即使Run尚未返回。
func (p *Producer[T]) Subscribe(observer Observer[T]) Disposable {
	if observer == nil {
		panic(ErrNilObserver)
	}

	sink := NewSingleAssignmentDisposable()
	subscription := NewSingleAssignmentDisposable()
	d := NewStableCompositeDisposable(sink, subscription)

	if s, ok := observer.(Subscriber); ok {
		s.OnSubscribe(d)
	}

	subscription.Set(p.runner.Run(observer, subscription, sink.Set))
	return d
}

// ============================================================================
// Sink
// ============================================================================

type observerSlot[T any] struct {
	observer Observer[T]
}

// Sink is embedded by every per-subscription operator state. It owns the
// downstream observer and the cancel token handed down by the Producer.
//
// Disposing a Sink detaches the downstream observer, so forwarding after
// disposal is a silent no-op, and releases the cancel token. Terminal
// forwarding detaches the observer before delivering, so at most one of
// OnError and OnCompleted ever reaches it.
//
// A Sink used as the observer of another Producer also receives that
// upstream subscription through OnSubscribe and releases it on Dispose.
type Sink[T any] struct {
	observer atomic.Pointer[observerSlot[T]]
	disposed atomic.Bool
	cancel   Disposable
	upstream CompositeDisposable
}

// Init binds the sink to its downstream observer and cancel token. It must be
// called once, before the sink is shared.
func (s *Sink[T]) Init(observer Observer[T], cancel Disposable) {
	s.observer.Store(&observerSlot[T]{observer: observer})
	s.cancel = cancel
}

// OnSubscribe records an upstream subscription so Dispose can release it
// even while the upstream Subscribe call has not returned yet.
func (s *Sink[T]) OnSubscribe(subscription Disposable) {
	s.upstream.Add(subscription)
}

// ForwardOnNext 向下游转发值；已释放或已终止时忽略
func (s *Sink[T]) ForwardOnNext(value T) {
	if slot := s.observer.Load(); slot != nil {
		slot.observer.OnNext(value)
	}
}

// ForwardOnError 向下游转发错误，然后释放自身
func (s *Sink[T]) ForwardOnError(err error) {
	slot := s.observer.Swap(nil)
	if slot == nil {
		return
	}

	defer s.Dispose()
	slot.observer.OnError(err)
}

// ForwardOnCompleted 向下游转发完成，然后释放自身
func (s *Sink[T]) ForwardOnCompleted() {
	slot := s.observer.Swap(nil)
	if slot == nil {
		return
	}

	defer s.Dispose()
	slot.observer.OnCompleted()
}

// Dispose 解除下游观察者并释放上游
func (s *Sink[T]) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	s.observer.Store(nil)

	cancel := s.cancel
	s.cancel = nil
	if cancel != nil {
		cancel.Dispose()
	}
	s.upstream.Dispose()
}

// IsDisposed 检查是否已释放
func (s *Sink[T]) IsDisposed() bool {
	return s.disposed.Load()
}

// ============================================================================
// Create
// ============================================================================

type createSink[T any] struct {
	Sink[T]
}

func (s *createSink[T]) OnNext(value T)    { s.ForwardOnNext(value) }
func (s *createSink[T]) OnError(err error) { s.ForwardOnError(err) }
func (s *createSink[T]) OnCompleted()      { s.ForwardOnCompleted() }

// Create 从订阅函数创建Observable。
// subscribe收到的观察者在终止后自动释放返回的Disposable，之后的通知被忽略。
func Create[T any](subscribe func(observer Observer[T]) Disposable) Observable[T] {
	return NewProducer[T](RunnerFunc[T](func(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
		sink := &createSink[T]{}
		sink.Init(observer, cancel)
		setSink(sink)

		return subscribe(sink)
	}))
}
