// Basic operators for RxGo
// 基于Producer/Sink模板的基础操作符：Map、Filter、Take
package rxgo

// ============================================================================
// Map
// ============================================================================

type mapProducer[T, R any] struct {
	source   Observable[T]
	selector func(T) (R, error)
}

type mapSink[T, R any] struct {
	Sink[R]
	selector func(T) (R, error)
}

// Map 对每个值应用selector；selector返回错误时以该错误终止序列
func Map[T, R any](source Observable[T], selector func(T) (R, error)) Observable[R] {
	return NewProducer[R](&mapProducer[T, R]{source: source, selector: selector})
}

func (p *mapProducer[T, R]) Run(observer Observer[R], cancel Disposable, setSink func(Disposable)) Disposable {
	sink := &mapSink[T, R]{selector: p.selector}
	sink.Init(observer, cancel)
	setSink(sink)

	return p.source.Subscribe(sink)
}

func (s *mapSink[T, R]) OnNext(value T) {
	result, err := s.selector(value)
	if err != nil {
		s.ForwardOnError(err)
		return
	}

	s.ForwardOnNext(result)
}

func (s *mapSink[T, R]) OnError(err error) { s.ForwardOnError(err) }
func (s *mapSink[T, R]) OnCompleted()      { s.ForwardOnCompleted() }

// ============================================================================
// Filter
// ============================================================================

type filterProducer[T any] struct {
	source    Observable[T]
	predicate func(T) bool
}

type filterSink[T any] struct {
	Sink[T]
	predicate func(T) bool
}

// Filter 只转发满足predicate的值
func Filter[T any](source Observable[T], predicate func(T) bool) Observable[T] {
	return NewProducer[T](&filterProducer[T]{source: source, predicate: predicate})
}

func (p *filterProducer[T]) Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
	sink := &filterSink[T]{predicate: p.predicate}
	sink.Init(observer, cancel)
	setSink(sink)

	return p.source.Subscribe(sink)
}

func (s *filterSink[T]) OnNext(value T) {
	if s.predicate(value) {
		s.ForwardOnNext(value)
	}
}

func (s *filterSink[T]) OnError(err error) { s.ForwardOnError(err) }
func (s *filterSink[T]) OnCompleted()      { s.ForwardOnCompleted() }

// ============================================================================
// Take
// ============================================================================

type takeProducer[T any] struct {
	source Observable[T]
	count  int
}

type takeSink[T any] struct {
	Sink[T]
	remaining int
}

// Take 只转发前count个值然后完成，并释放上游订阅。
// count不大于0时返回立即完成的序列，不订阅source。
func Take[T any](source Observable[T], count int) Observable[T] {
	if count <= 0 {
		return EmptyObservable[T](ImmediateScheduler)
	}

	return NewProducer[T](&takeProducer[T]{source: source, count: count})
}

func (p *takeProducer[T]) Run(observer Observer[T], cancel Disposable, setSink func(Disposable)) Disposable {
	sink := &takeSink[T]{remaining: p.count}
	sink.Init(observer, cancel)
	setSink(sink)

	return p.source.Subscribe(sink)
}

func (s *takeSink[T]) OnNext(value T) {
	if s.remaining <= 0 {
		return
	}

	s.remaining--
	s.ForwardOnNext(value)

	if s.remaining == 0 {
		s.ForwardOnCompleted()
	}
}

func (s *takeSink[T]) OnError(err error) { s.ForwardOnError(err) }
func (s *takeSink[T]) OnCompleted()      { s.ForwardOnCompleted() }
