// Test helpers for RxGo
// 测试用的记录观察者与执行上下文
package rxgo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder 记录收到的全部通知
type recorder[T any] struct {
	mu            sync.Mutex
	notifications []Notification[T]
	subscription  Disposable
	done          chan struct{}
	onNext        func(r *recorder[T], value T)
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{done: make(chan struct{})}
}

func (r *recorder[T]) OnSubscribe(subscription Disposable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscription = subscription
}

func (r *recorder[T]) OnNext(value T) {
	r.mu.Lock()
	r.notifications = append(r.notifications, CreateNotification(value))
	hook := r.onNext
	r.mu.Unlock()

	if hook != nil {
		hook(r, value)
	}
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	r.notifications = append(r.notifications, CreateErrorNotification[T](err))
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder[T]) OnCompleted() {
	r.mu.Lock()
	r.notifications = append(r.notifications, CreateCompletedNotification[T]())
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder[T]) cancel() {
	r.mu.Lock()
	d := r.subscription
	r.mu.Unlock()
	d.Dispose()
}

func (r *recorder[T]) all() []Notification[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification[T](nil), r.notifications...)
}

func (r *recorder[T]) values() []T {
	var out []T
	for _, n := range r.all() {
		if n.Kind == KindOnNext {
			out = append(out, n.Value)
		}
	}
	return out
}

func (r *recorder[T]) terminated() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *recorder[T]) wait(t *testing.T) {
	t.Helper()

	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("等待终止通知超时")
	}
}

// completedWith 期望收到values然后完成
func completedWith[T any](t *testing.T, r *recorder[T], values ...T) {
	t.Helper()

	expected := make([]Notification[T], 0, len(values)+1)
	for _, v := range values {
		expected = append(expected, CreateNotification(v))
	}
	expected = append(expected, CreateCompletedNotification[T]())

	require.Equal(t, expected, r.all())
}

// fakePoster 手动驱动的执行上下文
type fakePoster struct {
	mu        sync.Mutex
	callbacks []func()
	started   int
	completed int
}

func (p *fakePoster) Post(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, callback)
}

func (p *fakePoster) OperationStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
}

func (p *fakePoster) OperationCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
}

func (p *fakePoster) counts() (started, completed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started, p.completed
}

func (p *fakePoster) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callbacks)
}

// runAll 按投递顺序执行回调，包括执行过程中新投递的回调
func (p *fakePoster) runAll() {
	for {
		p.mu.Lock()
		if len(p.callbacks) == 0 {
			p.mu.Unlock()
			return
		}
		cb := p.callbacks[0]
		p.callbacks = p.callbacks[1:]
		p.mu.Unlock()

		cb()
	}
}

// captureErrors 在测试期间截获ReportError
func captureErrors(t *testing.T) func() []error {
	t.Helper()

	var mu sync.Mutex
	var errs []error
	restore := SetErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})
	t.Cleanup(restore)

	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), errs...)
	}
}
