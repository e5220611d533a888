// Disposable tests for RxGo
// 可释放资源测试：幂等、顺序、失败隔离
package rxgo

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ============================================================================
// 基础Disposable
// ============================================================================

func TestNewDisposable(t *testing.T) {
	t.Run("并发释放只执行一次", func(t *testing.T) {
		var calls atomic.Int32
		d := NewDisposable(func() { calls.Inc() })

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Dispose()
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.True(t, d.IsDisposed())
	})

	t.Run("Empty", func(t *testing.T) {
		d := Empty()
		d.Dispose()
		d.Dispose()
		assert.True(t, d.IsDisposed())
	})
}

func TestFromCloser(t *testing.T) {
	errs := captureErrors(t)

	closeErr := errors.New("close failed")
	var calls int
	d := FromCloser(closerFunc(func() error {
		calls++
		return closeErr
	}))

	d.Dispose()
	d.Dispose()

	assert.Equal(t, 1, calls)
	require.Len(t, errs(), 1)
	assert.ErrorIs(t, errs()[0], closeErr)
}

// ============================================================================
// 单次赋值与串行
// ============================================================================

func TestSingleAssignmentDisposable(t *testing.T) {
	t.Run("释放当前值", func(t *testing.T) {
		inner := NewBooleanDisposable()
		s := NewSingleAssignmentDisposable()
		s.Set(inner)

		s.Dispose()
		assert.True(t, inner.IsDisposed())
		assert.True(t, s.IsDisposed())
	})

	t.Run("释放后赋值立即释放", func(t *testing.T) {
		s := NewSingleAssignmentDisposable()
		s.Dispose()

		inner := NewBooleanDisposable()
		s.Set(inner)
		assert.True(t, inner.IsDisposed())
	})

	t.Run("重复赋值panic", func(t *testing.T) {
		s := NewSingleAssignmentDisposable()
		s.Set(NewBooleanDisposable())

		assert.PanicsWithValue(t, ErrAlreadyAssigned, func() {
			s.Set(NewBooleanDisposable())
		})
	})
}

func TestSerialDisposable(t *testing.T) {
	s := NewSerialDisposable()

	first := NewBooleanDisposable()
	second := NewBooleanDisposable()

	s.Set(first)
	s.Set(second)
	assert.True(t, first.IsDisposed())
	assert.False(t, second.IsDisposed())

	s.Dispose()
	assert.True(t, second.IsDisposed())

	third := NewBooleanDisposable()
	s.Set(third)
	assert.True(t, third.IsDisposed())
}

// ============================================================================
// 组合式Disposable
// ============================================================================

func TestCompositeDisposable(t *testing.T) {
	t.Run("按加入顺序释放", func(t *testing.T) {
		var order []int
		cd := NewCompositeDisposable()
		for i := 0; i < 3; i++ {
			i := i
			cd.Add(NewDisposable(func() { order = append(order, i) }))
		}

		cd.Dispose()
		cd.Dispose()

		assert.Equal(t, []int{0, 1, 2}, order)
		assert.True(t, cd.IsDisposed())
		assert.Equal(t, 0, cd.Len())
	})

	t.Run("成员失败不影响其余成员", func(t *testing.T) {
		errs := captureErrors(t)

		closeErr := errors.New("close failed")
		last := NewBooleanDisposable()
		cd := NewCompositeDisposable(
			NewDisposable(func() { panic("boom") }),
			FromCloser(closerFunc(func() error { return closeErr })),
			last,
		)

		cd.Dispose()

		assert.True(t, last.IsDisposed())
		require.Len(t, errs(), 1)

		causes := multierr.Errors(errs()[0])
		require.Len(t, causes, 2)

		var perr *PanicError
		require.ErrorAs(t, causes[0], &perr)
		assert.Equal(t, "boom", perr.Value)
		assert.ErrorIs(t, causes[1], closeErr)
	})

	t.Run("释放后加入立即释放", func(t *testing.T) {
		cd := NewCompositeDisposable()
		cd.Dispose()

		d := NewBooleanDisposable()
		cd.Add(d)
		assert.True(t, d.IsDisposed())
		assert.Equal(t, 0, cd.Len())
	})

	t.Run("Remove释放被移除的成员", func(t *testing.T) {
		a := NewBooleanDisposable()
		b := NewBooleanDisposable()
		cd := NewCompositeDisposable(a, b)

		assert.True(t, cd.Remove(a))
		assert.True(t, a.IsDisposed())
		assert.False(t, cd.Remove(a))
		assert.Equal(t, 1, cd.Len())
		assert.False(t, b.IsDisposed())
	})

	t.Run("零值可用", func(t *testing.T) {
		var cd CompositeDisposable
		d := NewBooleanDisposable()
		cd.Add(d)
		cd.Dispose()
		assert.True(t, d.IsDisposed())
	})
}

func TestStableCompositeDisposable(t *testing.T) {
	var calls atomic.Int32
	a := NewDisposable(func() { calls.Inc() })
	b := NewDisposable(func() { calls.Inc() })
	sd := NewStableCompositeDisposable(a, nil, b)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sd.Dispose()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, sd.IsDisposed())
}
