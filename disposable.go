// Disposable implementations for RxGo
// 可释放资源：幂等释放、可取消标志、单次赋值、串行与组合释放
package rxgo

import (
	"io"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// ============================================================================
// 核心接口
// ============================================================================

// Disposable 可释放资源的接口；重复调用Dispose与调用一次效果相同
type Disposable interface {
	// Dispose 释放资源
	Dispose()
}

// Cancelable 可以无阻塞地查询是否已释放的资源
type Cancelable interface {
	Disposable
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// fallibleDisposable is implemented by disposables whose release can fail
// with an error rather than a panic. Composites collect the error instead of
// reporting it immediately.
type fallibleDisposable interface {
	Disposable
	disposeErr() error
}

// disposeSafely releases d and converts a panic or a release error into an
// error so that siblings in a composite still get released.
func disposeSafely(d Disposable) error {
	if d == nil {
		return nil
	}

	if fd, ok := d.(fallibleDisposable); ok {
		var err error
		if perr := SafeExecute(func() { err = fd.disposeErr() }); perr != nil {
			return perr
		}
		return err
	}

	return SafeExecute(d.Dispose)
}

// disposeAll releases members in order. Every member is released exactly once
// regardless of earlier failures.
func disposeAll(members []Disposable) (err error) {
	for _, member := range members {
		err = multierr.Append(err, disposeSafely(member))
	}
	return
}

// ============================================================================
// 基础实现
// ============================================================================

type emptyDisposable struct{}

func (emptyDisposable) Dispose() {}

func (emptyDisposable) IsDisposed() bool { return true }

var empty Cancelable = emptyDisposable{}

// Empty 返回一个什么都不做的Disposable
func Empty() Cancelable {
	return empty
}

// anonymousDisposable runs its action on the first Dispose only.
type anonymousDisposable struct {
	disposed atomic.Bool
	action   func()
}

// NewDisposable 创建在首次释放时执行action的Disposable。
// 并发释放通过原子交换保证action只执行一次。
func NewDisposable(action func()) Cancelable {
	return &anonymousDisposable{action: action}
}

func (d *anonymousDisposable) Dispose() {
	if d.disposed.Swap(true) {
		return
	}

	action := d.action
	d.action = nil
	if action != nil {
		action()
	}
}

func (d *anonymousDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// closerDisposable adapts an io.Closer. A failing Close is reported through
// the error handler when disposed on its own, or collected when disposed as a
// composite member.
type closerDisposable struct {
	disposed atomic.Bool
	closer   io.Closer
}

// FromCloser 将io.Closer包装为Disposable
func FromCloser(closer io.Closer) Cancelable {
	return &closerDisposable{closer: closer}
}

func (d *closerDisposable) disposeErr() error {
	if d.disposed.Swap(true) {
		return nil
	}

	closer := d.closer
	d.closer = nil
	if closer == nil {
		return nil
	}
	return closer.Close()
}

func (d *closerDisposable) Dispose() {
	ReportError(d.disposeErr())
}

func (d *closerDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// BooleanDisposable 仅记录释放状态的Disposable，供长时间运行的循环轮询
type BooleanDisposable struct {
	disposed atomic.Bool
}

// NewBooleanDisposable 创建BooleanDisposable
func NewBooleanDisposable() *BooleanDisposable {
	return &BooleanDisposable{}
}

// Dispose 标记为已释放
func (d *BooleanDisposable) Dispose() {
	d.disposed.Store(true)
}

// IsDisposed 检查是否已释放
func (d *BooleanDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// ============================================================================
// 单次赋值与串行Disposable
// ============================================================================

type disposableBox struct {
	disposable Disposable
}

// disposedBox marks a slot whose owner has been disposed.
var disposedBox = &disposableBox{}

func box(d Disposable) *disposableBox {
	if d == nil {
		d = empty
	}
	return &disposableBox{disposable: d}
}

// SingleAssignmentDisposable holds a disposable that can be assigned once.
// Disposing the holder disposes the current value, and any value assigned
// after disposal is disposed on assignment.
type SingleAssignmentDisposable struct {
	current atomic.Pointer[disposableBox]
}

// NewSingleAssignmentDisposable 创建单次赋值Disposable
func NewSingleAssignmentDisposable() *SingleAssignmentDisposable {
	return &SingleAssignmentDisposable{}
}

// Set 赋值；第二次赋值会panic(ErrAlreadyAssigned)
func (s *SingleAssignmentDisposable) Set(d Disposable) {
	if s.current.CompareAndSwap(nil, box(d)) {
		return
	}

	if s.current.Load() == disposedBox {
		if d != nil {
			d.Dispose()
		}
		return
	}

	panic(ErrAlreadyAssigned)
}

// Dispose 释放当前值以及之后赋予的值
func (s *SingleAssignmentDisposable) Dispose() {
	old := s.current.Swap(disposedBox)
	if old != nil && old != disposedBox {
		old.disposable.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (s *SingleAssignmentDisposable) IsDisposed() bool {
	return s.current.Load() == disposedBox
}

// SerialDisposable holds a replaceable disposable; assigning a new value
// disposes the previous one.
type SerialDisposable struct {
	current atomic.Pointer[disposableBox]
}

// NewSerialDisposable 创建串行Disposable
func NewSerialDisposable() *SerialDisposable {
	return &SerialDisposable{}
}

// Set 替换当前值并释放旧值；已释放时立即释放新值
func (s *SerialDisposable) Set(d Disposable) {
	next := box(d)
	for {
		old := s.current.Load()
		if old == disposedBox {
			next.disposable.Dispose()
			return
		}

		if s.current.CompareAndSwap(old, next) {
			if old != nil {
				old.disposable.Dispose()
			}
			return
		}
	}
}

// Dispose 释放当前值
func (s *SerialDisposable) Dispose() {
	old := s.current.Swap(disposedBox)
	if old != nil && old != disposedBox {
		old.disposable.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (s *SerialDisposable) IsDisposed() bool {
	return s.current.Load() == disposedBox
}

// ============================================================================
// 组合式Disposable
// ============================================================================

// CompositeDisposable 组合式资源管理器。
// 成员按加入顺序释放，单个成员失败不影响其余成员，失败汇总后交给错误处理器。
// 成员必须是可比较的值（通常为指针），Remove依赖==比较。
type CompositeDisposable struct {
	mu        sync.RWMutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(disposables ...Disposable) *CompositeDisposable {
	resources := make([]Disposable, 0, len(disposables))
	for _, d := range disposables {
		if d != nil {
			resources = append(resources, d)
		}
	}

	return &CompositeDisposable{
		resources: resources,
	}
}

// Add 添加可释放资源；已释放时立即释放该资源而不保存
func (cd *CompositeDisposable) Add(disposable Disposable) {
	if disposable == nil {
		return
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		ReportError(disposeSafely(disposable))
		return
	}

	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Remove 移除并释放资源，返回资源是否存在
func (cd *CompositeDisposable) Remove(disposable Disposable) bool {
	if disposable == nil {
		return false
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return false
	}

	found := false
	for i, resource := range cd.resources {
		if resource == disposable {
			copy(cd.resources[i:], cd.resources[i+1:])
			cd.resources[len(cd.resources)-1] = nil
			cd.resources = cd.resources[:len(cd.resources)-1]
			found = true
			break
		}
	}
	cd.mu.Unlock()

	if found {
		disposable.Dispose()
	}
	return found
}

// Len 当前成员数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	return len(cd.resources)
}

// Dispose 释放所有资源
func (cd *CompositeDisposable) Dispose() {
	ReportError(cd.disposeErr())
}

func (cd *CompositeDisposable) disposeErr() error {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return nil
	}

	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	return disposeAll(resources)
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.RLock()
	defer cd.mu.RUnlock()
	return cd.disposed
}

// StableCompositeDisposable 成员固定的组合Disposable，释放不加锁
type StableCompositeDisposable struct {
	disposed  atomic.Bool
	resources []Disposable
}

// NewStableCompositeDisposable 创建成员固定的组合Disposable
func NewStableCompositeDisposable(disposables ...Disposable) *StableCompositeDisposable {
	resources := make([]Disposable, 0, len(disposables))
	for _, d := range disposables {
		if d != nil {
			resources = append(resources, d)
		}
	}

	return &StableCompositeDisposable{resources: resources}
}

// Dispose 按顺序释放所有成员
func (sd *StableCompositeDisposable) Dispose() {
	ReportError(sd.disposeErr())
}

func (sd *StableCompositeDisposable) disposeErr() error {
	if sd.disposed.Swap(true) {
		return nil
	}

	resources := sd.resources
	sd.resources = nil
	return disposeAll(resources)
}

// IsDisposed 检查是否已释放
func (sd *StableCompositeDisposable) IsDisposed() bool {
	return sd.disposed.Load()
}
