// Package rxgo provides a push-based reactive sequence core for Go
// 响应式序列的订阅与调度核心：Observer协议、Producer/Sink模板、调度器与ObserveOn
package rxgo

import (
	"fmt"
	"runtime"

	"k8s.io/utils/clock"
)

// ============================================================================
// Observer / Observable
// ============================================================================

// Observer 观察者：零个或多个OnNext，之后至多一个OnError或OnCompleted
type Observer[T any] interface {
	// OnNext 处理下一个值
	OnNext(value T)
	// OnError 处理错误（终止通知）
	OnError(err error)
	// OnCompleted 处理完成（终止通知）
	OnCompleted()
}

// Observable 可观察序列：每次Subscribe挂接一个观察者并返回一个用于解除的Disposable
type Observable[T any] interface {
	// Subscribe 订阅观察者
	Subscribe(observer Observer[T]) Disposable
}

// Subscriber is an optional capability of an Observer. Producers hand the
// subscription handle to OnSubscribe before any notification can be
// delivered, so an observer can cancel from inside a synchronous emission.
type Subscriber interface {
	OnSubscribe(subscription Disposable)
}

// ObservableFunc 函数形式的Observable
type ObservableFunc[T any] func(observer Observer[T]) Disposable

// Subscribe 调用函数本身
func (f ObservableFunc[T]) Subscribe(observer Observer[T]) Disposable {
	return f(observer)
}

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext[T any] func(value T)

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

type funcObserver[T any] struct {
	onNext     OnNext[T]
	onError    OnError
	onComplete OnComplete
}

// NewObserver 使用回调函数创建观察者，nil回调被忽略
func NewObserver[T any](onNext OnNext[T], onError OnError, onComplete OnComplete) Observer[T] {
	return &funcObserver[T]{
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	}
}

func (o *funcObserver[T]) OnNext(value T) {
	if o.onNext != nil {
		o.onNext(value)
	}
}

func (o *funcObserver[T]) OnError(err error) {
	if o.onError != nil {
		o.onError(err)
	}
}

func (o *funcObserver[T]) OnCompleted() {
	if o.onComplete != nil {
		o.onComplete()
	}
}

// ============================================================================
// Notification
// ============================================================================

// NotificationKind 通知类型
type NotificationKind int

const (
	// KindOnNext 值通知
	KindOnNext NotificationKind = iota
	// KindOnError 错误通知
	KindOnError
	// KindOnCompleted 完成通知
	KindOnCompleted
)

func (k NotificationKind) String() string {
	switch k {
	case KindOnNext:
		return "OnNext"
	case KindOnError:
		return "OnError"
	case KindOnCompleted:
		return "OnCompleted"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// Notification 以值的形式表示一次通知
type Notification[T any] struct {
	Kind  NotificationKind
	Value T
	Error error
}

// CreateNotification 创建值通知
func CreateNotification[T any](value T) Notification[T] {
	return Notification[T]{Kind: KindOnNext, Value: value}
}

// CreateErrorNotification 创建错误通知
func CreateErrorNotification[T any](err error) Notification[T] {
	return Notification[T]{Kind: KindOnError, Error: err}
}

// CreateCompletedNotification 创建完成通知
func CreateCompletedNotification[T any]() Notification[T] {
	return Notification[T]{Kind: KindOnCompleted}
}

// IsTerminal 是否为终止通知
func (n Notification[T]) IsTerminal() bool {
	return n.Kind != KindOnNext
}

// Accept 把通知投递给观察者
func (n Notification[T]) Accept(observer Observer[T]) {
	switch n.Kind {
	case KindOnNext:
		observer.OnNext(n.Value)
	case KindOnError:
		observer.OnError(n.Error)
	case KindOnCompleted:
		observer.OnCompleted()
	}
}

func (n Notification[T]) String() string {
	switch n.Kind {
	case KindOnNext:
		return fmt.Sprintf("OnNext(%v)", n.Value)
	case KindOnError:
		return fmt.Sprintf("OnError(%v)", n.Error)
	default:
		return n.Kind.String() + "()"
	}
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// OptionFunc 函数形式的配置选项
type OptionFunc func(config *Config)

// Apply 应用选项
func (f OptionFunc) Apply(config *Config) {
	f(config)
}

// Config 调度器配置
type Config struct {
	// Clock 提供当前时间与延迟执行
	Clock clock.WithDelayedExecution
	// Concurrency 工作池大小
	Concurrency int
	// Name 调度器名称，用于日志与指标
	Name string
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Clock:       clock.RealClock{},
		Concurrency: runtime.NumCPU(),
	}
}

// WithClock 指定时钟
func WithClock(c clock.WithDelayedExecution) Option {
	return OptionFunc(func(config *Config) {
		if c != nil {
			config.Clock = c
		}
	})
}

// WithConcurrency 指定工作池大小
func WithConcurrency(n int) Option {
	return OptionFunc(func(config *Config) {
		if n > 0 {
			config.Concurrency = n
		}
	})
}

// WithName 指定调度器名称
func WithName(name string) Option {
	return OptionFunc(func(config *Config) {
		config.Name = name
	})
}

func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	return config
}
