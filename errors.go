// Error handling for RxGo
// 错误定义与错误上报通道
package rxgo

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrNilObserver 订阅时传入了nil观察者
	ErrNilObserver = errors.New("rxgo: observer must not be nil")
	// ErrNilScheduler 未提供调度器
	ErrNilScheduler = errors.New("rxgo: scheduler must not be nil")
	// ErrNilContext 未提供执行上下文
	ErrNilContext = errors.New("rxgo: context poster must not be nil")
	// ErrInvalidCount 计数参数越界
	ErrInvalidCount = errors.New("rxgo: count out of range")
	// ErrSchedulerClosed 调度器已关闭，任务不会再被执行
	ErrSchedulerClosed = errors.New("rxgo: scheduler is closed")
	// ErrAlreadyAssigned 单次赋值资源被重复赋值
	ErrAlreadyAssigned = errors.New("rxgo: disposable already assigned")
)

// PanicError wraps a recovered panic value together with the goroutine stack
// captured where the panic was recovered.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of recovery.
	Stack string
}

// Error 返回可读的panic描述
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}

// SafeExecute 执行函数并把panic转换为*PanicError
func SafeExecute(action func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()

	action()
	return nil
}

// ============================================================================
// 错误上报通道
// ============================================================================

// ErrorHandler 接收无法通过OnError传递的错误（例如释放动作失败、异步任务panic）
type ErrorHandler func(err error)

var (
	errorHandlerMu sync.RWMutex
	errorHandler   ErrorHandler = logError
)

// SetErrorHandler installs the process-wide handler for errors that have no
// observer to go to. It returns a function restoring the previous handler.
// Passing nil restores the default, which logs the error.
func SetErrorHandler(handler ErrorHandler) (restore func()) {
	if handler == nil {
		handler = logError
	}

	errorHandlerMu.Lock()
	prev := errorHandler
	errorHandler = handler
	errorHandlerMu.Unlock()

	return func() {
		errorHandlerMu.Lock()
		errorHandler = prev
		errorHandlerMu.Unlock()
	}
}

// ReportError 将错误交给当前的错误处理器；nil错误被忽略
func ReportError(err error) {
	if err == nil {
		return
	}

	errorHandlerMu.RLock()
	handler := errorHandler
	errorHandlerMu.RUnlock()

	handler(err)
}

func logError(err error) {
	log(context.Background()).Warn("unhandled error", "error", err)
}
