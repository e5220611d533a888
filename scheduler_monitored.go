// Monitored scheduler for RxGo
// 记录prometheus指标的调度器包装器
package rxgo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// 调度器性能监控
// ============================================================================

// SchedulerMetrics 调度器性能指标
type SchedulerMetrics struct {
	TasksScheduled prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	Latency        prometheus.Histogram
}

// NewSchedulerMetrics 创建并注册一组以name为标签的调度器指标
func NewSchedulerMetrics(name string, reg prometheus.Registerer) (*SchedulerMetrics, error) {
	labels := prometheus.Labels{"scheduler": name}

	m := &SchedulerMetrics{
		TasksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "tasks_scheduled_total",
			Help:        "Number of tasks handed to the scheduler.",
			ConstLabels: labels,
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "tasks_completed_total",
			Help:        "Number of tasks that returned normally.",
			ConstLabels: labels,
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "tasks_failed_total",
			Help:        "Number of tasks that panicked.",
			ConstLabels: labels,
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "rxgo",
			Subsystem:   "scheduler",
			Name:        "task_latency_seconds",
			Help:        "Time from scheduling a task to the task returning.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.TasksScheduled, m.TasksCompleted, m.TasksFailed, m.Latency} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// monitoredScheduler 带监控的调度器包装器
type monitoredScheduler struct {
	scheduler Scheduler
	metrics   *SchedulerMetrics
}

// monitoredLongRunningScheduler additionally forwards the long-running
// capability of the wrapped scheduler.
type monitoredLongRunningScheduler struct {
	*monitoredScheduler
	longRunning LongRunningScheduler
}

// NewMonitoredScheduler 创建带监控的调度器。
// 被包装的调度器支持长时间运行调度时，返回值同样支持。
func NewMonitoredScheduler(scheduler Scheduler, metrics *SchedulerMetrics) Scheduler {
	ms := &monitoredScheduler{
		scheduler: scheduler,
		metrics:   metrics,
	}

	if lr, ok := AsLongRunning(scheduler); ok {
		return &monitoredLongRunningScheduler{monitoredScheduler: ms, longRunning: lr}
	}
	return ms
}

// Now 被包装调度器的当前时间
func (s *monitoredScheduler) Now() time.Time {
	return s.scheduler.Now()
}

// Schedule 调度任务并记录指标
func (s *monitoredScheduler) Schedule(action func()) Disposable {
	return s.scheduler.Schedule(s.wrap(action))
}

// ScheduleAfter 延迟调度任务并记录指标
func (s *monitoredScheduler) ScheduleAfter(delay time.Duration, action func()) Disposable {
	return s.scheduler.ScheduleAfter(delay, s.wrap(action))
}

// ScheduleLongRunning 调度长时间运行的循环并记录指标
func (s *monitoredLongRunningScheduler) ScheduleLongRunning(action func(cancel Cancelable)) Disposable {
	var token Cancelable
	run := s.wrap(func() { action(token) })

	return s.longRunning.ScheduleLongRunning(func(cancel Cancelable) {
		token = cancel
		run()
	})
}

func (s *monitoredScheduler) wrap(action func()) func() {
	s.metrics.TasksScheduled.Inc()

	startTime := s.scheduler.Now()
	return func() {
		defer func() {
			s.metrics.Latency.Observe(s.scheduler.Now().Sub(startTime).Seconds())

			if r := recover(); r != nil {
				s.metrics.TasksFailed.Inc()
				panic(r)
			}
			s.metrics.TasksCompleted.Inc()
		}()

		action()
	}
}
