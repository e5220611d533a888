// Operator tests for RxGo
// 基础操作符测试
package rxgo

import (
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	t.Run("转换每个值", func(t *testing.T) {
		r := newRecorder[string]()
		Map(Range(1, 3, ImmediateScheduler), func(v int) (string, error) {
			return strconv.Itoa(v * 10), nil
		}).Subscribe(r)

		completedWith(t, r, "10", "20", "30")
	})

	t.Run("selector错误终止序列并释放上游", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0

		r := newRecorder[int]()
		Map(Range(0, 100, ImmediateScheduler), func(v int) (int, error) {
			calls++
			if v == 2 {
				return 0, boom
			}
			return v, nil
		}).Subscribe(r)

		assert.Equal(t, []Notification[int]{
			CreateNotification(0),
			CreateNotification(1),
			CreateErrorNotification[int](boom),
		}, r.all())
		assert.Equal(t, 3, calls)
	})
}

func TestFilter(t *testing.T) {
	r := newRecorder[int]()
	Filter(Range(0, 10, ImmediateScheduler), func(v int) bool {
		return v%3 == 0
	}).Subscribe(r)

	completedWith(t, r, 0, 3, 6, 9)
}

func TestTake(t *testing.T) {
	t.Run("取前count个值后释放上游", func(t *testing.T) {
		produced := 0
		source := Map(Range(0, 1000, ImmediateScheduler), func(v int) (int, error) {
			produced++
			return v, nil
		})

		r := newRecorder[int]()
		Take(source, 3).Subscribe(r)

		completedWith(t, r, 0, 1, 2)
		assert.Equal(t, 3, produced)
	})

	t.Run("上游不足count个值", func(t *testing.T) {
		r := newRecorder[int]()
		Take(Range(0, 2, ImmediateScheduler), 5).Subscribe(r)

		completedWith(t, r, 0, 1)
	})

	t.Run("count为0不订阅上游", func(t *testing.T) {
		subscribed := false
		source := Create(func(observer Observer[int]) Disposable {
			subscribed = true
			return Empty()
		})

		r := newRecorder[int]()
		Take(source, 0).Subscribe(r)

		require.True(t, r.terminated())
		completedWith(t, r)
		assert.False(t, subscribed)
	})
}
