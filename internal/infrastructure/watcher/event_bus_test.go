package watcher

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetily/backend/internal/domain/events"
)

func waitSignal(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("等待事件超时")
		return nil
	}
}

// TestEventBus_PublishSubscribe 测试基本的发布订阅
func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	received := make(chan events.Event, 1)
	bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		received <- event
		return nil
	}))

	bus.Publish(events.NewModelDirChangedEvent("/models"))

	event := waitSignal(t, received)
	assert.Equal(t, events.ModelDirChanged, event.Type())
}

// TestEventBus_TypeIsolation 测试事件只分发给对应类型的订阅者
func TestEventBus_TypeIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var wrongType atomic.Int32
	bus.Subscribe(events.CaptureStatusChanged, events.HandlerFunc(func(event events.Event) error {
		wrongType.Add(1)
		return nil
	}))

	received := make(chan events.Event, 1)
	bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		received <- event
		return nil
	}))

	bus.Publish(events.NewModelDirChangedEvent("/models"))
	waitSignal(t, received)
	assert.Zero(t, wrongType.Load())
}

// TestEventBus_Unsubscribe 测试取消订阅后不再收到事件
func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()

	var count atomic.Int32
	unsub := bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		count.Add(1)
		return nil
	}))

	received := make(chan events.Event, 1)
	bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		received <- event
		return nil
	}))

	bus.Publish(events.NewModelDirChangedEvent("/a"))
	waitSignal(t, received)
	require.Eventually(t, func() bool { return count.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	unsub()
	bus.Publish(events.NewModelDirChangedEvent("/b"))
	waitSignal(t, received)

	bus.Close()
	assert.Equal(t, int32(1), count.Load())
}

// TestEventBus_SubscribeMultiple 测试一个处理器订阅多个事件类型
func TestEventBus_SubscribeMultiple(t *testing.T) {
	bus := NewEventBus()

	received := make(chan events.Event, 2)
	unsub := bus.SubscribeMultiple(
		[]events.EventType{events.ModelDirChanged, events.CaptureStatusChanged},
		events.HandlerFunc(func(event events.Event) error {
			received <- event
			return nil
		}))

	bus.Publish(events.NewModelDirChangedEvent("/models"))
	bus.Publish(events.NewCaptureStatusEvent(events.CaptureStatusPayload{SessionID: "s1", MicActive: true}))

	types := map[events.EventType]bool{}
	types[waitSignal(t, received).Type()] = true
	types[waitSignal(t, received).Type()] = true
	assert.True(t, types[events.ModelDirChanged])
	assert.True(t, types[events.CaptureStatusChanged])

	unsub()
	bus.Close()
}

// TestEventBus_HandlerPanicIsolation 测试单个处理器 panic 不影响其他处理器
func TestEventBus_HandlerPanicIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		panic("handler exploded")
	}))
	bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		return errors.New("handler error")
	}))

	received := make(chan events.Event, 1)
	bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		received <- event
		return nil
	}))

	bus.Publish(events.NewModelDirChangedEvent("/models"))
	waitSignal(t, received)
}

// TestEventBus_PublishAfterClose 测试关闭后发布被静默丢弃
func TestEventBus_PublishAfterClose(t *testing.T) {
	bus := NewEventBus()

	var count atomic.Int32
	bus.Subscribe(events.ModelDirChanged, events.HandlerFunc(func(event events.Event) error {
		count.Add(1)
		return nil
	}))

	bus.Close()
	bus.Publish(events.NewModelDirChangedEvent("/models"))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, count.Load())
}
