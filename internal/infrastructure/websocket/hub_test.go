package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvMessage(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("等待推送超时")
		return nil
	}
}

// TestHub_BroadcastToTopic 测试按主题广播带信封的消息
func TestHub_BroadcastToTopic(t *testing.T) {
	hub := NewHub()
	hub.Start()

	conn := &Connection{Topic: TopicSegments, Send: make(chan []byte, 8)}
	hub.Register(conn)

	require.NoError(t, hub.Broadcast(TopicSegments, "segment_final", map[string]string{"text": "你好"}))

	var envelope Envelope
	require.NoError(t, json.Unmarshal(recvMessage(t, conn.Send), &envelope))
	assert.Equal(t, "segment_final", envelope.Type)
	payload, ok := envelope.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "你好", payload["text"])
}

// TestHub_TopicIsolation 测试消息只到达订阅主题的连接
func TestHub_TopicIsolation(t *testing.T) {
	hub := NewHub()
	hub.Start()

	segments := &Connection{Topic: TopicSegments, Send: make(chan []byte, 8)}
	levels := &Connection{Topic: TopicLevels, Send: make(chan []byte, 8)}
	hub.Register(segments)
	hub.Register(levels)

	require.NoError(t, hub.Broadcast(TopicLevels, "level", map[string]float64{"rms": 0.1}))

	recvMessage(t, levels.Send)
	select {
	case <-segments.Send:
		t.Fatal("segments 主题不应收到 levels 消息")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestHub_Unregister 测试注销后通道关闭
func TestHub_Unregister(t *testing.T) {
	hub := NewHub()
	hub.Start()

	conn := &Connection{Topic: TopicSummary, Send: make(chan []byte, 8)}
	hub.Register(conn)
	hub.Unregister(conn)

	select {
	case _, open := <-conn.Send:
		assert.False(t, open, "注销后发送通道应被关闭")
	case <-time.After(2 * time.Second):
		t.Fatal("等待通道关闭超时")
	}
}

// TestHub_SlowConsumerDisconnect 测试落后的消费者被断开且不阻塞广播
func TestHub_SlowConsumerDisconnect(t *testing.T) {
	hub := NewHub()
	hub.Start()

	// 缓冲为 1 的慢消费者和正常消费者
	slow := &Connection{Topic: TopicModels, Send: make(chan []byte, 1)}
	fast := &Connection{Topic: TopicModels, Send: make(chan []byte, 8)}
	hub.Register(slow)
	hub.Register(fast)

	// 第二条消息填不进慢消费者的缓冲，触发断开
	require.NoError(t, hub.Broadcast(TopicModels, "progress", 1))
	require.NoError(t, hub.Broadcast(TopicModels, "progress", 2))
	require.NoError(t, hub.Broadcast(TopicModels, "progress", 3))

	// 正常消费者三条全收到
	for i := 0; i < 3; i++ {
		recvMessage(t, fast.Send)
	}

	// 慢消费者的通道最终被关闭
	require.Eventually(t, func() bool {
		for {
			select {
			case _, open := <-slow.Send:
				if !open {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}
