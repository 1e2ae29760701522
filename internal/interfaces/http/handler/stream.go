package handler

import (
	"net/http"

	infraWS "github.com/meetily/backend/internal/infrastructure/websocket"
	"github.com/meetily/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// validTopics 允许订阅的推送主题
var validTopics = map[string]bool{
	infraWS.TopicSegments: true,
	infraWS.TopicLevels:   true,
	infraWS.TopicCapture:  true,
	infraWS.TopicImport:   true,
	infraWS.TopicSummary:  true,
	infraWS.TopicModels:   true,
	infraWS.TopicRecovery: true,
}

// StreamHandler WebSocket 推送处理器
type StreamHandler struct {
	hub      *infraWS.Hub
	upgrader websocket.Upgrader
}

// NewStreamHandler 创建 WebSocket 推送处理器
func NewStreamHandler(hub *infraWS.Hub) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 桌面端本地回环访问，不做跨域限制
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream 订阅指定主题的推送流
// @Summary 订阅推送主题
// @Tags 推送
// @Param topic path string true "主题：segments/levels/capture/import/summary/models/recovery"
// @Success 101 {string} string "Switching Protocols"
// @Failure 400 {object} response.ErrorResponse
// @Router /ws/{topic} [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	topic := c.Param("topic")
	if !validTopics[topic] {
		response.Error(c, http.StatusBadRequest, 800001, "未知推送主题")
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := &infraWS.Connection{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}
	h.hub.Register(conn)

	// 写循环：Send 被 Hub 关闭（慢消费者或注销）时结束
	go func() {
		defer ws.Close()
		for data := range conn.Send {
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				break
			}
		}
	}()

	// 读循环只用于感知断开，客户端不上行数据
	go func() {
		defer h.hub.Unregister(conn)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
