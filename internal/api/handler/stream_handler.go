package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"campusconnect/backend/internal/service"
	"campusconnect/backend/pkg/pubsub"
	"campusconnect/backend/pkg/response"
)

const (
	streamPingInterval = 25 * time.Second
	wsWriteWait        = 10 * time.Second
	wsPongWait         = 60 * time.Second
	wsReadLimit        = 512
)

// Subscriber 实时事件订阅（由 pkg/pubsub.Broker 实现）
type Subscriber interface {
	Subscribe(channel string) (*pubsub.Subscription, error)
}

// StreamHandler 实时推送：SSE 与 WebSocket 两种传输
// 客户端断线期间错过的事件通过普通接口重新拉取
type StreamHandler struct {
	events       Subscriber
	chatSvc      service.ChatService
	gameSvc      service.GameService
	logger       *zap.Logger
	pingInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewStreamHandler 创建 StreamHandler
// allowOrigins 为空时 WebSocket 不校验 Origin（本地开发）
func NewStreamHandler(events Subscriber, chatSvc service.ChatService, gameSvc service.GameService, allowOrigins []string, logger *zap.Logger) *StreamHandler {
	origins := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		origins[strings.TrimRight(o, "/")] = true
	}

	return &StreamHandler{
		events:       events,
		chatSvc:      chatSvc,
		gameSvc:      gameSvc,
		logger:       logger,
		pingInterval: streamPingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// ChatEvents 聊天室事件流（SSE）
// GET /api/v1/chat/rooms/:id/events
func (h *StreamHandler) ChatEvents(c *gin.Context) {
	if channel, ok := h.chatChannel(c); ok {
		h.serveSSE(c, channel)
	}
}

// ChatWS 聊天室事件流（WebSocket）
// GET /api/v1/chat/rooms/:id/ws
func (h *StreamHandler) ChatWS(c *gin.Context) {
	if channel, ok := h.chatChannel(c); ok {
		h.serveWS(c, channel)
	}
}

// GameEvents 游戏房间事件流（SSE）
// GET /api/v1/games/rooms/:code/events
func (h *StreamHandler) GameEvents(c *gin.Context) {
	if channel, ok := h.gameChannel(c); ok {
		h.serveSSE(c, channel)
	}
}

// GameWS 游戏房间事件流（WebSocket）
// GET /api/v1/games/rooms/:code/ws
func (h *StreamHandler) GameWS(c *gin.Context) {
	if channel, ok := h.gameChannel(c); ok {
		h.serveWS(c, channel)
	}
}

// NotificationEvents 当前用户的新通知（SSE）
// GET /api/v1/notifications/events
func (h *StreamHandler) NotificationEvents(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	h.serveSSE(c, pubsub.UserChannel(userID))
}

func (h *StreamHandler) chatChannel(c *gin.Context) (string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", false
	}
	roomID, ok := MustParamID(c, "id")
	if !ok {
		return "", false
	}
	if err := h.chatSvc.EnsureParticipant(c.Request.Context(), userID, roomID); err != nil {
		handleChatError(c, err)
		return "", false
	}
	return pubsub.ChatChannel(roomID), true
}

func (h *StreamHandler) gameChannel(c *gin.Context) (string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", false
	}
	room, err := h.gameSvc.Get(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		handleGameError(c, err)
		return "", false
	}
	return pubsub.GameChannel(room.Code), true
}

func (h *StreamHandler) subscribe(c *gin.Context, channel string) (*pubsub.Subscription, bool) {
	sub, err := h.events.Subscribe(channel)
	if err != nil {
		h.logger.Warn("订阅事件失败", zap.String("channel", channel), zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, 10007, "实时推送暂不可用")
		return nil, false
	}
	return sub, true
}

// serveSSE 以 text/event-stream 推送，id 字段为事件 ID
func (h *StreamHandler) serveSSE(c *gin.Context, channel string) {
	sub, ok := h.subscribe(c, channel)
	if !ok {
		return
	}
	defer sub.Close()

	w := c.Writer
	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = sse.Encode(w, sse.Event{Event: "ready", Data: gin.H{"channel": channel}})
	w.Flush()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			if err := sse.Encode(w, sse.Event{Id: evt.ID, Event: evt.Type, Data: evt}); err != nil {
				return
			}
			w.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}

// serveWS 升级为 WebSocket 后推送 JSON 事件；客户端消息仅用于保活
func (h *StreamHandler) serveWS(c *gin.Context, channel string) {
	sub, ok := h.subscribe(c, channel)
	if !ok {
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		h.logger.Debug("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.readPump(conn, cancel)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 处理 pong 与关闭帧，连接断开时取消写循环
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
