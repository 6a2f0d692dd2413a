package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecomxpert/storefront/backend/internal/model/chat"
	chatService "github.com/ecomxpert/storefront/backend/internal/service/chat"
	"github.com/ecomxpert/storefront/backend/pkg/log"
	"github.com/ecomxpert/storefront/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type inboundMessage struct {
	Type          string          `json:"type"`
	CounterpartID string          `json:"counterpartId"`
	Data          json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn 串行化写操作；gorilla 连接不支持并发写
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()})
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 推送会话事件，并接受 open/close/minimize/send 指令
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	logger := log.Ctx(r.Context()).With().Str("viewer_id", viewer.ID).Logger()

	// 升级前校验令牌，失败时仍可返回普通 HTTP 错误
	sub, err := h.chatSvc.Subscribe(viewer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer h.chatSvc.Unsubscribe(sub)

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	ctx, cancel := context.WithCancel(log.WithLogger(context.WithoutCancel(r.Context()), logger))
	defer cancel()

	raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	logger.Info().Msg("websocket connected")
	sessions, _ := h.chatSvc.Sessions(viewer)
	if err := conn.send("connected", map[string]any{"sessions": sessions}); err != nil {
		logger.Warn().Err(err).Msg("websocket handshake write failed")
		return
	}

	go h.pushLoop(ctx, cancel, conn, sub)

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleCommand(ctx, conn, viewer, &msg)
	}
}

func (h *Handler) pushLoop(ctx context.Context, cancel context.CancelFunc, conn *wsConn, sub *chatService.Subscription) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.send(ev.Type, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, conn *wsConn, viewer chatService.Viewer, msg *inboundMessage) {
	var err error
	switch msg.Type {
	case "open":
		var data struct {
			Name   string `json:"name"`
			Avatar string `json:"avatar"`
		}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				conn.send("error", map[string]string{"message": "invalid open data", "counterpartId": msg.CounterpartID})
				return
			}
		}
		// 打开会话要等待上游，放到后台以免阻塞读取
		go func() {
			recipient := chat.Participant{ID: msg.CounterpartID, Name: data.Name, Avatar: data.Avatar}
			if _, err := h.chatSvc.Open(ctx, viewer, msg.CounterpartID, recipient); err != nil {
				conn.send("error", map[string]string{"message": err.Error(), "counterpartId": msg.CounterpartID})
			}
		}()
	case "close":
		err = h.chatSvc.Close(viewer, msg.CounterpartID)
	case "minimize":
		_, err = h.chatSvc.ToggleMinimize(viewer, msg.CounterpartID)
	case "send":
		var data struct {
			Text string `json:"text"`
		}
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			_, err = h.chatSvc.Send(ctx, viewer, msg.CounterpartID, data.Text, nil)
		}
	case "ping":
		err = conn.send("pong", nil)
	default:
		conn.send("error", map[string]string{"message": "unsupported message type: " + msg.Type})
		return
	}
	if err != nil {
		conn.send("error", map[string]string{"message": err.Error(), "counterpartId": msg.CounterpartID})
	}
}

// handleStream 以 SSE 推送同一组会话事件，供不支持 WebSocket 的客户端使用
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	viewer := viewerFrom(r)
	sub, err := h.chatSvc.Subscribe(viewer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer h.chatSvc.Unsubscribe(sub)
	sessions, _ := h.chatSvc.Sessions(viewer)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	logger := log.Ctx(ctx)
	logger.Info().Str("viewer_id", viewer.ID).Msg("event stream opened")

	if err := utils.SendSSEEvent(w, flusher, "connected", map[string]any{"sessions": sessions}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("viewer_id", viewer.ID).Msg("event stream closed")
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, ev.Type, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}
