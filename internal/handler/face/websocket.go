package face

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/hotel-checkin/backend/internal/service/stream"
)

const (
	readWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 54 * time.Second
)

// WebSocketHandler 人脸识别流式端点
type WebSocketHandler struct {
	manager  *stream.Manager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(manager *stream.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// HandleWebSocket 处理一条识别连接：升级、接纳会话、双向泵
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := h.manager.Open()
	defer sess.Close()

	log.Printf("[websocket] session %s connected from %s", sess.ID, r.RemoteAddr)

	// 告知客户端会话ID，动作端点需要它
	greeting := map[string]any{
		"type":      "status",
		"event":     "connected",
		"sessionId": sess.ID,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(greeting); err != nil {
		log.Printf("[websocket] write greeting failed: %v", err)
		return
	}

	go h.writePump(sess, conn)
	h.readPump(sess, conn)
}

// readPump 接收入站帧。二进制消息即一帧压缩图像；
// 超出帧上限的消息由编解码层判定丢弃，读限制只兜底恶意输入。
func (h *WebSocketHandler) readPump(sess *stream.Session, conn *websocket.Conn) {
	conn.SetReadLimit(8 << 20)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] session %s read error: %v", sess.ID, err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readWait))

		if msgType != websocket.BinaryMessage {
			// 文本消息没有入站语义，忽略
			continue
		}
		sess.Submit(data)
	}
}

// writePump 推送出站结果与状态通知；会话结束后发送关闭帧
func (h *WebSocketHandler) writePump(sess *stream.Session, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return

		case payload := <-sess.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[websocket] session %s write failed: %v", sess.ID, err)
				sess.Close()
				return
			}

		case payload := <-sess.Notices():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[websocket] session %s notice write failed: %v", sess.ID, err)
				sess.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.Close()
				return
			}
		}
	}
}
