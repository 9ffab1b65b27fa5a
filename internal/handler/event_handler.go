package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/blues/pledge/internal/event"
	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	// 补发时每页读取的事件数
	replayPageSize = 1000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type EventHandler struct {
	escrow   *logic.Escrow
	hub      *event.Hub
	pageSize int
}

func NewEventHandler(escrow *logic.Escrow, hub *event.Hub) *EventHandler {
	return &EventHandler{escrow: escrow, hub: hub, pageSize: replayPageSize}
}

// Stream 推送事件。?project_id= 只订阅单个项目，?since= 先补发该ID之后的事件。
func (h *EventHandler) Stream(c *gin.Context) {
	projectID, err := strconv.ParseInt(c.DefaultQuery("project_id", "0"), 10, 64)
	if err != nil || projectID < 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的项目ID")
		return
	}
	since := int64(-1)
	if s := c.Query("since"); s != "" {
		since, err = strconv.ParseInt(s, 10, 64)
		if err != nil || since < 0 {
			ErrorResponse(c, http.StatusBadRequest, "无效的事件ID")
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// 先订阅再补发，补发过的事件在实时流中跳过
	sub := h.hub.Subscribe(projectID)
	defer sub.Close()

	replayedUpTo := int64(-1)
	if since >= 0 {
		replayedUpTo, err = h.replay(c, conn, projectID, since)
		if err != nil {
			logger.Warn("Replay since %d stopped at %d: %v", since, replayedUpTo, err)
			return
		}
	}

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				// 订阅被断开，客户端应带上最后的事件ID重连
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
					time.Now().Add(writeWait))
				return
			}
			if msg.Id <= replayedUpTo {
				continue
			}
			if err := writeMessage(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// replay 按页补发 since 之后的全部事件，返回最后补发的事件ID
func (h *EventHandler) replay(c *gin.Context, conn *websocket.Conn, projectID, since int64) (int64, error) {
	last := since
	for {
		events, err := h.escrow.Events.EventsSince(c.Request.Context(), projectID, last, h.pageSize)
		if err != nil {
			return last, err
		}
		for _, ev := range events {
			if err := writeMessage(conn, event.MessageFromModel(ev)); err != nil {
				return last, err
			}
			last = ev.Id
		}
		if len(events) < h.pageSize {
			return last, nil
		}
	}
}

func writeMessage(conn *websocket.Conn, msg event.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// readPump 只处理控制帧，连接断开时关闭 done
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error: %v", err)
			}
			return
		}
	}
}
