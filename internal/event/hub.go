package event

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
)

// Message 推送给订阅者的事件
type Message struct {
	Id        int64           `json:"id"`
	ProjectId int64           `json:"project_id"`
	Type      model.EventType `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// MessageFromModel 转换发件箱记录
func MessageFromModel(ev model.EventModel) Message {
	data := json.RawMessage(ev.Data)
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Message{
		Id:        ev.Id,
		ProjectId: ev.ProjectId,
		Type:      ev.EventType,
		Data:      data,
		CreatedAt: ev.CreatedAt,
	}
}

// Hub 事件订阅中心。订阅者跟不上推送速度时会被断开，由客户端带上最后的事件ID重连补发。
type Hub struct {
	mu         sync.Mutex
	subs       map[*Subscription]struct{}
	bufferSize int
	closed     bool
}

// Subscription 单个订阅，projectID 为 0 表示订阅全部项目
type Subscription struct {
	hub       *Hub
	projectID int64
	ch        chan Message
}

// NewHub 创建订阅中心
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{
		subs:       make(map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe 新建订阅，Hub 已关闭时返回的通道直接关闭
func (h *Hub) Subscribe(projectID int64) *Subscription {
	sub := &Subscription{hub: h, projectID: projectID, ch: make(chan Message, h.bufferSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Broadcast 推送给匹配的订阅者，返回送达数量
func (h *Hub) Broadcast(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs {
		if sub.projectID != 0 && sub.projectID != msg.ProjectId {
			continue
		}
		select {
		case sub.ch <- msg:
			delivered++
		default:
			logger.Warn("Dropping slow subscriber of project %d at event %d", sub.projectID, msg.Id)
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
	return delivered
}

// Count 当前订阅数量
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close 关闭所有订阅
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// C 事件通道，订阅结束时关闭
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// ProjectID 订阅的项目
func (s *Subscription) ProjectID() int64 {
	return s.projectID
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, ok := s.hub.subs[s]; ok {
		delete(s.hub.subs, s)
		close(s.ch)
	}
}
