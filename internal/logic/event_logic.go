package logic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blues/pledge/internal/model"
	"gorm.io/gorm"
)

// EventLogic 通知事件发件箱
type EventLogic struct {
	e *Escrow
}

// recordEvent 在当前事务内写入事件
func recordEvent(tx *gorm.DB, projectID int64, eventType model.EventType, data interface{}, now time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	event := model.EventModel{
		CreatedAt: now,
		ProjectId: projectID,
		EventType: eventType,
		Data:      string(payload),
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}

// PendingEvents 按写入顺序获取未推送的事件
func (l *EventLogic) PendingEvents(ctx context.Context, limit int) ([]model.EventModel, error) {
	var events []model.EventModel
	if err := l.e.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkPublished 标记事件已推送
func (l *EventLogic) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	now := l.e.now()
	return l.e.db.WithContext(ctx).
		Model(&model.EventModel{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"published":    true,
			"published_at": &now,
		}).Error
}

// EventsSince 获取某个ID之后的事件，用于客户端断线重连补发；projectID 为 0 表示全部项目
func (l *EventLogic) EventsSince(ctx context.Context, projectID, sinceID int64, limit int) ([]model.EventModel, error) {
	query := l.e.db.WithContext(ctx).Where("id > ?", sinceID)
	if projectID != 0 {
		query = query.Where("project_id = ?", projectID)
	}

	var events []model.EventModel
	if err := query.Order("id ASC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
