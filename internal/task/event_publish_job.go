package task

import (
	"context"
	"time"

	"github.com/blues/pledge/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// EventPublisher 推送待发布的事件
type EventPublisher interface {
	Publish(ctx context.Context) (int, error)
}

// EventPublishJob 事件推送任务
type EventPublishJob struct {
	publisher EventPublisher
	interval  time.Duration
}

// NewEventPublishJob 创建事件推送任务
func NewEventPublishJob(publisher EventPublisher, interval time.Duration) *EventPublishJob {
	return &EventPublishJob{
		publisher: publisher,
		interval:  interval,
	}
}

// GetName 获取任务名称
func (j *EventPublishJob) GetName() string {
	return "event_publisher"
}

// GetSchedule 获取调度配置
func (j *EventPublishJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *EventPublishJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := j.publisher.Publish(ctx)
	if err != nil {
		logger.Error("Event publish failed after %d events: %v", n, err)
		return
	}
	if n > 0 {
		logger.Debug("Published %d events", n)
	}
}
