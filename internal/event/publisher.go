package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/metrics"
	"github.com/blues/pledge/internal/model"
	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
)

// Store 事件发件箱
type Store interface {
	PendingEvents(ctx context.Context, limit int) ([]model.EventModel, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

// Publisher 把发件箱中未推送的事件推给订阅者。
// 同一项目的事件按写入顺序依次推送，不同项目并行推送；推送后才标记，可能重复但不会丢失。
type Publisher struct {
	store     Store
	hub       *Hub
	metrics   *metrics.Metrics
	batchSize int
}

// NewPublisher 创建事件推送器
func NewPublisher(store Store, hub *Hub, m *metrics.Metrics, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Publisher{store: store, hub: hub, metrics: m, batchSize: batchSize}
}

// Publish 推送一批事件，返回推送数量
func (p *Publisher) Publish(ctx context.Context) (int, error) {
	events, err := p.store.PendingEvents(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	// 按项目分组
	groups := lo.GroupBy(events, func(ev model.EventModel) int64 {
		return ev.ProjectId
	})

	pool, err := ants.NewPool(len(groups))
	if err != nil {
		return 0, fmt.Errorf("failed to create pool for %d groups: %w", len(groups), err)
	}
	defer func() {
		_ = pool.ReleaseTimeout(5 * time.Second)
	}()

	var (
		wg   sync.WaitGroup
		sent []model.EventModel
	)
	for projectID, group := range groups {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			for _, ev := range group {
				p.hub.Broadcast(MessageFromModel(ev))
			}
		})
		if err != nil {
			// 未推送的分组留到下一轮
			wg.Done()
			logger.Error("Failed to submit events of project %d: %v", projectID, err)
			continue
		}
		sent = append(sent, group...)
	}
	wg.Wait()

	if len(sent) == 0 {
		return 0, nil
	}
	ids := lo.Map(sent, func(ev model.EventModel, _ int) int64 { return ev.Id })
	if err := p.store.MarkPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to mark events published: %w", err)
	}

	p.metrics.EventsPublished(len(sent))
	logger.Debug("Published %d events across %d projects", len(sent), len(groups))
	return len(sent), nil
}
