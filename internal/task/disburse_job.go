package task

import (
	"context"
	"time"

	"github.com/blues/pledge/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// TransferSender 发送已记账的转账
type TransferSender interface {
	DisbursePending(ctx context.Context, limit int) (int, error)
}

// DisburseJob 转账发送任务
type DisburseJob struct {
	sender   TransferSender
	interval time.Duration
	batch    int
}

// NewDisburseJob 创建转账发送任务，batch 为每轮最多发送的笔数
func NewDisburseJob(sender TransferSender, interval time.Duration, batch int) *DisburseJob {
	return &DisburseJob{
		sender:   sender,
		interval: interval,
		batch:    batch,
	}
}

// GetName 获取任务名称
func (j *DisburseJob) GetName() string {
	return "transfer_disburser"
}

// GetSchedule 获取调度配置
func (j *DisburseJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *DisburseJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := j.sender.DisbursePending(ctx, j.batch)
	if err != nil {
		logger.Error("Transfer disbursement stopped after %d transfers: %v", n, err)
		return
	}
	if n > 0 {
		logger.Debug("Disbursed %d transfers", n)
	}
}
