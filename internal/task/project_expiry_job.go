package task

import (
	"context"
	"time"

	"github.com/blues/pledge/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// Expirer 将到期未达标的项目标记为失败
type Expirer interface {
	ExpireProjects(ctx context.Context) (int, error)
}

// ProjectExpiryJob 项目到期扫描任务。到期判定在读取时也会进行，
// 扫描只是让状态与失败事件尽早落库。
type ProjectExpiryJob struct {
	expirer  Expirer
	interval time.Duration
	timeout  time.Duration
}

// NewProjectExpiryJob 创建项目到期扫描任务
func NewProjectExpiryJob(expirer Expirer, interval time.Duration) *ProjectExpiryJob {
	return &ProjectExpiryJob{
		expirer:  expirer,
		interval: interval,
		timeout:  interval,
	}
}

// GetName 获取任务名称
func (j *ProjectExpiryJob) GetName() string {
	return "project_expiry_sweeper"
}

// GetSchedule 获取调度配置
func (j *ProjectExpiryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *ProjectExpiryJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	failed, err := j.expirer.ExpireProjects(ctx)
	if err != nil {
		logger.Error("Project expiry sweep failed: %v", err)
		return
	}
	if failed > 0 {
		logger.Info("Project expiry sweep completed. Failed %d projects", failed)
	}
}
