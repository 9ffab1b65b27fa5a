package logic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blues/pledge/internal/metrics"
	"github.com/blues/pledge/internal/model"
	"gorm.io/gorm"
)

// Disburser 将托管资金实际转出。只在记账事务提交后由 TransferLogic.DisbursePending 调用，
// 成功时可回填 TxHash。
type Disburser interface {
	Disburse(ctx context.Context, transfer *model.TransferModel) error
}

// LedgerDisburser 只记账不转账，资金由运营方线下结算
type LedgerDisburser struct{}

func (LedgerDisburser) Disburse(context.Context, *model.TransferModel) error {
	return nil
}

// Options 托管核心的可选依赖
type Options struct {
	Clock     func() time.Time
	Disburser Disburser
	Metrics   *metrics.Metrics
	Tiers     model.TierThresholds
}

// Escrow 托管核心句柄，所有业务逻辑共享同一个实例
type Escrow struct {
	db        *gorm.DB
	now       func() time.Time
	locks     *projectLocker
	disburser Disburser
	metrics   *metrics.Metrics
	tiers     model.TierThresholds

	Projects      *ProjectLogic
	Platform      *PlatformLogic
	Contributions *ContributionLogic
	Milestones    *MilestoneLogic
	Refunds       *RefundLogic
	Rewards       *RewardLogic
	Transfers     *TransferLogic
	Events        *EventLogic
}

// New 创建托管核心
func New(db *gorm.DB, opts Options) *Escrow {
	e := &Escrow{
		db:        db,
		now:       opts.Clock,
		locks:     newProjectLocker(),
		disburser: opts.Disburser,
		metrics:   opts.Metrics,
		tiers:     opts.Tiers,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.disburser == nil {
		e.disburser = LedgerDisburser{}
	}
	if e.tiers.Gold.IsZero() {
		e.tiers = model.DefaultTierThresholds()
	}

	e.Projects = &ProjectLogic{e: e}
	e.Platform = &PlatformLogic{e: e}
	e.Contributions = &ContributionLogic{e: e}
	e.Milestones = &MilestoneLogic{e: e}
	e.Refunds = &RefundLogic{e: e}
	e.Rewards = &RewardLogic{e: e}
	e.Transfers = &TransferLogic{e: e}
	e.Events = &EventLogic{e: e}
	return e
}

// withProject 在项目锁和数据库事务内执行 fn，fn 返回错误时全部回滚
func (e *Escrow) withProject(ctx context.Context, projectID int64, fn func(tx *gorm.DB, project *model.ProjectModel) error) error {
	unlock := e.locks.lock(projectID)
	defer unlock()

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := loadProject(tx, projectID)
		if err != nil {
			return err
		}
		return fn(tx, project)
	})
}

// reject 记录被拒绝的操作
func (e *Escrow) reject(operation string, err error) error {
	if be, ok := AsError(err); ok {
		e.metrics.Rejection(operation, be.Code)
	}
	return err
}

func loadProject(tx *gorm.DB, projectID int64) (*model.ProjectModel, error) {
	var project model.ProjectModel
	if err := tx.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

// projectLocker 每个项目一把互斥锁，同一项目的写操作串行执行
type projectLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newProjectLocker() *projectLocker {
	return &projectLocker{locks: make(map[int64]*sync.Mutex)}
}

func (l *projectLocker) lock(projectID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[projectID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Ping 检查数据库连接
func (e *Escrow) Ping(ctx context.Context) error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
