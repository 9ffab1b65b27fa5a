package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MinDurationDays = 1
	MaxDurationDays = 60
)

// ProjectLogic 项目登记
type ProjectLogic struct {
	e *Escrow
}

// MilestoneInput 创建项目时的里程碑
type MilestoneInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
}

// CreateProjectInput 创建项目参数
type CreateProjectInput struct {
	Creator      common.Address
	Title        string
	Description  string
	Category     string
	ImageURI     string
	GoalAmount   decimal.Decimal
	DurationDays int
	Milestones   []MilestoneInput
}

// ProjectFilter 项目列表过滤条件
type ProjectFilter struct {
	Status   model.ProjectStatus
	Category string
	Creator  *common.Address
	Page     int
	PageSize int
}

// PlatformStats 平台统计
type PlatformStats struct {
	TotalProjects  int64                         `json:"total_projects"`
	ByStatus       map[model.ProjectStatus]int64 `json:"by_status"`
	TotalRaised    decimal.Decimal               `json:"total_raised"`
	TotalReleased  decimal.Decimal               `json:"total_released"`
	TotalBackers   int64                         `json:"total_backers"`
	AccruedFees    decimal.Decimal               `json:"accrued_fees"`
	RewardsMinted  int64                         `json:"rewards_minted"`
	FeePercent     int                           `json:"fee_percent"`
	SuccessPercent int64                         `json:"success_percent"`
}

// CreateProject 创建项目，里程碑金额之和必须等于目标金额
func (l *ProjectLogic) CreateProject(ctx context.Context, in CreateProjectInput) (*model.ProjectModel, error) {
	if err := validateCreateProject(in); err != nil {
		return nil, l.e.reject("create_project", err)
	}

	now := l.e.now()
	project := &model.ProjectModel{
		CreatedAt:      now,
		Creator:        in.Creator.Hex(),
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		ImageURI:       in.ImageURI,
		GoalAmount:     in.GoalAmount,
		CurrentAmount:  decimal.Zero,
		ReleasedAmount: decimal.Zero,
		RefundedAmount: decimal.Zero,
		Deadline:       now.Add(time.Duration(in.DurationDays) * 24 * time.Hour),
		Status:         model.ProjectStatusActive,
	}

	err := l.e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		milestones := lo.Map(in.Milestones, func(m MilestoneInput, i int) model.MilestoneModel {
			return model.MilestoneModel{
				ProjectId:    project.Id,
				Idx:          i,
				Title:        m.Title,
				Description:  m.Description,
				Amount:       m.Amount,
				VotesFor:     decimal.Zero,
				VotesAgainst: decimal.Zero,
			}
		})
		if err := tx.Create(&milestones).Error; err != nil {
			return fmt.Errorf("failed to create milestones: %w", err)
		}

		return recordEvent(tx, project.Id, model.EventProjectCreated, model.ProjectCreatedData{
			ProjectId:  project.Id,
			Creator:    project.Creator,
			Title:      project.Title,
			GoalAmount: project.GoalAmount,
			Deadline:   project.Deadline,
		}, now)
	})
	if err != nil {
		logger.Error("Failed to create project for %s: %v", project.Creator, err)
		return nil, err
	}

	l.e.metrics.ProjectCreated()
	logger.Info("Project %d created by %s, goal %s, %d milestones, deadline %s",
		project.Id, project.Creator, project.GoalAmount, len(in.Milestones), project.Deadline.Format(time.RFC3339))
	return project, nil
}

// validateCreateProject 验证项目参数
func validateCreateProject(in CreateProjectInput) error {
	if in.GoalAmount.Sign() <= 0 {
		return ErrInvalidGoal
	}
	if !in.GoalAmount.IsInteger() {
		return fmt.Errorf("goal: %w", ErrInvalidAmount)
	}
	if in.DurationDays < MinDurationDays || in.DurationDays > MaxDurationDays {
		return ErrInvalidDuration
	}
	if len(in.Milestones) == 0 {
		return ErrMilestoneMismatch
	}

	total := decimal.Zero
	for i, m := range in.Milestones {
		if m.Amount.Sign() <= 0 {
			return fmt.Errorf("milestone %d: %w", i, ErrInvalidMilestone)
		}
		if !m.Amount.IsInteger() {
			return fmt.Errorf("milestone %d: %w", i, ErrInvalidAmount)
		}
		total = total.Add(m.Amount)
	}
	if !total.Equal(in.GoalAmount) {
		return ErrMilestoneMismatch
	}
	return nil
}

// GetProject 获取项目
func (l *ProjectLogic) GetProject(ctx context.Context, projectID int64) (*model.ProjectModel, error) {
	return loadProject(l.e.db.WithContext(ctx), projectID)
}

// GetProjectMilestones 按顺序获取项目里程碑
func (l *ProjectLogic) GetProjectMilestones(ctx context.Context, projectID int64) ([]model.MilestoneModel, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}

	var milestones []model.MilestoneModel
	if err := db.Where("project_id = ?", projectID).Order("idx ASC").Find(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

// ProjectCount 已创建的项目数量，项目ID从1开始连续分配
func (l *ProjectLogic) ProjectCount(ctx context.Context) (int64, error) {
	var count int64
	if err := l.e.db.WithContext(ctx).Model(&model.ProjectModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListProjects 分页获取项目列表
func (l *ProjectLogic) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.ProjectModel, int64, error) {
	query := l.e.db.WithContext(ctx).Model(&model.ProjectModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Creator != nil {
		query = query.Where("creator = ?", filter.Creator.Hex())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := NormalizePage(filter.Page, filter.PageSize)
	var projects []model.ProjectModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// Stats 平台统计信息
func (l *ProjectLogic) Stats(ctx context.Context) (*PlatformStats, error) {
	db := l.e.db.WithContext(ctx)
	stats := &PlatformStats{
		ByStatus:      make(map[model.ProjectStatus]int64),
		TotalRaised:   decimal.Zero,
		TotalReleased: decimal.Zero,
		AccruedFees:   decimal.Zero,
	}

	// 金额以字符串存储，汇总在内存中完成
	var projects []model.ProjectModel
	if err := db.Select("id", "status", "current_amount", "released_amount", "refunded_amount").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	for _, p := range projects {
		stats.TotalProjects++
		stats.ByStatus[p.Status]++
		stats.TotalRaised = stats.TotalRaised.Add(p.CurrentAmount).Add(p.RefundedAmount)
		stats.TotalReleased = stats.TotalReleased.Add(p.ReleasedAmount)
	}

	var fees []model.TransferModel
	if err := db.Select("amount").Where("kind = ?", model.TransferKindFee).Find(&fees).Error; err != nil {
		return nil, fmt.Errorf("failed to load fee transfers: %w", err)
	}
	stats.AccruedFees = lo.Reduce(fees, func(sum decimal.Decimal, t model.TransferModel, _ int) decimal.Decimal {
		return sum.Add(t.Amount)
	}, decimal.Zero)

	if err := db.Model(&model.ContributionModel{}).Distinct("backer").Count(&stats.TotalBackers).Error; err != nil {
		return nil, fmt.Errorf("failed to count backers: %w", err)
	}
	if err := db.Model(&model.RewardModel{}).Count(&stats.RewardsMinted).Error; err != nil {
		return nil, fmt.Errorf("failed to count rewards: %w", err)
	}

	fee, err := l.e.Platform.PlatformFeePercentage(ctx)
	if err != nil {
		return nil, err
	}
	stats.FeePercent = fee

	succeeded := stats.ByStatus[model.ProjectStatusFunded] + stats.ByStatus[model.ProjectStatusCompleted]
	if decided := succeeded + stats.ByStatus[model.ProjectStatusFailed]; decided > 0 {
		stats.SuccessPercent = succeeded * 100 / decided
	}
	return stats, nil
}

// NormalizePage 分页参数默认第1页、每页10条，最多100条
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
