package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContributionLogic 贡献账本
type ContributionLogic struct {
	e *Escrow
}

// ContributeResult 一次贡献的结果
type ContributeResult struct {
	Project      *model.ProjectModel
	Contribution *model.ContributionModel
	Reward       *model.RewardModel // 低于铜级门槛时为 nil
	Funded       bool               // 本次贡献使项目达成目标
}

// Contribute 向项目贡献资金。达到目标时项目转为已达成，之后截止前的贡献仍然累计。
func (l *ContributionLogic) Contribute(ctx context.Context, projectID int64, backer common.Address, amount decimal.Decimal) (*ContributeResult, error) {
	result := &ContributeResult{}
	err := l.e.withProject(ctx, projectID, func(tx *gorm.DB, project *model.ProjectModel) error {
		now := l.e.now()
		if project.Status.IsTerminal() || project.Expired(now) {
			return ErrInactiveProject
		}
		if amount.Sign() <= 0 {
			return ErrZeroContribution
		}
		if !amount.IsInteger() {
			return ErrInvalidAmount
		}

		contribution, err := l.accumulate(tx, projectID, backer, amount)
		if err != nil {
			return err
		}

		project.CurrentAmount = project.CurrentAmount.Add(amount)
		if project.Status == model.ProjectStatusActive && project.GoalReached() {
			project.Status = model.ProjectStatusFunded
			result.Funded = true
		}
		if err := tx.Save(project).Error; err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		if err := recordEvent(tx, projectID, model.EventContributionMade, model.ContributionMadeData{
			ProjectId: projectID,
			Backer:    contribution.Backer,
			Amount:    amount,
		}, now); err != nil {
			return err
		}
		if result.Funded {
			if err := recordEvent(tx, projectID, model.EventProjectFunded, model.ProjectStatusData{
				ProjectId:     projectID,
				Status:        project.Status,
				CurrentAmount: project.CurrentAmount,
			}, now); err != nil {
				return err
			}
		}

		reward, err := l.e.Rewards.mint(tx, backer, projectID, amount, now)
		if err != nil {
			return err
		}

		result.Project = project
		result.Contribution = contribution
		result.Reward = reward
		return nil
	})
	if err != nil {
		logger.Debug("Contribution of %s to project %d by %s rejected: %v", amount, projectID, backer.Hex(), err)
		return nil, l.e.reject("contribute", err)
	}

	l.e.metrics.Contribution()
	if result.Reward != nil {
		l.e.metrics.RewardMinted(result.Reward.Tier.String())
	}
	logger.Info("Project %d received %s units from %s, total %s/%s",
		projectID, model.FormatUnits(amount), backer.Hex(),
		model.FormatUnits(result.Project.CurrentAmount), model.FormatUnits(result.Project.GoalAmount))
	if result.Funded {
		logger.Info("Project %d reached its goal and is now funded", projectID)
	}
	return result, nil
}

// accumulate 累加支持者贡献，首次贡献时按顺序加入支持者列表
func (l *ContributionLogic) accumulate(tx *gorm.DB, projectID int64, backer common.Address, amount decimal.Decimal) (*model.ContributionModel, error) {
	contribution := &model.ContributionModel{}
	err := tx.Where("project_id = ? AND backer = ?", projectID, backer.Hex()).First(contribution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		contribution = &model.ContributionModel{
			ProjectId: projectID,
			Backer:    backer.Hex(),
			Amount:    amount,
		}
		if err := tx.Create(contribution).Error; err != nil {
			return nil, fmt.Errorf("failed to create contribution: %w", err)
		}
		return contribution, nil
	}
	if err != nil {
		return nil, err
	}

	contribution.Amount = contribution.Amount.Add(amount)
	if err := tx.Save(contribution).Error; err != nil {
		return nil, fmt.Errorf("failed to update contribution: %w", err)
	}
	return contribution, nil
}

// GetContribution 支持者在项目中的累计贡献，未贡献时为 0
func (l *ContributionLogic) GetContribution(ctx context.Context, projectID int64, backer common.Address) (decimal.Decimal, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return decimal.Zero, err
	}
	return contributionOf(db, projectID, backer)
}

// GetBackers 按首次贡献顺序返回支持者，不含重复
func (l *ContributionLogic) GetBackers(ctx context.Context, projectID int64) ([]common.Address, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}

	var contributions []model.ContributionModel
	if err := db.Select("id", "backer").
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&contributions).Error; err != nil {
		return nil, err
	}
	return lo.Map(contributions, func(c model.ContributionModel, _ int) common.Address {
		return common.HexToAddress(c.Backer)
	}), nil
}

func contributionOf(tx *gorm.DB, projectID int64, backer common.Address) (decimal.Decimal, error) {
	var contribution model.ContributionModel
	err := tx.Where("project_id = ? AND backer = ?", projectID, backer.Hex()).First(&contribution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return contribution.Amount, nil
}

// ListContributions 分页获取项目的贡献记录，按首次贡献顺序
func (l *ContributionLogic) ListContributions(ctx context.Context, projectID int64, page, pageSize int) ([]model.ContributionModel, int64, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, 0, err
	}

	query := db.Model(&model.ContributionModel{}).Where("project_id = ?", projectID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count contributions: %w", err)
	}

	page, pageSize = NormalizePage(page, pageSize)
	var contributions []model.ContributionModel
	if err := query.Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&contributions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load contributions: %w", err)
	}
	return contributions, total, nil
}
