package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundLogic 失败项目的退款
type RefundLogic struct {
	e *Escrow
}

// Refund 截止后未达目标时，支持者取回全部贡献。首个退款会把项目置为失败。
func (l *RefundLogic) Refund(ctx context.Context, projectID int64, backer common.Address) (decimal.Decimal, error) {
	var (
		amount decimal.Decimal
		failed bool
	)
	err := l.e.withProject(ctx, projectID, func(tx *gorm.DB, project *model.ProjectModel) error {
		now := l.e.now()
		if !refundable(project, now) {
			return ErrRefundUnavailable
		}

		var contribution model.ContributionModel
		err := tx.Where("project_id = ? AND backer = ?", projectID, backer.Hex()).First(&contribution).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if contribution.Amount.Sign() <= 0 {
			return ErrNothingToRefund
		}

		if project.Status == model.ProjectStatusActive {
			failed = true
			if err := l.fail(tx, project); err != nil {
				return err
			}
		}

		amount = contribution.Amount
		contribution.Amount = decimal.Zero
		contribution.Refunded = true
		if err := tx.Save(&contribution).Error; err != nil {
			return fmt.Errorf("failed to update contribution: %w", err)
		}

		project.CurrentAmount = project.CurrentAmount.Sub(amount)
		project.RefundedAmount = project.RefundedAmount.Add(amount)
		if err := tx.Save(project).Error; err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		transfer := &model.TransferModel{
			CreatedAt: now,
			Kind:      model.TransferKindRefund,
			ProjectId: projectID,
			Recipient: contribution.Backer,
			Amount:    amount,
			Status:    model.TransferStatusPending,
		}
		if err := tx.Create(transfer).Error; err != nil {
			return fmt.Errorf("failed to record transfer: %w", err)
		}
		return recordEvent(tx, projectID, model.EventRefundIssued, model.RefundIssuedData{
			ProjectId: projectID,
			Backer:    contribution.Backer,
			Amount:    amount,
		}, now)
	})
	if err != nil {
		return decimal.Zero, l.e.reject("refund", err)
	}

	l.e.metrics.Refund()
	if failed {
		logger.Info("Project %d failed: deadline passed without reaching its goal", projectID)
	}
	logger.Info("Refunded %s to %s from project %d", amount, backer.Hex(), projectID)
	return amount, nil
}

// ExpireProjects 将已过截止时间且未达目标的募集中项目置为失败，返回处理数量
func (l *RefundLogic) ExpireProjects(ctx context.Context) (int, error) {
	var active []model.ProjectModel
	if err := l.e.db.WithContext(ctx).
		Select("id", "deadline").
		Where("status = ?", model.ProjectStatusActive).
		Order("id ASC").
		Find(&active).Error; err != nil {
		return 0, fmt.Errorf("failed to query active projects: %w", err)
	}
	now := l.e.now()
	candidates := lo.Filter(active, func(p model.ProjectModel, _ int) bool {
		return p.Expired(now)
	})

	expired := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		changed := false
		err := l.e.withProject(ctx, candidate.Id, func(tx *gorm.DB, project *model.ProjectModel) error {
			// 加锁后重新检查，期间可能已被退款或达成目标
			if project.Status != model.ProjectStatusActive || !refundable(project, l.e.now()) {
				return nil
			}
			changed = true
			if err := l.fail(tx, project); err != nil {
				return err
			}
			return tx.Save(project).Error
		})
		if err != nil {
			logger.Error("Failed to expire project %d: %v", candidate.Id, err)
			continue
		}
		if changed {
			expired++
			logger.Info("Project %d failed: deadline passed without reaching its goal", candidate.Id)
		}
	}
	return expired, nil
}

// fail 置为失败并记录事件，调用方负责保存项目
func (l *RefundLogic) fail(tx *gorm.DB, project *model.ProjectModel) error {
	project.Status = model.ProjectStatusFailed
	return recordEvent(tx, project.Id, model.EventProjectFailed, model.ProjectStatusData{
		ProjectId:     project.Id,
		Status:        project.Status,
		CurrentAmount: project.CurrentAmount,
	}, l.e.now())
}

// refundable 已失败，或募集中且截止后仍未达目标
func refundable(project *model.ProjectModel, now time.Time) bool {
	switch project.Status {
	case model.ProjectStatusFailed:
		return true
	case model.ProjectStatusActive:
		return project.Expired(now) && !project.GoalReached()
	default:
		return false
	}
}
