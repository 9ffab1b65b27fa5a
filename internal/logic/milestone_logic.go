package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MilestoneLogic 里程碑托管：提交、投票与放款
type MilestoneLogic struct {
	e *Escrow
}

// VoteResult 一次投票的结果
type VoteResult struct {
	Milestone *model.MilestoneModel
	Project   *model.ProjectModel
	Released  bool            // 本次投票触发了放款
	Payout    decimal.Decimal // 创建者实收
	Fee       decimal.Decimal // 平台手续费
}

// SubmitMilestone 创建者提交里程碑成果，开放投票
func (l *MilestoneLogic) SubmitMilestone(ctx context.Context, projectID int64, index int, caller common.Address, proofURI string) (*model.MilestoneModel, error) {
	var milestone *model.MilestoneModel
	err := l.e.withProject(ctx, projectID, func(tx *gorm.DB, project *model.ProjectModel) error {
		if project.CreatorAddress() != caller {
			return ErrNotCreator
		}

		var err error
		milestone, err = loadMilestone(tx, projectID, index)
		if err != nil {
			return err
		}
		if project.Status != model.ProjectStatusFunded {
			return ErrProjectNotFunded
		}
		if milestone.Completed {
			return ErrMilestoneAlreadyCompleted
		}

		milestone.Completed = true
		milestone.ProofURI = proofURI
		milestone.VotesFor = decimal.Zero
		milestone.VotesAgainst = decimal.Zero
		if err := tx.Save(milestone).Error; err != nil {
			return fmt.Errorf("failed to update milestone: %w", err)
		}

		return recordEvent(tx, projectID, model.EventMilestoneCompleted, model.MilestoneCompletedData{
			ProjectId: projectID,
			Index:     index,
			ProofURI:  proofURI,
		}, l.e.now())
	})
	if err != nil {
		return nil, l.e.reject("submit_milestone", err)
	}

	logger.Info("Milestone %d of project %d submitted, proof %s", index, projectID, proofURI)
	return milestone, nil
}

// VoteOnMilestone 支持者按累计贡献加权投票。赞成票超过已筹总额一半时立即放款：
// 放款与投票在同一事务内记账，转账记录为待发送，由发送任务在提交后逐笔转出。
func (l *MilestoneLogic) VoteOnMilestone(ctx context.Context, projectID int64, index int, backer common.Address, approve bool) (*VoteResult, error) {
	result := &VoteResult{Payout: decimal.Zero, Fee: decimal.Zero}
	err := l.e.withProject(ctx, projectID, func(tx *gorm.DB, project *model.ProjectModel) error {
		now := l.e.now()

		milestone, err := loadMilestone(tx, projectID, index)
		if err != nil {
			return err
		}
		if !milestone.Completed {
			return ErrMilestoneNotSubmitted
		}
		if milestone.Verified {
			return ErrMilestoneAlreadyVerified
		}
		if project.Status != model.ProjectStatusFunded {
			return ErrProjectNotFunded
		}

		weight, err := contributionOf(tx, projectID, backer)
		if err != nil {
			return err
		}
		if weight.Sign() <= 0 {
			return ErrNotBacker
		}
		voted, err := hasVoted(tx, projectID, index, backer)
		if err != nil {
			return err
		}
		if voted {
			return ErrDuplicateVote
		}

		vote := &model.VoteModel{
			CreatedAt: now,
			ProjectId: projectID,
			Idx:       index,
			Backer:    backer.Hex(),
			Approve:   approve,
			Weight:    weight,
		}
		if err := tx.Create(vote).Error; err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}
		if approve {
			milestone.VotesFor = milestone.VotesFor.Add(weight)
		} else {
			milestone.VotesAgainst = milestone.VotesAgainst.Add(weight)
		}
		if err := recordEvent(tx, projectID, model.EventMilestoneVoted, model.MilestoneVotedData{
			ProjectId: projectID,
			Index:     index,
			Backer:    vote.Backer,
			Approve:   approve,
			Weight:    weight,
		}, now); err != nil {
			return err
		}

		result.Milestone = milestone
		result.Project = project
		if !ReleaseThresholdMet(milestone.VotesFor, project.CurrentAmount) {
			return tx.Save(milestone).Error
		}
		result.Released = true
		return l.release(tx, project, milestone, result)
	})
	if err != nil {
		return nil, l.e.reject("vote", err)
	}

	l.e.metrics.Vote(approve)
	logger.Info("Backer %s voted %t on milestone %d of project %d, for=%s against=%s",
		backer.Hex(), approve, index, projectID, result.Milestone.VotesFor, result.Milestone.VotesAgainst)
	if result.Released {
		l.e.metrics.Release()
		logger.Info("Milestone %d of project %d released: payout %s, fee %s", index, projectID, result.Payout, result.Fee)
		if result.Project.Status == model.ProjectStatusCompleted {
			logger.Info("Project %d completed", projectID)
		}
	}
	return result, nil
}

// release 标记里程碑已验证，拆分手续费并转出，最后一个里程碑释放后项目完成
func (l *MilestoneLogic) release(tx *gorm.DB, project *model.ProjectModel, milestone *model.MilestoneModel, result *VoteResult) error {
	now := l.e.now()
	platform, err := loadPlatform(tx)
	if err != nil {
		return err
	}
	payout, fee := SplitFee(milestone.Amount, platform.FeePercent)
	result.Payout, result.Fee = payout, fee

	milestone.Verified = true
	milestone.ReleasedAt = &now
	if err := tx.Save(milestone).Error; err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}

	index := milestone.Idx
	transfers := []*model.TransferModel{{
		CreatedAt:    now,
		Kind:         model.TransferKindRelease,
		ProjectId:    project.Id,
		MilestoneIdx: &index,
		Recipient:    project.Creator,
		Amount:       payout,
		Status:       model.TransferStatusPending,
	}}
	if fee.Sign() > 0 {
		transfers = append(transfers, &model.TransferModel{
			CreatedAt:    now,
			Kind:         model.TransferKindFee,
			ProjectId:    project.Id,
			MilestoneIdx: &index,
			Recipient:    platform.Operator,
			Amount:       fee,
			Status:       model.TransferStatusPending,
		})
	}
	if err := tx.Create(&transfers).Error; err != nil {
		return fmt.Errorf("failed to record transfers: %w", err)
	}

	project.ReleasedAmount = project.ReleasedAmount.Add(milestone.Amount)
	var pending int64
	if err := tx.Model(&model.MilestoneModel{}).
		Where("project_id = ? AND verified = ?", project.Id, false).
		Count(&pending).Error; err != nil {
		return err
	}
	if pending == 0 {
		project.Status = model.ProjectStatusCompleted
	}
	if err := tx.Save(project).Error; err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	if err := recordEvent(tx, project.Id, model.EventFundsReleased, model.FundsReleasedData{
		ProjectId: project.Id,
		Index:     index,
		Payout:    payout,
		Fee:       fee,
	}, now); err != nil {
		return err
	}
	if project.Status == model.ProjectStatusCompleted {
		return recordEvent(tx, project.Id, model.EventProjectCompleted, model.ProjectStatusData{
			ProjectId:     project.Id,
			Status:        project.Status,
			CurrentAmount: project.CurrentAmount,
		}, now)
	}
	return nil
}

// GetMilestone 获取单个里程碑
func (l *MilestoneLogic) GetMilestone(ctx context.Context, projectID int64, index int) (*model.MilestoneModel, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}
	return loadMilestone(db, projectID, index)
}

// GetVotes 里程碑的投票记录
func (l *MilestoneLogic) GetVotes(ctx context.Context, projectID int64, index int) ([]model.VoteModel, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadMilestone(db, projectID, index); err != nil {
		return nil, err
	}

	var votes []model.VoteModel
	if err := db.Where("project_id = ? AND idx = ?", projectID, index).Order("id ASC").Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}

// ReleaseThresholdMet 赞成票严格超过已筹总额的一半（向下取整）
func ReleaseThresholdMet(votesFor, raised decimal.Decimal) bool {
	half := raised.Div(decimal.NewFromInt(2)).Floor()
	return votesFor.GreaterThan(half)
}

// SplitFee 按百分比拆分放款金额，创建者实收向下取整，余数归平台
func SplitFee(amount decimal.Decimal, feePercent int) (payout, fee decimal.Decimal) {
	payout = amount.Mul(decimal.NewFromInt(int64(100 - feePercent))).
		Div(decimal.NewFromInt(100)).
		Floor()
	return payout, amount.Sub(payout)
}

func loadMilestone(tx *gorm.DB, projectID int64, index int) (*model.MilestoneModel, error) {
	var milestone model.MilestoneModel
	if err := tx.Where("project_id = ? AND idx = ?", projectID, index).First(&milestone).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return &milestone, nil
}

func hasVoted(tx *gorm.DB, projectID int64, index int, backer common.Address) (bool, error) {
	var count int64
	if err := tx.Model(&model.VoteModel{}).
		Where("project_id = ? AND idx = ? AND backer = ?", projectID, index, backer.Hex()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
