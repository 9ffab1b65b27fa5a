package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RewardLogic 奖励凭证。铸造入口不导出，只能由贡献流程在同一事务内调用。
type RewardLogic struct {
	e *Escrow
}

// mint 按单笔贡献金额铸造奖励，低于铜级门槛时不铸造并返回 nil
func (l *RewardLogic) mint(tx *gorm.DB, backer common.Address, projectID int64, amount decimal.Decimal, now time.Time) (*model.RewardModel, error) {
	tier := l.e.tiers.TierFor(amount)
	if tier == model.TierNone {
		return nil, nil
	}

	reward := &model.RewardModel{
		CreatedAt:    now,
		ProjectId:    projectID,
		Backer:       backer.Hex(),
		Tier:         tier,
		MintedAmount: amount,
	}
	if err := tx.Create(reward).Error; err != nil {
		return nil, fmt.Errorf("failed to mint reward: %w", err)
	}

	if err := recordEvent(tx, projectID, model.EventRewardMinted, model.RewardMintedData{
		TokenId:   reward.Id,
		ProjectId: projectID,
		Backer:    reward.Backer,
		Tier:      tier,
		Amount:    amount,
	}, now); err != nil {
		return nil, err
	}
	return reward, nil
}

// TierFor 单笔金额对应的奖励等级
func (l *RewardLogic) TierFor(amount decimal.Decimal) model.RewardTier {
	return l.e.tiers.TierFor(amount)
}

// GetBackerNFTs 支持者在某项目下持有的凭证ID，按铸造顺序
func (l *RewardLogic) GetBackerNFTs(ctx context.Context, projectID int64, backer common.Address) ([]int64, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}

	var rewards []model.RewardModel
	if err := db.Select("id").
		Where("project_id = ? AND backer = ?", projectID, backer.Hex()).
		Order("id ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return lo.Map(rewards, func(r model.RewardModel, _ int) int64 { return r.Id }), nil
}

// GetNFTMetadata 获取凭证详情
func (l *RewardLogic) GetNFTMetadata(ctx context.Context, tokenID int64) (*model.RewardModel, error) {
	var reward model.RewardModel
	if err := l.e.db.WithContext(ctx).First(&reward, tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &reward, nil
}

// BalanceOf 地址持有的凭证数量
func (l *RewardLogic) BalanceOf(ctx context.Context, backer common.Address) (int64, error) {
	var count int64
	if err := l.e.db.WithContext(ctx).
		Model(&model.RewardModel{}).
		Where("backer = ?", backer.Hex()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
