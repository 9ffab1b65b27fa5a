package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RewardModel 奖励凭证，每次贡献铸造一枚，铸造后不可修改
type RewardModel struct {
	Id        int64     `json:"token_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId    int64           `json:"project_id" gorm:"not null;index:idx_reward_project_backer"`
	Backer       string          `json:"backer" gorm:"type:varchar(42);not null;index:idx_reward_project_backer;index"`
	Tier         RewardTier      `json:"tier" gorm:"not null"`
	MintedAmount decimal.Decimal `json:"minted_amount" gorm:"type:varchar(80);not null"`
}

// TableName 自定义表名
func (RewardModel) TableName() string {
	return "reward_token"
}

// RewardTier 奖励等级
type RewardTier int

const (
	TierNone RewardTier = iota
	TierBronze
	TierSilver
	TierGold
)

func (t RewardTier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierBronze:
		return "bronze"
	case TierSilver:
		return "silver"
	case TierGold:
		return "gold"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// TierThresholds 各等级的最低单笔金额（最小货币单位）
type TierThresholds struct {
	Bronze decimal.Decimal
	Silver decimal.Decimal
	Gold   decimal.Decimal
}

// DefaultTierThresholds 任意正数为铜级，0.5 单位起为银级，1 单位起为金级。
// 银级边界无法从已有行为确定，可通过配置调整。
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{
		Bronze: decimal.NewFromInt(1),
		Silver: decimal.New(5, AmountDecimals-1),
		Gold:   decimal.New(1, AmountDecimals),
	}
}

// Validate 校验阈值单调递增
func (t TierThresholds) Validate() error {
	if t.Bronze.Sign() <= 0 {
		return fmt.Errorf("bronze threshold must be positive")
	}
	if t.Silver.LessThan(t.Bronze) || t.Gold.LessThan(t.Silver) {
		return fmt.Errorf("tier thresholds must be ascending: bronze=%s silver=%s gold=%s", t.Bronze, t.Silver, t.Gold)
	}
	return nil
}

// TierFor 根据单笔贡献金额计算奖励等级，金额越大等级越高
func (t TierThresholds) TierFor(amount decimal.Decimal) RewardTier {
	switch {
	case amount.GreaterThanOrEqual(t.Gold):
		return TierGold
	case amount.GreaterThanOrEqual(t.Silver):
		return TierSilver
	case amount.GreaterThanOrEqual(t.Bronze):
		return TierBronze
	default:
		return TierNone
	}
}
