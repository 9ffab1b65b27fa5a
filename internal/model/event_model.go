package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventModel 通知事件发件箱，与业务变更在同一事务内写入
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId   int64      `json:"project_id" gorm:"not null;index"`
	EventType   EventType  `json:"event_type" gorm:"type:varchar(32);not null"`
	Data        string     `json:"data" gorm:"type:text"`
	Published   bool       `json:"published" gorm:"index"`
	PublishedAt *time.Time `json:"published_at"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}

// EventType 事件类型
type EventType string

const (
	EventProjectCreated     EventType = "ProjectCreated"
	EventContributionMade   EventType = "ContributionMade"
	EventProjectFunded      EventType = "ProjectFunded"
	EventMilestoneCompleted EventType = "MilestoneCompleted"
	EventMilestoneVoted     EventType = "MilestoneVoted"
	EventFundsReleased      EventType = "FundsReleased"
	EventProjectCompleted   EventType = "ProjectCompleted"
	EventProjectFailed      EventType = "ProjectFailed"
	EventRefundIssued       EventType = "RefundIssued"
	EventRewardMinted       EventType = "RewardMinted"
	EventPlatformFeeUpdated EventType = "PlatformFeeUpdated"
)

// ProjectCreatedData 项目创建事件
type ProjectCreatedData struct {
	ProjectId  int64           `json:"project_id"`
	Creator    string          `json:"creator"`
	Title      string          `json:"title"`
	GoalAmount decimal.Decimal `json:"goal_amount"`
	Deadline   time.Time       `json:"deadline"`
}

// ContributionMadeData 贡献事件
type ContributionMadeData struct {
	ProjectId int64           `json:"project_id"`
	Backer    string          `json:"backer"`
	Amount    decimal.Decimal `json:"amount"`
}

// ProjectStatusData 项目状态变更事件
type ProjectStatusData struct {
	ProjectId     int64           `json:"project_id"`
	Status        ProjectStatus   `json:"status"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
}

// MilestoneCompletedData 里程碑提交事件
type MilestoneCompletedData struct {
	ProjectId int64  `json:"project_id"`
	Index     int    `json:"index"`
	ProofURI  string `json:"proof_uri"`
}

// MilestoneVotedData 投票事件
type MilestoneVotedData struct {
	ProjectId int64           `json:"project_id"`
	Index     int             `json:"index"`
	Backer    string          `json:"backer"`
	Approve   bool            `json:"approve"`
	Weight    decimal.Decimal `json:"weight"`
}

// FundsReleasedData 资金释放事件
type FundsReleasedData struct {
	ProjectId int64           `json:"project_id"`
	Index     int             `json:"index"`
	Payout    decimal.Decimal `json:"payout"`
	Fee       decimal.Decimal `json:"fee"`
}

// RefundIssuedData 退款事件
type RefundIssuedData struct {
	ProjectId int64           `json:"project_id"`
	Backer    string          `json:"backer"`
	Amount    decimal.Decimal `json:"amount"`
}

// RewardMintedData 奖励铸造事件
type RewardMintedData struct {
	TokenId   int64           `json:"token_id"`
	ProjectId int64           `json:"project_id"`
	Backer    string          `json:"backer"`
	Tier      RewardTier      `json:"tier"`
	Amount    decimal.Decimal `json:"amount"`
}

// PlatformFeeUpdatedData 手续费变更事件
type PlatformFeeUpdatedData struct {
	OldPercent int `json:"old_percent"`
	NewPercent int `json:"new_percent"`
}
