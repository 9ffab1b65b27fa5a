package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MilestoneModel 项目里程碑，随项目创建，只会被提交和投票修改
type MilestoneModel struct {
	Id        int64     `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId   int64           `json:"project_id" gorm:"not null;uniqueIndex:idx_milestone_project_idx"`
	Idx         int             `json:"index" gorm:"not null;uniqueIndex:idx_milestone_project_idx"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description" gorm:"type:text"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:varchar(80);not null"`

	Completed    bool            `json:"completed"`
	Verified     bool            `json:"verified"`
	VotesFor     decimal.Decimal `json:"votes_for" gorm:"type:varchar(80);not null"`
	VotesAgainst decimal.Decimal `json:"votes_against" gorm:"type:varchar(80);not null"`
	ProofURI     string          `json:"proof_uri"`
	ReleasedAt   *time.Time      `json:"released_at"`
}

// TableName 自定义表名
func (MilestoneModel) TableName() string {
	return "milestone"
}

// VoteModel 里程碑投票记录，(project_id, idx, backer) 唯一
type VoteModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ProjectId int64           `json:"project_id" gorm:"not null;uniqueIndex:idx_vote_member"`
	Idx       int             `json:"index" gorm:"not null;uniqueIndex:idx_vote_member"`
	Backer    string          `json:"backer" gorm:"type:varchar(42);not null;uniqueIndex:idx_vote_member"`
	Approve   bool            `json:"approve"`
	Weight    decimal.Decimal `json:"weight" gorm:"type:varchar(80);not null"`
}

// TableName 自定义表名
func (VoteModel) TableName() string {
	return "milestone_vote"
}
