package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ProjectModel 众筹项目模型
type ProjectModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Creator     string `json:"creator" gorm:"type:varchar(42);not null;index"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	Category    string `json:"category" gorm:"index"`
	ImageURI    string `json:"image_uri"`

	// 众筹信息（最小货币单位）
	GoalAmount     decimal.Decimal `json:"goal_amount" gorm:"type:varchar(80);not null"`
	CurrentAmount  decimal.Decimal `json:"current_amount" gorm:"type:varchar(80);not null"`
	ReleasedAmount decimal.Decimal `json:"released_amount" gorm:"type:varchar(80);not null"`
	RefundedAmount decimal.Decimal `json:"refunded_amount" gorm:"type:varchar(80);not null"`

	// 时间信息
	Deadline time.Time `json:"deadline" gorm:"not null;index"`

	// 状态
	Status ProjectStatus `json:"status" gorm:"type:varchar(16);not null;index"`
}

// TableName 自定义表名
func (ProjectModel) TableName() string {
	return "project"
}

// CreatorAddress 创建者地址
func (p *ProjectModel) CreatorAddress() common.Address {
	return common.HexToAddress(p.Creator)
}

// GoalReached 当前金额是否已达到目标
func (p *ProjectModel) GoalReached() bool {
	return p.CurrentAmount.GreaterThanOrEqual(p.GoalAmount)
}

// Expired 截止时间是否已过
func (p *ProjectModel) Expired(now time.Time) bool {
	return now.After(p.Deadline)
}

// EscrowBalance 托管中尚未释放或退还的金额
func (p *ProjectModel) EscrowBalance() decimal.Decimal {
	return p.CurrentAmount.Sub(p.ReleasedAmount)
}

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"    // 募集中
	ProjectStatusFunded    ProjectStatus = "funded"    // 已达成目标
	ProjectStatusFailed    ProjectStatus = "failed"    // 失败
	ProjectStatusCompleted ProjectStatus = "completed" // 全部里程碑已释放
)

// Code 状态对应的数值编码，与客户端枚举保持一致
func (s ProjectStatus) Code() int {
	switch s {
	case ProjectStatusActive:
		return 0
	case ProjectStatusFunded:
		return 1
	case ProjectStatusFailed:
		return 2
	case ProjectStatusCompleted:
		return 3
	default:
		return -1
	}
}

// IsTerminal 是否为终态
func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusFailed || s == ProjectStatusCompleted
}

// ParseProjectStatus 解析状态字符串
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	switch status := ProjectStatus(s); status {
	case ProjectStatusActive, ProjectStatusFunded, ProjectStatusFailed, ProjectStatusCompleted:
		return status, true
	default:
		return "", false
	}
}
