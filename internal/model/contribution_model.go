package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionModel 支持者在项目中的累计贡献，自增ID即为首次贡献顺序
type ContributionModel struct {
	Id        int64     `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectId int64           `json:"project_id" gorm:"not null;uniqueIndex:idx_contribution_project_backer"`
	Backer    string          `json:"backer" gorm:"type:varchar(42);not null;uniqueIndex:idx_contribution_project_backer"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:varchar(80);not null"`
	Refunded  bool            `json:"refunded"`
}

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}
