package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PlatformSingletonId 平台配置只有一行
const PlatformSingletonId = 1

// PlatformModel 平台配置
type PlatformModel struct {
	Id         int64     `json:"-" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
	Operator   string    `json:"operator" gorm:"type:varchar(42);not null"`
	FeePercent int       `json:"fee_percent" gorm:"not null"`
}

// TableName 自定义表名
func (PlatformModel) TableName() string {
	return "platform"
}

// OperatorAddress 平台运营者地址
func (p *PlatformModel) OperatorAddress() common.Address {
	return common.HexToAddress(p.Operator)
}
