package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TransferKind 资金流出类型
type TransferKind string

const (
	TransferKindRelease TransferKind = "release" // 里程碑释放给创建者
	TransferKindFee     TransferKind = "fee"     // 平台手续费
	TransferKindRefund  TransferKind = "refund"  // 退款给支持者
)

// TransferStatus 转账发送状态
type TransferStatus string

const (
	TransferStatusPending TransferStatus = "pending" // 已记账，等待发送
	TransferStatusSending TransferStatus = "sending" // 已认领，发送结果未落库，不会重发
	TransferStatusSent    TransferStatus = "sent"    // 已发送
)

// TransferModel 托管资金流出记录。记账与发送分离，每条记录至多发送一次。
type TransferModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Kind         TransferKind    `json:"kind" gorm:"type:varchar(16);not null;index"`
	ProjectId    int64           `json:"project_id" gorm:"not null;index"`
	MilestoneIdx *int            `json:"milestone_index,omitempty"`
	Recipient    string          `json:"recipient" gorm:"type:varchar(42);not null"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:varchar(80);not null"`
	Status       TransferStatus  `json:"status" gorm:"type:varchar(16);not null;default:pending;index"`
	Attempts     int             `json:"attempts" gorm:"not null;default:0"`
	LastError    string          `json:"last_error,omitempty" gorm:"type:text"`
	TxHash       string          `json:"tx_hash,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
}

// TableName 自定义表名
func (TransferModel) TableName() string {
	return "transfer"
}

// RecipientAddress 收款地址
func (t *TransferModel) RecipientAddress() common.Address {
	return common.HexToAddress(t.Recipient)
}
