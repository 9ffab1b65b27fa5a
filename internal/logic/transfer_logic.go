package logic

import (
	"context"
	"fmt"
	"sync"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultDisburseBatch 每轮最多发送的转账数
const DefaultDisburseBatch = 100

// TransferLogic 资金流出记录查询
type TransferLogic struct {
	e  *Escrow
	mu sync.Mutex
}

// TransferStats 项目资金流出汇总
type TransferStats struct {
	Released decimal.Decimal `json:"released"`
	Fees     decimal.Decimal `json:"fees"`
	Refunded decimal.Decimal `json:"refunded"`
	Count    int             `json:"count"`
	Pending  int             `json:"pending"` // 已记账尚未发送
}

// GetProjectTransfers 分页获取项目的资金流出记录，kind 为空表示全部类型
func (l *TransferLogic) GetProjectTransfers(ctx context.Context, projectID int64, kind model.TransferKind, page, pageSize int) ([]model.TransferModel, int64, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, 0, err
	}

	query := db.Model(&model.TransferModel{}).Where("project_id = ?", projectID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transfers: %w", err)
	}

	page, pageSize = NormalizePage(page, pageSize)
	var transfers []model.TransferModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transfers).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load transfers: %w", err)
	}
	return transfers, total, nil
}

// GetTransferStats 按类型汇总项目的资金流出
func (l *TransferLogic) GetTransferStats(ctx context.Context, projectID int64) (*TransferStats, error) {
	db := l.e.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}

	var transfers []model.TransferModel
	if err := db.Select("kind", "amount", "status").Where("project_id = ?", projectID).Find(&transfers).Error; err != nil {
		return nil, fmt.Errorf("failed to load transfers: %w", err)
	}

	sum := func(kind model.TransferKind) decimal.Decimal {
		return lo.Reduce(transfers, func(acc decimal.Decimal, t model.TransferModel, _ int) decimal.Decimal {
			if t.Kind != kind {
				return acc
			}
			return acc.Add(t.Amount)
		}, decimal.Zero)
	}
	return &TransferStats{
		Released: sum(model.TransferKindRelease),
		Fees:     sum(model.TransferKindFee),
		Refunded: sum(model.TransferKindRefund),
		Count:    len(transfers),
		Pending:  lo.CountBy(transfers, func(t model.TransferModel) bool {
			return t.Status != model.TransferStatusSent
		}),
	}, nil
}

// DisbursePending 按记账顺序发送待发送的转账，返回本轮成功发送的笔数。
// 每笔先从 pending 认领为 sending 再发送：发送失败退回 pending 等下一轮，
// 发送成功但结果未能落库的记录停留在 sending，不会再次发送。
func (l *TransferLogic) DisbursePending(ctx context.Context, limit int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = DefaultDisburseBatch
	}
	db := l.e.db.WithContext(ctx)

	var pending []model.TransferModel
	if err := db.Where("status = ?", model.TransferStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending transfers: %w", err)
	}

	sent := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		transfer := &pending[i]

		claim := db.Model(&model.TransferModel{}).
			Where("id = ? AND status = ?", transfer.Id, model.TransferStatusPending).
			Update("status", model.TransferStatusSending)
		if claim.Error != nil {
			return sent, fmt.Errorf("failed to claim transfer %d: %w", transfer.Id, claim.Error)
		}
		if claim.RowsAffected == 0 {
			continue
		}

		if err := l.e.disburser.Disburse(ctx, transfer); err != nil {
			l.e.metrics.Disbursement(string(transfer.Kind), false)
			logger.Warn("Failed to send %s transfer %d of project %d: %v", transfer.Kind, transfer.Id, transfer.ProjectId, err)
			if uerr := db.Model(&model.TransferModel{}).
				Where("id = ?", transfer.Id).
				Updates(map[string]interface{}{
					"status":     model.TransferStatusPending,
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": err.Error(),
				}).Error; uerr != nil {
				logger.Error("Transfer %d stuck in sending after a failed send: %v", transfer.Id, uerr)
			}
			continue
		}

		now := l.e.now()
		if err := db.Model(&model.TransferModel{}).
			Where("id = ?", transfer.Id).
			Updates(map[string]interface{}{
				"status":     model.TransferStatusSent,
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": "",
				"tx_hash":    transfer.TxHash,
				"sent_at":    &now,
			}).Error; err != nil {
			logger.Error("Transfer %d was sent (tx %s) but not recorded, reconcile manually: %v", transfer.Id, transfer.TxHash, err)
			continue
		}
		l.e.metrics.Disbursement(string(transfer.Kind), true)
		sent++
	}

	if sent > 0 {
		logger.Info("Disbursed %d of %d pending transfers", sent, len(pending))
	}
	return sent, nil
}
