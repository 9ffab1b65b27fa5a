package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

const (
	DefaultFeePercent = 2
	MaxFeePercent     = 5
)

// PlatformLogic 平台运营者与手续费
type PlatformLogic struct {
	e  *Escrow
	mu sync.Mutex
}

// EnsurePlatform 初始化平台配置；已存在时只同步运营者地址，保留当前手续费
func (l *PlatformLogic) EnsurePlatform(ctx context.Context, operator common.Address, defaultFee int) (*model.PlatformModel, error) {
	if defaultFee < 0 {
		return nil, ErrInvalidFee
	}
	if defaultFee > MaxFeePercent {
		return nil, ErrFeeTooHigh
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	platform := &model.PlatformModel{}
	err := l.e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(platform, model.PlatformSingletonId).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			platform = &model.PlatformModel{
				Id:         model.PlatformSingletonId,
				Operator:   operator.Hex(),
				FeePercent: defaultFee,
			}
			return tx.Create(platform).Error
		}
		if err != nil {
			return err
		}
		if platform.OperatorAddress() != operator {
			logger.Warn("Platform operator changed from %s to %s", platform.Operator, operator.Hex())
			platform.Operator = operator.Hex()
			return tx.Save(platform).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize platform: %w", err)
	}
	return platform, nil
}

// SetPlatformFee 修改手续费，只允许运营者调用，对已有项目之后的释放生效
func (l *PlatformLogic) SetPlatformFee(ctx context.Context, caller common.Address, percent int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var old int
	err := l.e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		platform, err := loadPlatform(tx)
		if err != nil {
			return err
		}
		if platform.OperatorAddress() != caller {
			return ErrNotOperator
		}
		if percent < 0 {
			return ErrInvalidFee
		}
		if percent > MaxFeePercent {
			return ErrFeeTooHigh
		}

		old = platform.FeePercent
		platform.FeePercent = percent
		if err := tx.Save(platform).Error; err != nil {
			return err
		}
		return recordEvent(tx, 0, model.EventPlatformFeeUpdated, model.PlatformFeeUpdatedData{
			OldPercent: old,
			NewPercent: percent,
		}, l.e.now())
	})
	if err != nil {
		return l.e.reject("set_platform_fee", err)
	}

	logger.Info("Platform fee changed from %d%% to %d%% by %s", old, percent, caller.Hex())
	return nil
}

// PlatformFeePercentage 当前手续费百分比
func (l *PlatformLogic) PlatformFeePercentage(ctx context.Context) (int, error) {
	platform, err := loadPlatform(l.e.db.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	return platform.FeePercent, nil
}

// Platform 平台配置
func (l *PlatformLogic) Platform(ctx context.Context) (*model.PlatformModel, error) {
	return loadPlatform(l.e.db.WithContext(ctx))
}

func loadPlatform(tx *gorm.DB) (*model.PlatformModel, error) {
	var platform model.PlatformModel
	if err := tx.First(&platform, model.PlatformSingletonId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("platform not initialized")
		}
		return nil, err
	}
	return &platform, nil
}
