package logic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blues/pledge/internal/config"
	"github.com/blues/pledge/internal/database"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	operator = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	creator  = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	backerA  = common.HexToAddress("0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db")
	backerB  = common.HexToAddress("0x78731D3Ca6b7E34aC0F824c42a7cC18A495cabaB")
	backerC  = common.HexToAddress("0x617F2E2fD72FD9D5503197092aC168c91465E7f2")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// openTestDB 每个测试独立的内存库
func openTestDB(t require.TestingT) (*gorm.DB, func()) {
	db, err := database.Init(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	return db, func() { _ = database.Close(db) }
}

// setupEscrow 初始化托管核心与平台配置，手续费 2%
func setupEscrow(t require.TestingT, opts Options) (*Escrow, *fakeClock, func()) {
	db, closeDB := openTestDB(t)
	clock := newFakeClock()
	if opts.Clock == nil {
		opts.Clock = clock.Now
	}
	e := New(db, opts)
	_, err := e.Platform.EnsurePlatform(context.Background(), operator, DefaultFeePercent)
	require.NoError(t, err)
	return e, clock, closeDB
}

func newTestEscrow(t *testing.T) (*Escrow, *fakeClock) {
	e, clock, closeDB := setupEscrow(t, Options{})
	t.Cleanup(closeDB)
	return e, clock
}

// units 单位金额转最小单位
func units(s string) decimal.Decimal {
	wei, err := model.ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return wei
}

func projectInput(goal string, days int, milestones ...string) CreateProjectInput {
	in := CreateProjectInput{
		Creator:      creator,
		Title:        "Solar Kiosk",
		Description:  "Off-grid charging stations",
		Category:     "energy",
		ImageURI:     "ipfs://kiosk",
		GoalAmount:   units(goal),
		DurationDays: days,
	}
	for i, m := range milestones {
		in.Milestones = append(in.Milestones, MilestoneInput{
			Title:  "Phase " + string(rune('A'+i)),
			Amount: units(m),
		})
	}
	return in
}

func mustCreate(t require.TestingT, e *Escrow, in CreateProjectInput) *model.ProjectModel {
	project, err := e.Projects.CreateProject(context.Background(), in)
	require.NoError(t, err)
	return project
}

func mustContribute(t require.TestingT, e *Escrow, projectID int64, backer common.Address, amount decimal.Decimal) *ContributeResult {
	result, err := e.Contributions.Contribute(context.Background(), projectID, backer, amount)
	require.NoError(t, err)
	return result
}

func requireDecimal(t require.TestingT, expected, actual decimal.Decimal) {
	require.True(t, expected.Equal(actual), "expected %s, got %s", expected, actual)
}

func eventTypes(t require.TestingT, e *Escrow, projectID int64) []model.EventType {
	events, err := e.Events.EventsSince(context.Background(), projectID, 0, 1000)
	require.NoError(t, err)
	types := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	return types
}

func addr(hex string) common.Address {
	return common.HexToAddress(hex)
}
