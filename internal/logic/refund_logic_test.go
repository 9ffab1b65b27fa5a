package logic

import (
	"context"
	"testing"
	"time"

	"github.com/blues/pledge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundAfterFailedDeadline(t *testing.T) {
	e, clock := newTestEscrow(t)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 1, "10"))
	mustContribute(t, e, project.Id, backerA, units("5"))

	clock.Advance(48 * time.Hour)
	amount, err := e.Refunds.Refund(ctx, project.Id, backerA)
	require.NoError(t, err)
	requireDecimal(t, units("5"), amount)

	loaded, err := e.Projects.GetProject(ctx, project.Id)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusFailed, loaded.Status)
	assert.True(t, loaded.CurrentAmount.IsZero())
	requireDecimal(t, units("5"), loaded.RefundedAmount)

	_, err = e.Refunds.Refund(ctx, project.Id, backerA)
	assert.ErrorIs(t, err, ErrNothingToRefund)

	remaining, err := e.Contributions.GetContribution(ctx, project.Id, backerA)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())

	transfers, _, err := e.Transfers.GetProjectTransfers(ctx, project.Id, model.TransferKindRefund, 1, 10)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, backerA, transfers[0].RecipientAddress())
	assert.Equal(t, model.TransferStatusPending, transfers[0].Status)

	types := eventTypes(t, e, project.Id)
	assert.Equal(t, []model.EventType{model.EventProjectFailed, model.EventRefundIssued}, types[len(types)-2:])

	sent, err := e.Transfers.DisbursePending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	transfers, _, err = e.Transfers.GetProjectTransfers(ctx, project.Id, model.TransferKindRefund, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, model.TransferStatusSent, transfers[0].Status)
	assert.Equal(t, 1, transfers[0].Attempts)
	assert.NotNil(t, transfers[0].SentAt)
}

func TestRefundEveryBackerOnce(t *testing.T) {
	e, clock := newTestEscrow(t)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 2, "10"))
	mustContribute(t, e, project.Id, backerA, units("2"))
	mustContribute(t, e, project.Id, backerB, units("3"))
	mustContribute(t, e, project.Id, backerA, units("1"))

	clock.Advance(3 * 24 * time.Hour)
	for backer, want := range map[string]string{backerA.Hex(): "3", backerB.Hex(): "3"} {
		amount, err := e.Refunds.Refund(ctx, project.Id, addr(backer))
		require.NoError(t, err)
		requireDecimal(t, units(want), amount)
	}

	_, err := e.Refunds.Refund(ctx, project.Id, backerC)
	assert.ErrorIs(t, err, ErrNothingToRefund)

	loaded, err := e.Projects.GetProject(ctx, project.Id)
	require.NoError(t, err)
	assert.True(t, loaded.CurrentAmount.IsZero())
	requireDecimal(t, units("6"), loaded.RefundedAmount)

	failedEvents := 0
	for _, typ := range eventTypes(t, e, project.Id) {
		if typ == model.EventProjectFailed {
			failedEvents++
		}
	}
	assert.Equal(t, 1, failedEvents)
}

func TestRefundUnavailable(t *testing.T) {
	e, clock := newTestEscrow(t)
	ctx := context.Background()

	active := mustCreate(t, e, projectInput("10", 1, "10"))
	mustContribute(t, e, active.Id, backerA, units("5"))
	funded := mustCreate(t, e, projectInput("10", 1, "10"))
	mustContribute(t, e, funded.Id, backerA, units("10"))

	_, err := e.Refunds.Refund(ctx, active.Id, backerA)
	assert.ErrorIs(t, err, ErrRefundUnavailable)

	// 已达成目标的项目即使过了截止时间也不退款
	clock.Advance(10 * 24 * time.Hour)
	_, err = e.Refunds.Refund(ctx, funded.Id, backerA)
	assert.ErrorIs(t, err, ErrRefundUnavailable)

	_, err = e.Refunds.Refund(ctx, 404, backerA)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	loaded, err := e.Projects.GetProject(ctx, funded.Id)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusFunded, loaded.Status)
}

func TestExpireProjects(t *testing.T) {
	e, clock := newTestEscrow(t)
	ctx := context.Background()

	short := mustCreate(t, e, projectInput("10", 1, "10"))
	mustContribute(t, e, short.Id, backerA, units("5"))
	empty := mustCreate(t, e, projectInput("10", 1, "10"))
	long := mustCreate(t, e, projectInput("10", 30, "10"))
	funded := mustCreate(t, e, projectInput("10", 1, "10"))
	mustContribute(t, e, funded.Id, backerA, units("10"))

	count, err := e.Refunds.ExpireProjects(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	clock.Advance(2 * 24 * time.Hour)
	count, err = e.Refunds.ExpireProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for id, want := range map[int64]model.ProjectStatus{
		short.Id:  model.ProjectStatusFailed,
		empty.Id:  model.ProjectStatusFailed,
		long.Id:   model.ProjectStatusActive,
		funded.Id: model.ProjectStatusFunded,
	} {
		loaded, err := e.Projects.GetProject(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, loaded.Status, "project %d", id)
	}

	// 失败后支持者仍可退款
	amount, err := e.Refunds.Refund(ctx, short.Id, backerA)
	require.NoError(t, err)
	requireDecimal(t, units("5"), amount)

	count, err = e.Refunds.ExpireProjects(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
