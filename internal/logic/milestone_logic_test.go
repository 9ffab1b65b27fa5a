package logic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSingleMilestoneReleaseCompletesProject(t *testing.T) {
	e, _ := newTestEscrow(t)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 30, "10"))
	mustContribute(t, e, project.Id, backerA, units("6"))
	funded := mustContribute(t, e, project.Id, backerB, units("4"))
	require.Equal(t, model.ProjectStatusFunded, funded.Project.Status)

	milestone, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://proof")
	require.NoError(t, err)
	assert.True(t, milestone.Completed)
	assert.Equal(t, "ipfs://proof", milestone.ProofURI)

	result, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	require.NoError(t, err)
	assert.True(t, result.Released)
	requireDecimal(t, units("9.8"), result.Payout)
	requireDecimal(t, units("0.2"), result.Fee)
	assert.True(t, result.Milestone.Verified)
	assert.NotNil(t, result.Milestone.ReleasedAt)
	assert.Equal(t, model.ProjectStatusCompleted, result.Project.Status)

	loaded, err := e.Projects.GetProject(ctx, project.Id)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusCompleted, loaded.Status)
	requireDecimal(t, units("10"), loaded.ReleasedAmount)

	transfers, total, err := e.Transfers.GetProjectTransfers(ctx, project.Id, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	byKind := map[model.TransferKind]*model.TransferModel{}
	for i := range transfers {
		byKind[transfers[i].Kind] = &transfers[i]
		assert.Equal(t, model.TransferStatusPending, transfers[i].Status)
	}
	assert.Equal(t, creator, byKind[model.TransferKindRelease].RecipientAddress())
	requireDecimal(t, units("9.8"), byKind[model.TransferKindRelease].Amount)
	assert.Equal(t, operator, byKind[model.TransferKindFee].RecipientAddress())
	requireDecimal(t, units("0.2"), byKind[model.TransferKindFee].Amount)

	types := eventTypes(t, e, project.Id)
	assert.Equal(t, []model.EventType{
		model.EventMilestoneCompleted,
		model.EventMilestoneVoted,
		model.EventFundsReleased,
		model.EventProjectCompleted,
	}, types[len(types)-4:])
}

func TestVoteBelowMajorityStaysPending(t *testing.T) {
	e, _ := newTestEscrow(t)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 30, "4", "6"))
	mustContribute(t, e, project.Id, backerA, units("5"))
	mustContribute(t, e, project.Id, backerB, units("5"))
	_, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://m0")
	require.NoError(t, err)

	// 5 不严格大于 10/2
	result, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	require.NoError(t, err)
	assert.False(t, result.Released)
	requireDecimal(t, units("5"), result.Milestone.VotesFor)

	// 反对票不会否决里程碑
	result, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerB, false)
	require.NoError(t, err)
	assert.False(t, result.Released)
	assert.False(t, result.Milestone.Verified)
	requireDecimal(t, units("5"), result.Milestone.VotesAgainst)

	votes, err := e.Milestones.GetVotes(ctx, project.Id, 0)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.True(t, votes[0].Approve)
	assert.False(t, votes[1].Approve)

	milestone, err := e.Milestones.GetMilestone(ctx, project.Id, 0)
	require.NoError(t, err)
	assert.True(t, milestone.Completed)
	assert.False(t, milestone.Verified)
}

func TestMultipleMilestonesUseCurrentFee(t *testing.T) {
	e, _ := newTestEscrow(t)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 30, "4", "6"))
	mustContribute(t, e, project.Id, backerA, units("10"))

	_, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://m0")
	require.NoError(t, err)
	first, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	require.NoError(t, err)
	requireDecimal(t, units("3.92"), first.Payout)
	assert.Equal(t, model.ProjectStatusFunded, first.Project.Status)

	// 手续费变更对已有项目后续的释放生效
	require.NoError(t, e.Platform.SetPlatformFee(ctx, operator, 5))

	_, err = e.Milestones.SubmitMilestone(ctx, project.Id, 1, creator, "ipfs://m1")
	require.NoError(t, err)
	second, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 1, backerA, true)
	require.NoError(t, err)
	requireDecimal(t, units("5.7"), second.Payout)
	requireDecimal(t, units("0.3"), second.Fee)
	assert.Equal(t, model.ProjectStatusCompleted, second.Project.Status)

	stats, err := e.Transfers.GetTransferStats(ctx, project.Id)
	require.NoError(t, err)
	requireDecimal(t, units("9.62"), stats.Released)
	requireDecimal(t, units("0.38"), stats.Fees)
	assert.True(t, stats.Refunded.IsZero())
	assert.Equal(t, 4, stats.Count)
}

func TestSubmitMilestoneRejections(t *testing.T) {
	e, _ := newTestEscrow(t)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 30, "10"))

	_, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, backerA, "ipfs://x")
	assert.ErrorIs(t, err, ErrNotCreator)

	_, err = e.Milestones.SubmitMilestone(ctx, project.Id, 3, creator, "ipfs://x")
	assert.ErrorIs(t, err, ErrMilestoneNotFound)

	_, err = e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://x")
	assert.ErrorIs(t, err, ErrProjectNotFunded)

	_, err = e.Milestones.SubmitMilestone(ctx, 77, 0, creator, "ipfs://x")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	mustContribute(t, e, project.Id, backerA, units("10"))
	_, err = e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://x")
	require.NoError(t, err)
	_, err = e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://y")
	assert.ErrorIs(t, err, ErrMilestoneAlreadyCompleted)
}

func TestVoteRejections(t *testing.T) {
	e, _ := newTestEscrow(t)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 30, "4", "6"))
	mustContribute(t, e, project.Id, backerA, units("4"))
	mustContribute(t, e, project.Id, backerB, units("6"))

	_, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	assert.ErrorIs(t, err, ErrMilestoneNotSubmitted)

	_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 5, backerA, true)
	assert.ErrorIs(t, err, ErrMilestoneNotFound)

	_, err = e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://m0")
	require.NoError(t, err)

	_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerC, true)
	assert.ErrorIs(t, err, ErrNotBacker)
	kind, _ := KindOf(err)
	assert.Equal(t, KindAuthorization, kind)

	_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, false)
	require.NoError(t, err)
	_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	assert.ErrorIs(t, err, ErrDuplicateVote)

	result, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerB, true)
	require.NoError(t, err)
	require.True(t, result.Released)

	_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerB, true)
	assert.ErrorIs(t, err, ErrMilestoneAlreadyVerified)
}

var errFeeLegRejected = errors.New("fee leg rejected by node")

// recordingDisburser 记录每次发送，按类型拒绝
type recordingDisburser struct {
	mu     sync.Mutex
	reject map[model.TransferKind]bool
	sent   []model.TransferModel
}

func (d *recordingDisburser) Disburse(_ context.Context, transfer *model.TransferModel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject[transfer.Kind] {
		return errFeeLegRejected
	}
	transfer.TxHash = fmt.Sprintf("0x%064x", len(d.sent)+1)
	d.sent = append(d.sent, *transfer)
	return nil
}

func (d *recordingDisburser) sentOf(kind model.TransferKind) []model.TransferModel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Filter(d.sent, func(t model.TransferModel, _ int) bool { return t.Kind == kind })
}

func TestFailedFeeLegNeverResendsPayout(t *testing.T) {
	disburser := &recordingDisburser{reject: map[model.TransferKind]bool{model.TransferKindFee: true}}
	e, _, closeDB := setupEscrow(t, Options{Disburser: disburser})
	t.Cleanup(closeDB)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 30, "10"))
	mustContribute(t, e, project.Id, backerA, units("10"))
	_, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://m0")
	require.NoError(t, err)

	// 放款在发送前已记账
	result, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	require.NoError(t, err)
	require.True(t, result.Released)
	assert.Empty(t, disburser.sentOf(model.TransferKindRelease))

	for i := 0; i < 3; i++ {
		sent, err := e.Transfers.DisbursePending(ctx, 0)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, 1, sent)
		} else {
			assert.Zero(t, sent)
		}

		_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
		assert.ErrorIs(t, err, ErrMilestoneAlreadyVerified)
	}

	payouts := disburser.sentOf(model.TransferKindRelease)
	require.Len(t, payouts, 1)
	requireDecimal(t, units("9.8"), payouts[0].Amount)

	milestone, err := e.Milestones.GetMilestone(ctx, project.Id, 0)
	require.NoError(t, err)
	assert.True(t, milestone.Verified)

	release, _, err := e.Transfers.GetProjectTransfers(ctx, project.Id, model.TransferKindRelease, 1, 10)
	require.NoError(t, err)
	require.Len(t, release, 1)
	assert.Equal(t, model.TransferStatusSent, release[0].Status)
	assert.Equal(t, payouts[0].TxHash, release[0].TxHash)
	assert.NotNil(t, release[0].SentAt)

	fee, _, err := e.Transfers.GetProjectTransfers(ctx, project.Id, model.TransferKindFee, 1, 10)
	require.NoError(t, err)
	require.Len(t, fee, 1)
	assert.Equal(t, model.TransferStatusPending, fee[0].Status)
	assert.Equal(t, 3, fee[0].Attempts)
	assert.Equal(t, errFeeLegRejected.Error(), fee[0].LastError)

	stats, err := e.Transfers.GetTransferStats(ctx, project.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)

	// 节点恢复后手续费补发一次
	disburser.mu.Lock()
	disburser.reject = nil
	disburser.mu.Unlock()
	sent, err := e.Transfers.DisbursePending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, disburser.sentOf(model.TransferKindFee), 1)
	assert.Len(t, disburser.sentOf(model.TransferKindRelease), 1)

	sent, err = e.Transfers.DisbursePending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestDisbursePendingSkipsClaimedTransfers(t *testing.T) {
	disburser := &recordingDisburser{}
	e, _, closeDB := setupEscrow(t, Options{Disburser: disburser})
	t.Cleanup(closeDB)
	ctx := context.Background()

	project := mustCreate(t, e, projectInput("10", 30, "10"))
	mustContribute(t, e, project.Id, backerA, units("10"))
	_, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://m0")
	require.NoError(t, err)
	_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	require.NoError(t, err)

	// 发送结果未落库的记录停留在 sending，不会重发
	require.NoError(t, e.db.Model(&model.TransferModel{}).
		Where("kind = ?", model.TransferKindRelease).
		Update("status", model.TransferStatusSending).Error)

	sent, err := e.Transfers.DisbursePending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Empty(t, disburser.sentOf(model.TransferKindRelease))
	assert.Len(t, disburser.sentOf(model.TransferKindFee), 1)
}

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		fee    int
		payout decimal.Decimal
	}{
		{"ten units at 2%", units("10"), 2, units("9.8")},
		{"three units at 2%", units("3"), 2, units("2.94")},
		{"three base units truncate", decimal.NewFromInt(3), 2, decimal.NewFromInt(2)},
		{"ninety nine base units", decimal.NewFromInt(99), 5, decimal.NewFromInt(94)},
		{"no fee", units("7"), 0, units("7")},
		{"max fee", units("1"), 5, units("0.95")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payout, fee := SplitFee(tt.amount, tt.fee)
			requireDecimal(t, tt.payout, payout)
			requireDecimal(t, tt.amount.Sub(tt.payout), fee)
		})
	}
}

func TestReleaseThresholdMet(t *testing.T) {
	assert.True(t, ReleaseThresholdMet(decimal.NewFromInt(6), decimal.NewFromInt(10)))
	assert.False(t, ReleaseThresholdMet(decimal.NewFromInt(5), decimal.NewFromInt(10)))
	assert.True(t, ReleaseThresholdMet(decimal.NewFromInt(6), decimal.NewFromInt(11)))
	assert.False(t, ReleaseThresholdMet(decimal.NewFromInt(5), decimal.NewFromInt(11)))
	assert.True(t, ReleaseThresholdMet(decimal.NewFromInt(1), decimal.NewFromInt(1)))
}

func TestVoteWeightProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e, _, closeDB := setupEscrow(rt, Options{})
		defer closeDB()
		ctx := context.Background()

		backers := []common.Address{backerA, backerB, backerC}
		contributed := map[common.Address]decimal.Decimal{}
		total := int64(0)
		for _, b := range backers {
			amount := rapid.Int64Range(1, 100).Draw(rt, "amount")
			contributed[b] = decimal.NewFromInt(amount)
			total += amount
		}

		project := mustCreate(rt, e, CreateProjectInput{
			Creator:      creator,
			Title:        "prop",
			GoalAmount:   decimal.NewFromInt(total),
			DurationDays: 30,
			Milestones:   []MilestoneInput{{Title: "all", Amount: decimal.NewFromInt(total)}},
		})
		for _, b := range backers {
			mustContribute(rt, e, project.Id, b, contributed[b])
		}
		if _, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://p"); err != nil {
			rt.Fatalf("submit: %v", err)
		}

		votesFor := decimal.Zero
		cast := decimal.Zero
		released := false
		order := rapid.Permutation(backers).Draw(rt, "order")
		for _, b := range order {
			approve := rapid.Bool().Draw(rt, "approve")
			result, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, b, approve)
			if released {
				if !errors.Is(err, ErrMilestoneAlreadyVerified) {
					rt.Fatalf("vote after release: %v", err)
				}
				continue
			}
			if err != nil {
				rt.Fatalf("vote: %v", err)
			}
			cast = cast.Add(contributed[b])
			if approve {
				votesFor = votesFor.Add(contributed[b])
			}

			got := result.Milestone.VotesFor.Add(result.Milestone.VotesAgainst)
			if !got.Equal(cast) {
				rt.Fatalf("total weight %s, expected %s", got, cast)
			}
			if result.Released != ReleaseThresholdMet(votesFor, decimal.NewFromInt(total)) {
				rt.Fatalf("released=%t with votesFor=%s raised=%d", result.Released, votesFor, total)
			}
			released = result.Released

			if _, err := e.Milestones.VoteOnMilestone(ctx, project.Id, 0, b, approve); err == nil {
				rt.Fatalf("second vote by %s accepted", b.Hex())
			}
		}
	})
}
