package logic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestContributeTransitionsToFundedOnce(t *testing.T) {
	e, _ := newTestEscrow(t)
	ctx := context.Background()
	project := mustCreate(t, e, projectInput("10", 30, "10"))

	first := mustContribute(t, e, project.Id, backerA, units("6"))
	assert.False(t, first.Funded)
	assert.Equal(t, model.ProjectStatusActive, first.Project.Status)

	second := mustContribute(t, e, project.Id, backerB, units("4"))
	assert.True(t, second.Funded)
	assert.Equal(t, model.ProjectStatusFunded, second.Project.Status)

	// 达成目标后继续累计，但不会再次触发状态变更
	third := mustContribute(t, e, project.Id, backerA, units("1"))
	assert.False(t, third.Funded)
	requireDecimal(t, units("11"), third.Project.CurrentAmount)

	amount, err := e.Contributions.GetContribution(ctx, project.Id, backerA)
	require.NoError(t, err)
	requireDecimal(t, units("7"), amount)

	backers, err := e.Contributions.GetBackers(ctx, project.Id)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{backerA, backerB}, backers)

	assert.Equal(t, []model.EventType{
		model.EventProjectCreated,
		model.EventContributionMade, model.EventRewardMinted,
		model.EventContributionMade, model.EventProjectFunded, model.EventRewardMinted,
		model.EventContributionMade, model.EventRewardMinted,
	}, eventTypes(t, e, project.Id))
}

func TestContributeRejections(t *testing.T) {
	e, clock := newTestEscrow(t)
	ctx := context.Background()
	project := mustCreate(t, e, projectInput("10", 1, "10"))

	_, err := e.Contributions.Contribute(ctx, project.Id, backerA, decimal.Zero)
	assert.ErrorIs(t, err, ErrZeroContribution)

	_, err = e.Contributions.Contribute(ctx, project.Id, backerA, decimal.RequireFromString("0.5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = e.Contributions.Contribute(ctx, 99, backerA, units("1"))
	assert.ErrorIs(t, err, ErrProjectNotFound)

	clock.Advance(25 * time.Hour)
	_, err = e.Contributions.Contribute(ctx, project.Id, backerA, units("1"))
	assert.ErrorIs(t, err, ErrInactiveProject)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindState, kind)

	amount, err := e.Contributions.GetContribution(ctx, project.Id, backerA)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
}

func TestContributeRejectedAfterCompletion(t *testing.T) {
	e, _ := newTestEscrow(t)
	ctx := context.Background()
	project := mustCreate(t, e, projectInput("10", 30, "10"))
	mustContribute(t, e, project.Id, backerA, units("10"))

	_, err := e.Milestones.SubmitMilestone(ctx, project.Id, 0, creator, "ipfs://done")
	require.NoError(t, err)
	_, err = e.Milestones.VoteOnMilestone(ctx, project.Id, 0, backerA, true)
	require.NoError(t, err)

	_, err = e.Contributions.Contribute(ctx, project.Id, backerB, units("1"))
	assert.ErrorIs(t, err, ErrInactiveProject)
}

func TestListContributions(t *testing.T) {
	e, _ := newTestEscrow(t)
	project := mustCreate(t, e, projectInput("10", 30, "10"))
	mustContribute(t, e, project.Id, backerA, units("1"))
	mustContribute(t, e, project.Id, backerB, units("2"))
	mustContribute(t, e, project.Id, backerA, units("3"))

	contributions, total, err := e.Contributions.ListContributions(context.Background(), project.Id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, contributions, 2)
	assert.Equal(t, backerA.Hex(), contributions[0].Backer)
	requireDecimal(t, units("4"), contributions[0].Amount)
}

func TestConcurrentContributions(t *testing.T) {
	e, _ := newTestEscrow(t)
	project := mustCreate(t, e, projectInput("100", 30, "100"))
	other := mustCreate(t, e, projectInput("100", 30, "100"))

	backers := []common.Address{backerA, backerB, backerC}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := project.Id
			if i%3 == 0 {
				target = other.Id
			}
			_, err := e.Contributions.Contribute(context.Background(), target, backers[i%len(backers)], units("1"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := e.Projects.GetProject(context.Background(), project.Id)
	require.NoError(t, err)
	requireDecimal(t, units("20"), loaded.CurrentAmount)

	loaded, err = e.Projects.GetProject(context.Background(), other.Id)
	require.NoError(t, err)
	requireDecimal(t, units("10"), loaded.CurrentAmount)
}

func TestContributionLedgerProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e, _, closeDB := setupEscrow(rt, Options{})
		defer closeDB()
		ctx := context.Background()

		goal := rapid.Int64Range(1, 50).Draw(rt, "goal")
		project := mustCreate(rt, e, CreateProjectInput{
			Creator:      creator,
			Title:        "prop",
			GoalAmount:   decimal.NewFromInt(goal),
			DurationDays: 30,
			Milestones:   []MilestoneInput{{Title: "all", Amount: decimal.NewFromInt(goal)}},
		})

		backers := []common.Address{backerA, backerB, backerC}
		expected := map[common.Address]int64{}
		fundedTransitions := 0
		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			backer := rapid.SampledFrom(backers).Draw(rt, "backer")
			amount := rapid.Int64Range(1, 20).Draw(rt, "amount")

			result := mustContribute(rt, e, project.Id, backer, decimal.NewFromInt(amount))
			expected[backer] += amount
			if result.Funded {
				fundedTransitions++
			}

			sum := decimal.Zero
			for _, b := range backers {
				got, err := e.Contributions.GetContribution(ctx, project.Id, b)
				if err != nil {
					rt.Fatalf("get contribution: %v", err)
				}
				if !got.Equal(decimal.NewFromInt(expected[b])) {
					rt.Fatalf("backer %s: expected %d, got %s", b.Hex(), expected[b], got)
				}
				sum = sum.Add(got)
			}
			if !sum.Equal(result.Project.CurrentAmount) {
				rt.Fatalf("current amount %s differs from ledger sum %s", result.Project.CurrentAmount, sum)
			}
		}

		total := int64(0)
		for _, v := range expected {
			total += v
		}
		wantTransitions := 0
		if total >= goal {
			wantTransitions = 1
		}
		if fundedTransitions != wantTransitions {
			rt.Fatalf("expected %d funded transitions, got %d", wantTransitions, fundedTransitions)
		}

		funded := 0
		for _, typ := range eventTypes(rt, e, project.Id) {
			if typ == model.EventProjectFunded {
				funded++
			}
		}
		if funded != wantTransitions {
			rt.Fatalf("expected %d ProjectFunded events, got %d", wantTransitions, funded)
		}
	})
}
