package settlementservice

import (
	"context"
	"errors"
	"testing"
	"time"

	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	settlementdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// disputeOpensAfter reports no dispute for the first n checks and a blocking
// one from then on, as if a dispute landed between two checks.
func disputeOpensAfter(n int) func(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error) {
	calls := 0
	return func(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error) {
		calls++
		return calls > n, nil
	}
}

func TestVerifyResult_RechecksDisputesUnderLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour, regs := env.liveTournament(t, terms(5000), "alpha")
	m := env.match(t, tour.ID, "Final")
	env.submit(t, m.ID, first(regs[0]))

	env.gate.HasBlockingDisputeFunc = disputeOpensAfter(1)
	_, err := env.svc.VerifyResult(ctx, env.admin, m.ID)
	assert.True(t, errors.Is(err, apperr.ErrDisputeBlocking))

	mr, err := env.svc.GetResult(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.ResultStatusSubmitted, mr.Status)
	payouts, err := env.store.Settlement().ListPayouts(ctx, nil, tour.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, payouts)
	assert.Empty(t, env.bus.Topics())
}

func TestApprovePayout_RechecksDisputesUnderLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.verifiedPayout(t)

	env.gate.HasBlockingDisputeFunc = disputeOpensAfter(1)
	_, err := env.svc.ApprovePayout(ctx, env.admin, p.ID)
	assert.True(t, errors.Is(err, apperr.ErrDisputeBlocking))

	held, err := env.store.Settlement().GetPayout(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.PayoutStatusPending, held.Status)
	assert.Empty(t, env.scheduler.Scheduled())
}

func TestProcessPayout_DisputeBlocksClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.verifiedPayout(t)
	_, err := env.svc.ApprovePayout(ctx, env.admin, p.ID)
	require.NoError(t, err)

	var asked *uuid.UUID
	env.gate.HasBlockingDisputeFunc = func(ctx context.Context, tournamentID uuid.UUID, matchID *uuid.UUID) (bool, error) {
		asked = matchID
		return true, nil
	}
	_, err = env.svc.ProcessPayout(ctx, p.ID)
	assert.True(t, errors.Is(err, apperr.ErrDisputeBlocking))
	require.NotNil(t, asked)
	assert.Equal(t, p.MatchID, *asked)

	held, err := env.store.Settlement().GetPayout(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.PayoutStatusApproved, held.Status)
	assert.Equal(t, 0, held.Attempts)
	assert.Equal(t, 0, env.gateway.TransferCount())
}

func TestProcessPayout_ReclaimsAbandonedClaimAfterLease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.verifiedPayout(t)
	_, err := env.svc.ApprovePayout(ctx, env.admin, p.ID)
	require.NoError(t, err)

	// A worker claimed the payout and died before recording the outcome.
	_, err = env.store.Settlement().ClaimPayout(ctx, nil, p.ID, time.Time{})
	require.NoError(t, err)

	_, err = env.svc.ProcessPayout(ctx, p.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "the claim is still leased")
	assert.Equal(t, 0, env.gateway.TransferCount())

	env.svc.clock = func() time.Time { return time.Now().Add(time.Hour) }
	done, err := env.svc.ProcessPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.PayoutStatusCompleted, done.Status)
	assert.Equal(t, 2, done.Attempts)
	assert.Equal(t, 1, env.gateway.TransferCount())
}

func TestProcessRefund_ReclaimsAbandonedClaimAfterLease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	refund := env.cancelledRefund(t)

	_, err := env.store.Ledger().ClaimRefund(ctx, nil, refund.ID, time.Time{})
	require.NoError(t, err)

	_, err = env.svc.ProcessRefund(ctx, refund.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState), "the claim is still leased")

	env.svc.clock = func() time.Time { return time.Now().Add(time.Hour) }
	done, err := env.svc.ProcessRefund(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdb.RefundStatusCompleted, done.Status)
	assert.Equal(t, 2, done.Attempts)
}
