package invitations

import (
	"context"
	"testing"
	"time"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestDetailLoadUsesCache(t *testing.T) {
	require := require.New(t)
	clock := &fakeClock{now: testNow}
	gw := respondingGateway(func(c *call) result {
		return result{inv: invitation("a", 72*time.Hour)}
	})
	detail := NewDetailController(gw, WithClock(clock.Now), WithCacheTTL(time.Minute))
	ctx := context.Background()

	require.NoError(detail.Load(ctx, "tok-a"))
	require.NoError(detail.Load(ctx, "tok-a"))
	require.Equal(1, gw.count())
	require.Equal("a", detail.State().Invitation.ID)

	require.NoError(detail.Reload(ctx))
	require.Equal(2, gw.count())

	clock.now = clock.now.Add(2 * time.Minute)
	require.NoError(detail.Load(ctx, "tok-a"))
	require.Equal(3, gw.count())
}

func TestDetailAcceptPatchesAfterSuccess(t *testing.T) {
	require := require.New(t)
	clock := &fakeClock{now: testNow}
	inv := invitation("a", 72*time.Hour)
	gw := respondingGateway(func(c *call) result {
		switch c.method {
		case "get":
			return result{inv: inv}
		case "accept":
			return result{accept: models.AcceptResult{
				Contractor: models.ContractorLink{ID: "c-1", Name: "Org a", ConnectedAt: testNow},
				Message:    "Invitation accepted",
			}}
		}
		return result{err: client.ErrInvalidRequest}
	})
	detail := NewDetailController(gw, WithClock(clock.Now))
	ctx := context.Background()
	require.NoError(detail.Load(ctx, "tok-a"))

	clock.now = testNow.Add(time.Minute)
	res, err := detail.Accept(ctx)
	require.NoError(err)
	require.Equal("c-1", res.Contractor.ID)

	state := detail.State()
	require.Equal(models.StatusAccepted, state.Invitation.Status)
	require.NotNil(state.Invitation.AcceptedAt)
	require.Equal(clock.now, *state.Invitation.AcceptedAt)
	require.Nil(state.Invitation.DeclinedAt)
	require.Nil(state.Invitation.DeclineReason)
	require.False(state.Invitation.CanBeAccepted)
	require.Equal("Invitation accepted", state.Message)
	require.Equal("c-1", state.Contractor.ID)

	// the patched invitation is what the cache serves now.
	require.NoError(detail.Load(ctx, "tok-a"))
	require.Equal(models.StatusAccepted, detail.State().Invitation.Status)

	// a terminal invitation is not sent to the server again.
	calls := gw.count()
	_, err = detail.Accept(ctx)
	require.ErrorIs(err, ErrNotActionable)
	_, err = detail.Decline(ctx, "")
	require.ErrorIs(err, ErrNotActionable)
	require.Equal(calls, gw.count())
}

func TestDetailDeclineFailureLeavesInvitation(t *testing.T) {
	require := require.New(t)
	var declineErr error = &client.Error{Kind: client.KindAlreadyProcessed, Message: "Invitation already accepted"}
	gw := respondingGateway(func(c *call) result {
		if c.method == "get" {
			return result{inv: invitation("a", 72*time.Hour)}
		}
		if declineErr != nil {
			return result{err: declineErr}
		}
		return result{decline: models.DeclineResult{Message: "declined"}}
	})
	detail := NewDetailController(gw, WithClock(func() time.Time { return testNow }))
	ctx := context.Background()
	require.NoError(detail.Load(ctx, "tok-a"))

	ok, err := detail.Decline(ctx, "not now")
	require.False(ok)
	require.ErrorIs(err, client.ErrAlreadyProcessed)
	state := detail.State()
	require.Equal(models.StatusPending, state.Invitation.Status)
	require.Equal("Invitation already accepted", state.Actions.Decline.ErrMessage())

	declineErr = nil
	ok, err = detail.Decline(ctx, "not now ")
	require.NoError(err)
	require.True(ok)
	state = detail.State()
	require.Equal(models.StatusDeclined, state.Invitation.Status)
	require.Equal("not now ", *state.Invitation.DeclineReason)
	require.NoError(state.Actions.Decline.Err)
}

func TestDetailNotActionable(t *testing.T) {
	expired := invitation("a", -time.Hour)
	expired.IsExpired = true
	expired.CanBeAccepted = false
	gw := respondingGateway(func(c *call) result { return result{inv: expired} })
	detail := NewDetailController(gw)

	_, err := detail.Accept(context.Background())
	require.ErrorIs(t, err, ErrNotActionable, "nothing loaded")

	require.NoError(t, detail.Load(context.Background(), "tok-a"))
	_, err = detail.Accept(context.Background())
	require.ErrorIs(t, err, ErrNotActionable)
	require.Equal(t, 1, gw.count())
}

func TestDetailLoadFailure(t *testing.T) {
	gw := respondingGateway(func(c *call) result { return result{err: client.ErrNotFound} })
	detail := NewDetailController(gw)
	err := detail.Load(context.Background(), "missing")
	require.ErrorIs(t, err, client.ErrNotFound)
	state := detail.State()
	require.Nil(t, state.Invitation)
	require.Equal(t, client.KindNotFound.DefaultMessage(), state.ErrMessage())
	require.False(t, state.Loading)
}
