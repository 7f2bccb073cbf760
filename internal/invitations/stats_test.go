package invitations

import (
	"context"
	"math"
	"testing"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsFetchKeepsSnapshotOnFailure(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	received := models.Counters{Total: 10, Pending: 3, Accepted: 6, Declined: 1}
	var fail error
	gw := respondingGateway(func(c *call) result {
		if fail != nil {
			return result{err: fail}
		}
		return result{stats: models.Stats{ReceivedInvitations: received}}
	})
	stats := NewStatsAggregator(gw)
	require.Nil(stats.State().Snapshot)

	require.NoError(stats.Fetch(ctx))
	snapshot := stats.State().Snapshot
	require.NotNil(snapshot)
	require.Equal("60%", FormatPercent(snapshot.ReceivedInvitations.SuccessRate()))
	require.Equal("30%", FormatPercent(snapshot.ReceivedInvitations.PendingRate()))
	require.Equal("10%", FormatPercent(snapshot.ReceivedInvitations.DeclineRate()))

	fail = client.ErrTransport
	require.Error(stats.Fetch(ctx))
	state := stats.State()
	require.Equal(received, state.Snapshot.ReceivedInvitations)
	require.Equal(client.KindTransportFailure.DefaultMessage(), state.ErrMessage())

	fail = nil
	require.NoError(stats.Fetch(ctx))
	require.NoError(stats.State().Err)
}

func TestStatsFetchSingleFlight(t *testing.T) {
	gw := newFakeGateway()
	stats := NewStatsAggregator(gw)
	done := async(func() error { return stats.Fetch(context.Background()) })
	c := gw.next(t)
	require.True(t, stats.State().Loading)
	require.ErrorIs(t, stats.Fetch(context.Background()), ErrBusy)
	c.Resolve(result{stats: models.Stats{}})
	require.NoError(t, wait(t, done))
	require.False(t, stats.State().Loading)
	require.Equal(t, 1, gw.count())
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "0%", FormatPercent(models.Counters{}.SuccessRate()))
	assert.Equal(t, "0%", FormatPercent(math.NaN()))
	assert.Equal(t, "100%", FormatPercent(1))
	assert.Equal(t, "67%", FormatPercent(2.0/3.0))
}
