package invitations

import (
	"context"
	"testing"
	"time"

	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notificationFixture(t *testing.T) (*Notifications, *fakeGateway) {
	t.Helper()
	soon := invitation("soon", 20*time.Hour)
	later := invitation("later", 5*24*time.Hour)
	edge := invitation("edge", 48*time.Hour)
	expired := invitation("expired", -time.Hour)
	expired.IsExpired = true
	expired.CanBeAccepted = false
	closed := invitation("closed", 24*time.Hour)
	closed.CanBeAccepted = false

	gw := respondingGateway(func(c *call) result {
		return result{page: models.InvitationPage{
			Items: []models.Invitation{soon, later, edge, expired, closed},
			Page:  models.PageInfo{Current: 1, Last: 1, PerPage: 50, Total: 5},
		}}
	})
	n := NewNotifications(gw, WithPerPage(50))
	require.NoError(t, n.Refresh(context.Background()))
	return n, gw
}

func TestNotificationsRequestPendingOnly(t *testing.T) {
	_, gw := notificationFixture(t)
	require.Len(t, gw.log, 1)
	filters := gw.log[0].filters
	require.NotNil(t, filters.Status)
	require.Equal(t, models.StatusPending, *filters.Status)
	require.Equal(t, 50, filters.PerPage)
}

func TestNotificationsActiveAndUrgent(t *testing.T) {
	n, _ := notificationFixture(t)
	assert.Equal(t, []string{"soon", "later", "edge"}, ids(n.Active()))
	assert.Equal(t, []string{"soon", "edge"}, ids(n.Urgent(testNow)))
	assert.Equal(t, Badge{Count: 3, Urgent: 2}, n.Badge(testNow))

	// a day later "soon" has run out and only "edge" is left in the window.
	assert.Equal(t, []string{"edge"}, ids(n.Urgent(testNow.Add(24*time.Hour+time.Minute))))
}

func TestNotificationsDismiss(t *testing.T) {
	n, gw := notificationFixture(t)

	n.Dismiss("soon")
	assert.True(t, n.Dismissed("soon"))
	assert.Equal(t, 1, n.DismissedCount())
	n.Dismiss("soon")
	assert.Equal(t, 1, n.DismissedCount())
	n.Dismiss("")
	assert.Equal(t, 1, n.DismissedCount())

	assert.Equal(t, []string{"later", "edge"}, ids(n.Active()))
	assert.Equal(t, Badge{Count: 2, Urgent: 1}, n.Badge(testNow))

	// dismissal is local and survives a refresh.
	require.NoError(t, n.Refresh(context.Background()))
	assert.Equal(t, []string{"later", "edge"}, ids(n.Active()))
	assert.Len(t, gw.log, 2)
	for _, c := range gw.log {
		assert.Equal(t, "list", c.method)
	}
}

func TestBadgeLabel(t *testing.T) {
	cases := []struct {
		count, limit int
		want         string
	}{
		{0, 99, ""},
		{1, 99, "1"},
		{99, 99, "99"},
		{100, 99, "99+"},
		{1234, 99, "99+"},
		{1234, 0, "1234"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BadgeLabel(tc.count, tc.limit), "count %d limit %d", tc.count, tc.limit)
	}
	assert.Equal(t, "99+", Badge{Count: 250}.Label(DefaultBadgeCap))
}
