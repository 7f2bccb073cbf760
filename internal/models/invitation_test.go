package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingInvitation() Invitation {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return Invitation{
		ID:                "inv-1",
		Token:             "tok-1",
		Status:            StatusPending,
		InvitationMessage: "Join our framing crew",
		CreatedAt:         created,
		ExpiresAt:         created.Add(7 * 24 * time.Hour),
		CanBeAccepted:     true,
		FromOrganization:  Organization{ID: "org-1", Name: "Acme Builders", IsVerified: true},
		InvitedBy:         Inviter{Name: "Dana", Email: "dana@acme.test"},
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := ParseStatus("archived")
	require.Error(t, err)
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusAccepted.IsTerminal())
	assert.True(t, StatusDeclined.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.True(t, Status(0).IsTerminal())
}

func TestStatusJSON(t *testing.T) {
	var inv Invitation
	err := json.Unmarshal([]byte(`{"id":"a","status":"declined"}`), &inv)
	require.NoError(t, err)
	require.Equal(t, StatusDeclined, inv.Status)

	err = json.Unmarshal([]byte(`{"id":"a","status":"archived"}`), &inv)
	require.Error(t, err)

	_, err = json.Marshal(Invitation{ID: "zero"})
	require.Error(t, err)
}

func TestAcceptPatch(t *testing.T) {
	require := require.New(t)
	inv := pendingInvitation()
	at := inv.CreatedAt.Add(time.Hour)

	accepted, err := inv.Accept(at)
	require.NoError(err)
	require.Equal(StatusAccepted, accepted.Status)
	require.NotNil(accepted.AcceptedAt)
	require.Equal(at, *accepted.AcceptedAt)
	require.Nil(accepted.DeclinedAt)
	require.Nil(accepted.DeclineReason)
	require.False(accepted.CanBeAccepted)
	require.NoError(accepted.Validate())

	// the original snapshot is untouched
	require.Equal(StatusPending, inv.Status)
	require.Nil(inv.AcceptedAt)

	_, err = accepted.Accept(at)
	require.ErrorIs(err, ErrTerminalStatus)
	_, err = accepted.Decline(at, "")
	require.ErrorIs(err, ErrTerminalStatus)
}

func TestDeclinePatch(t *testing.T) {
	require := require.New(t)
	inv := pendingInvitation()
	at := inv.CreatedAt.Add(time.Hour)

	declined, err := inv.Decline(at, "booked until autumn")
	require.NoError(err)
	require.Equal(StatusDeclined, declined.Status)
	require.Equal(at, *declined.DeclinedAt)
	require.Equal("booked until autumn", *declined.DeclineReason)
	require.Nil(declined.AcceptedAt)
	require.NoError(declined.Validate())

	noReason, err := inv.Decline(at, "")
	require.NoError(err)
	require.Nil(noReason.DeclineReason)
	require.NoError(noReason.Validate())

	expired := inv
	expired.Status = StatusExpired
	expired.CanBeAccepted = false
	_, err = expired.Decline(at, "")
	require.ErrorIs(err, ErrTerminalStatus)
}

func TestValidate(t *testing.T) {
	at := time.Now()
	reason := "no"

	cases := []struct {
		name  string
		patch func(*Invitation)
		ok    bool
	}{
		{"pending", func(i *Invitation) {}, true},
		{"accepted without timestamp", func(i *Invitation) { i.Status = StatusAccepted; i.CanBeAccepted = false }, false},
		{"accepted with decline reason", func(i *Invitation) {
			i.Status, i.AcceptedAt, i.DeclineReason, i.CanBeAccepted = StatusAccepted, &at, &reason, false
		}, false},
		{"declined with accepted_at", func(i *Invitation) {
			i.Status, i.DeclinedAt, i.AcceptedAt, i.CanBeAccepted = StatusDeclined, &at, &at, false
		}, false},
		{"expired but acceptable", func(i *Invitation) { i.IsExpired = true }, false},
		{"expired status", func(i *Invitation) { i.Status, i.IsExpired, i.CanBeAccepted = StatusExpired, true, false }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := pendingInvitation()
			tc.patch(&inv)
			if tc.ok {
				assert.NoError(t, inv.Validate())
			} else {
				assert.Error(t, inv.Validate())
			}
		})
	}
}
