package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sitegrid/sitegrid/internal/config"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func testInvitation(id string, status models.Status, expiresAt time.Time) models.Invitation {
	return models.Invitation{
		ID:               id,
		Token:            "tok-" + id,
		Status:           status,
		CreatedAt:        expiresAt.Add(-7 * 24 * time.Hour),
		ExpiresAt:        expiresAt,
		CanBeAccepted:    status == models.StatusPending,
		FromOrganization: models.Organization{ID: "org-1", Name: "Acme Builders", IsVerified: true},
		InvitedBy:        models.Inviter{Name: "Dana", Email: "dana@acme.test"},
	}
}

func testPrinter(format, query string) (*printer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &printer{out: out, format: format, query: query}, out
}

func TestShowColumns(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	items := []models.Invitation{
		testInvitation("inv-1", models.StatusPending, now.Add(20*time.Hour)),
		testInvitation("inv-2", models.StatusAccepted, now.Add(72*time.Hour)),
	}

	p, out := testPrinter(config.OutputColumn, "")
	require.NoError(p.show(invitationsTableFields(now), items))
	text := out.String()
	require.Contains(text, "INVITATION ID")
	require.Contains(text, "inv-1")
	require.Contains(text, "Acme Builders ✓")
	require.Contains(text, "Dana <dana@acme.test>")
	require.Contains(text, "<1 day")
	require.Contains(text, "accepted")

	p, out = testPrinter(config.OutputNoHeader, "")
	require.NoError(p.show(invitationsTableFields(now), items))
	require.NotContains(out.String(), "INVITATION ID")
	require.Contains(out.String(), "inv-2")
}

func TestShowEmptyTable(t *testing.T) {
	p, out := testPrinter(config.OutputColumn, "")
	var items []models.Invitation
	require.NoError(t, p.show(invitationsTableFields(time.Now()), items))
	require.Contains(t, out.String(), "TOKEN")
}

func TestShowJsonQuery(t *testing.T) {
	require := require.New(t)
	now := time.Now()
	page := models.InvitationPage{
		Items: []models.Invitation{
			testInvitation("inv-1", models.StatusPending, now.Add(time.Hour)),
			testInvitation("inv-2", models.StatusDeclined, now.Add(time.Hour)),
		},
		Page: models.PageInfo{Current: 1, Last: 3, Total: 42, HasMore: true},
	}

	p, out := testPrinter(config.OutputJsonRaw, "")
	require.NoError(p.show(nil, page))
	var decoded models.InvitationPage
	require.NoError(json.Unmarshal(out.Bytes(), &decoded))
	require.Len(decoded.Items, 2)
	require.Equal(42, decoded.Page.Total)

	p, out = testPrinter(config.OutputJsonRaw, `.items[] | select(.status == "pending") | .id`)
	require.NoError(p.show(nil, page))
	require.Equal(`"inv-1"`, strings.TrimSpace(out.String()))

	p, _ = testPrinter(config.OutputJson, `.items[`)
	require.ErrorContains(p.show(nil, page), "invalid --query")
}

func TestShowYaml(t *testing.T) {
	p, out := testPrinter(config.OutputYaml, ".received_invitations")
	stats := models.Stats{ReceivedInvitations: models.Counters{Total: 10, Pending: 3, Accepted: 6, Declined: 1}}
	require.NoError(t, p.show(nil, stats))
	require.Equal(t, "accepted: 6\ndeclined: 1\npending: 3\ntotal: 10\n", out.String())
}

func TestShowUnknownFormat(t *testing.T) {
	p, _ := testPrinter("xml", "")
	require.Error(t, p.show(nil, models.Stats{}))
}

func TestStatsTable(t *testing.T) {
	p, out := testPrinter(config.OutputColumn, "")
	rows := []statsRow{
		{Direction: "received", Counters: models.Counters{Total: 10, Pending: 3, Accepted: 6, Declined: 1}},
		{Direction: "sent", Counters: models.Counters{Total: 12345}},
	}
	require.NoError(t, p.show(statsTableFields(), rows))
	text := out.String()
	require.Contains(t, text, "60%")
	require.Contains(t, text, "30%")
	require.Contains(t, text, "12,345")
	require.Contains(t, text, "0%")
}

func TestDetailTable(t *testing.T) {
	now := time.Now()
	inv := testInvitation("inv-9", models.StatusPending, now.Add(48*time.Hour))
	inv.InvitationMessage = "Join our framing crew"
	p, out := testPrinter(config.OutputColumn, "")
	require.NoError(t, p.show(detailTableFields(now), invitationDetail{Invitation: inv}))
	require.Contains(t, out.String(), "Join our framing crew")
	require.Contains(t, out.String(), "from now")
}

func TestStatusText(t *testing.T) {
	for _, s := range models.Statuses {
		require.Equal(t, s.String(), statusText(s))
	}
	require.Equal(t, "unknown", statusText(models.Status(0)))
}

func TestShowSuccessfullyOnlyForHumans(t *testing.T) {
	p, out := testPrinter(config.OutputColumn, "")
	p.showSuccessfully("declined %s", "inv-1")
	require.Equal(t, "declined inv-1\n", out.String())

	p, out = testPrinter(config.OutputJson, "")
	p.showSuccessfully("declined %s", "inv-1")
	require.Empty(t, out.String())
}
