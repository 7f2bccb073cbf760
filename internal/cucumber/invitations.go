// Describe the invitations the mock API serves. Expiry is relative to the
// scenario clock; "can be accepted" defaults to pending and not expired:
//
//	Given the following incoming invitations:
//	  | id | status   | expires in | organization   |
//	  | a  | pending  | 72h        | Acme Builders  |
//	  | b  | accepted | 24h        | Beam & Co      |
//
// Drive the list controller, including out of order responses:
//
//	When I load the invitations with status "pending"
//	When I start loading the invitations with status "accepted"
//	And the server responds to the "accepted" request
//	Then the invitation list should contain "a, c"
//
// Drive the detail view and its action lanes:
//
//	When I accept the invitation "tok-a"
//	When I decline the invitation "tok-a" with reason "fully booked"
//	Then the shown invitation should contain json:
//
// Assert any published state variable:
//
//	Then ${list.Page.Current} should be "2"
//	Then ${detail.Actions.Decline.Err | message} should be "This invitation has expired."
package cucumber

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/expiry"
	"github.com/sitegrid/sitegrid/internal/invitations"
	"github.com/sitegrid/sitegrid/internal/models"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^the following incoming invitations:$`, s.theFollowingIncomingInvitations)
		ctx.Step(`^the stats server returns:$`, s.theStatsServerReturns)
		ctx.Step(`^the server fails the next request to "([^"]*)" with status (\d+) and message "([^"]*)"$`, s.theServerFailsTheNextRequest)

		ctx.Step(`^I load the invitations$`, s.iLoadTheInvitations)
		ctx.Step(`^I load the invitations with status "([^"]*)"$`, s.iLoadTheInvitationsWithStatus)
		ctx.Step(`^I load (\d+) invitations per page$`, s.iLoadInvitationsPerPage)
		ctx.Step(`^I load more invitations$`, s.iLoadMoreInvitations)
		ctx.Step(`^I refresh the invitations$`, s.iRefreshTheInvitations)
		ctx.Step(`^I start loading the invitations with status "([^"]*)"$`, s.iStartLoadingTheInvitationsWithStatus)
		ctx.Step(`^the server responds to the "([^"]*)" request$`, s.theServerRespondsToTheRequest)
		ctx.Step(`^the "([^"]*)" request should have been superseded$`, s.theRequestShouldHaveBeenSuperseded)
		ctx.Step(`^the invitation list should contain "([^"]*)"$`, s.theInvitationListShouldContain)
		ctx.Step(`^the invitation list should be empty$`, s.theInvitationListShouldBeEmpty)
		ctx.Step(`^the invitation list should (not )?have more pages$`, s.theInvitationListShouldHaveMorePages)

		ctx.Step(`^I open the invitation "([^"]*)"$`, s.iOpenTheInvitation)
		ctx.Step(`^I accept the invitation "([^"]*)"$`, s.iAcceptTheInvitation)
		ctx.Step(`^I decline the invitation "([^"]*)"$`, s.iDeclineTheInvitation)
		ctx.Step(`^I decline the invitation "([^"]*)" with reason "([^"]*)"$`, s.iDeclineTheInvitationWithReason)
		ctx.Step(`^the shown invitation should contain json:$`, s.theShownInvitationShouldContainJson)
		ctx.Step(`^the server should have received a decline for "([^"]*)" with body:$`, s.theServerShouldHaveReceivedADeclineWithBody)
		ctx.Step(`^the last action should have failed with "([^"]*)"$`, s.theLastActionShouldHaveFailedWith)
		ctx.Step(`^the last action should have succeeded$`, s.theLastActionShouldHaveSucceeded)

		ctx.Step(`^I refresh the notifications$`, s.iRefreshTheNotifications)
		ctx.Step(`^I dismiss the notification "([^"]*)"$`, s.iDismissTheNotification)
		ctx.Step(`^the notification badge should be "([^"]*)"$`, s.theNotificationBadgeShouldBe)
		ctx.Step(`^the notification badge capped at (\d+) should be "([^"]*)"$`, s.theNotificationBadgeCappedAtShouldBe)
		ctx.Step(`^the urgent notifications should be "([^"]*)"$`, s.theUrgentNotificationsShouldBe)
		ctx.Step(`^(\d+) notifications? should be dismissed$`, s.notificationsShouldBeDismissed)

		ctx.Step(`^I fetch the stats$`, s.iFetchTheStats)
		ctx.Step(`^the received (success|pending|decline) rate should be "([^"]*)"$`, s.theReceivedRateShouldBe)

		ctx.Step(`^an invitation that expires in "([^"]*)"$`, s.anInvitationThatExpiresIn)
		ctx.Step(`^the time until expiry should be "([^"]*)"$`, s.theTimeUntilExpiryShouldBe)
		ctx.Step(`^it should (not )?be expiring soon$`, s.itShouldBeExpiringSoon)

		ctx.Step(`^\${([^}]*)} should be "([^"]*)"$`, s.variableShouldBe)
		ctx.Step(`^\${([^}]*)} should not be empty$`, s.variableShouldNotBeEmpty)
	})
}

func (s *TestScenario) theFollowingIncomingInvitations(table *godog.Table) error {
	if len(table.Rows) < 1 {
		return fmt.Errorf("expected a header row")
	}
	header := map[string]int{}
	for i, cell := range table.Rows[0].Cells {
		header[strings.TrimSpace(cell.Value)] = i
	}

	var result []models.Invitation
	for _, row := range table.Rows[1:] {
		values := map[string]string{}
		for name, i := range header {
			if i < len(row.Cells) {
				values[name] = strings.TrimSpace(row.Cells[i].Value)
			}
		}
		get := func(name, def string) string {
			if v := values[name]; v != "" {
				return v
			}
			return def
		}
		id := get("id", "")
		status, err := models.ParseStatus(get("status", "pending"))
		if err != nil {
			return err
		}
		expiresIn, err := time.ParseDuration(get("expires in", "168h"))
		if err != nil {
			return err
		}
		expiresAt := s.Now.Add(expiresIn)
		isExpired := status == models.StatusExpired || !expiresAt.After(s.Now)
		canBeAccepted, err := strconv.ParseBool(get("can be accepted", strconv.FormatBool(status == models.StatusPending && !isExpired)))
		if err != nil {
			return err
		}

		inv := models.Invitation{
			ID:                id,
			Token:             get("token", "tok-"+id),
			Status:            status,
			InvitationMessage: get("message", ""),
			CreatedAt:         s.Now.Add(-24 * time.Hour),
			ExpiresAt:         expiresAt,
			IsExpired:         isExpired,
			CanBeAccepted:     canBeAccepted,
			FromOrganization: models.Organization{
				ID:         "org-" + id,
				Name:       get("organization", "Organization "+id),
				IsVerified: true,
			},
			InvitedBy: models.Inviter{Name: "Dana", Email: "dana@" + id + ".test"},
		}
		switch status {
		case models.StatusAccepted:
			at := inv.CreatedAt.Add(time.Hour)
			inv.AcceptedAt = &at
		case models.StatusDeclined:
			at := inv.CreatedAt.Add(time.Hour)
			inv.DeclinedAt = &at
		case models.StatusPending, models.StatusExpired:
		}
		result = append(result, inv)
	}
	s.API.SetInvitations(result)
	return nil
}

func (s *TestScenario) theStatsServerReturns(doc *godog.DocString) error {
	content, err := s.Expand(doc.Content)
	if err != nil {
		return err
	}
	var stats models.Stats
	if err := YamlEncoding.Unmarshal([]byte(content), &stats); err != nil {
		return err
	}
	s.API.SetStats(stats)
	return nil
}

func (s *TestScenario) theServerFailsTheNextRequest(suffix string, status int, message string) error {
	s.API.FailNext(suffix, status, message)
	return nil
}

// record keeps err as the outcome of the step and publishes the new state.
// Gateway failures are outcomes that later steps assert on, other errors
// fail the step.
func (s *TestScenario) record(err error) error {
	s.lastErr = err
	s.publish()
	var gatewayErr *client.Error
	switch {
	case err == nil,
		errors.As(err, &gatewayErr),
		errors.Is(err, invitations.ErrNotActionable),
		errors.Is(err, invitations.ErrBusy),
		errors.Is(err, invitations.ErrSuperseded):
		return nil
	}
	return err
}

func (s *TestScenario) filters(status string) (models.Filters, error) {
	filters := s.List.State().Filters
	filters.Status = nil
	if status == "" {
		return filters, nil
	}
	st, err := models.ParseStatus(status)
	if err != nil {
		return filters, err
	}
	return filters.WithStatus(st), nil
}

func (s *TestScenario) iLoadTheInvitations() error {
	return s.iLoadTheInvitationsWithStatus("")
}

func (s *TestScenario) iLoadTheInvitationsWithStatus(status string) error {
	filters, err := s.filters(status)
	if err != nil {
		return err
	}
	return s.record(s.List.Replace(s.Ctx(), filters))
}

func (s *TestScenario) iLoadInvitationsPerPage(perPage int) error {
	filters := s.List.State().Filters
	filters.PerPage = perPage
	return s.record(s.List.Replace(s.Ctx(), filters))
}

func (s *TestScenario) iLoadMoreInvitations() error {
	return s.record(s.List.LoadMore(s.Ctx()))
}

func (s *TestScenario) iRefreshTheInvitations() error {
	return s.record(s.List.Refresh(s.Ctx()))
}

func (s *TestScenario) iStartLoadingTheInvitationsWithStatus(status string) error {
	filters, err := s.filters(status)
	if err != nil {
		return err
	}
	arrived := s.API.Hold(status)
	done := make(chan error, 1)
	go func() {
		done <- s.List.Replace(s.Ctx(), filters)
	}()
	s.pending[status] = done

	select {
	case <-arrived:
		return nil
	case err := <-done:
		return fmt.Errorf("the %q request finished before the server held it: %v", status, err)
	case <-time.After(10 * time.Second):
		return fmt.Errorf("the %q request never reached the server", status)
	}
}

func (s *TestScenario) theServerRespondsToTheRequest(status string) error {
	done, ok := s.pending[status]
	if !ok {
		return fmt.Errorf("no %q request was started", status)
	}
	s.API.Release(status)
	select {
	case err := <-done:
		delete(s.pending, status)
		s.outcomes[status] = err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("the %q request did not complete", status)
	}
	s.publish()
	return nil
}

func (s *TestScenario) theRequestShouldHaveBeenSuperseded(status string) error {
	err, ok := s.outcomes[status]
	if !ok {
		return fmt.Errorf("the %q request has not completed", status)
	}
	if !errors.Is(err, invitations.ErrSuperseded) {
		return fmt.Errorf("expected the %q request to be superseded, got: %v", status, err)
	}
	return nil
}

func splitIDs(list string) []string {
	var result []string
	for _, id := range strings.Split(list, ",") {
		if id = strings.TrimSpace(id); id != "" {
			result = append(result, id)
		}
	}
	return result
}

func idsOf(items []models.Invitation) []string {
	var result []string
	for _, inv := range items {
		result = append(result, inv.ID)
	}
	return result
}

func sameIDs(expected, actual []string) error {
	if strings.Join(expected, ",") != strings.Join(actual, ",") {
		return fmt.Errorf("expected invitations [%s], actual [%s]", strings.Join(expected, ", "), strings.Join(actual, ", "))
	}
	return nil
}

func (s *TestScenario) theInvitationListShouldContain(list string) error {
	return sameIDs(splitIDs(list), idsOf(s.List.State().Items))
}

func (s *TestScenario) theInvitationListShouldBeEmpty() error {
	return sameIDs(nil, idsOf(s.List.State().Items))
}

func (s *TestScenario) theInvitationListShouldHaveMorePages(not string) error {
	state := s.List.State()
	if state.Page.HasMore == (not != "") {
		return fmt.Errorf("expected has more pages to be %v, page: %+v", not == "", state.Page)
	}
	return nil
}

func (s *TestScenario) iOpenTheInvitation(token string) error {
	return s.record(s.Detail.Load(s.Ctx(), token))
}

func (s *TestScenario) openOnce(token string) error {
	if state := s.Detail.State(); state.Token == token && state.Invitation != nil {
		return nil
	}
	return s.Detail.Load(s.Ctx(), token)
}

func (s *TestScenario) iAcceptTheInvitation(token string) error {
	if err := s.openOnce(token); err != nil {
		return s.record(err)
	}
	_, err := s.Detail.Accept(s.Ctx())
	return s.record(err)
}

func (s *TestScenario) iDeclineTheInvitation(token string) error {
	return s.iDeclineTheInvitationWithReason(token, "")
}

func (s *TestScenario) iDeclineTheInvitationWithReason(token, reason string) error {
	if err := s.openOnce(token); err != nil {
		return s.record(err)
	}
	_, err := s.Detail.Decline(s.Ctx(), reason)
	return s.record(err)
}

func (s *TestScenario) theShownInvitationShouldContainJson(expected *godog.DocString) error {
	inv := s.Detail.State().Invitation
	if inv == nil {
		return fmt.Errorf("no invitation is shown")
	}
	actual, err := JsonEncoding.Marshal(inv)
	if err != nil {
		return err
	}
	return s.JsonMustContain(string(actual), expected.Content, true)
}

func (s *TestScenario) theServerShouldHaveReceivedADeclineWithBody(token string, expected *godog.DocString) error {
	req, ok := s.API.LastRequest("/token/" + token + "/decline")
	if !ok {
		return fmt.Errorf("the server did not receive a decline for %s", token)
	}
	return s.JsonMustMatch(req.Body, expected.Content, true)
}

func (s *TestScenario) theLastActionShouldHaveFailedWith(message string) error {
	if s.lastErr == nil {
		return fmt.Errorf("expected the last action to fail with %q, but it succeeded", message)
	}
	actual, _ := PipeFunctions["message"](s.lastErr, nil)
	if actual != message {
		return fmt.Errorf("expected the last action to fail with %q, actual: %q", message, actual)
	}
	return nil
}

func (s *TestScenario) theLastActionShouldHaveSucceeded() error {
	if s.lastErr != nil {
		return fmt.Errorf("expected the last action to succeed, it failed with: %w", s.lastErr)
	}
	return nil
}

func (s *TestScenario) iRefreshTheNotifications() error {
	return s.record(s.Notifications.Refresh(s.Ctx()))
}

func (s *TestScenario) iDismissTheNotification(id string) error {
	s.Notifications.Dismiss(id)
	s.publish()
	return nil
}

func (s *TestScenario) theNotificationBadgeShouldBe(expected string) error {
	return s.theNotificationBadgeCappedAtShouldBe(invitations.DefaultBadgeCap, expected)
}

func (s *TestScenario) theNotificationBadgeCappedAtShouldBe(limit int, expected string) error {
	actual := s.Notifications.Badge(s.Now).Label(limit)
	if actual != expected {
		return fmt.Errorf("expected badge %q, actual %q", expected, actual)
	}
	return nil
}

func (s *TestScenario) theUrgentNotificationsShouldBe(list string) error {
	return sameIDs(splitIDs(list), idsOf(s.Notifications.Urgent(s.Now)))
}

func (s *TestScenario) notificationsShouldBeDismissed(expected int) error {
	if actual := s.Notifications.DismissedCount(); actual != expected {
		return fmt.Errorf("expected %d dismissed notifications, actual %d", expected, actual)
	}
	return nil
}

func (s *TestScenario) iFetchTheStats() error {
	return s.record(s.Stats.Fetch(s.Ctx()))
}

func (s *TestScenario) theReceivedRateShouldBe(which, expected string) error {
	snapshot := s.Stats.State().Snapshot
	if snapshot == nil {
		return fmt.Errorf("no stats have been fetched")
	}
	counters := snapshot.ReceivedInvitations
	var rate float64
	switch which {
	case "success":
		rate = counters.SuccessRate()
	case "pending":
		rate = counters.PendingRate()
	case "decline":
		rate = counters.DeclineRate()
	}
	if actual := invitations.FormatPercent(rate); actual != expected {
		return fmt.Errorf("expected %s rate %s, actual %s", which, expected, actual)
	}
	return nil
}

func (s *TestScenario) anInvitationThatExpiresIn(d string) error {
	duration, err := time.ParseDuration(d)
	if err != nil {
		return err
	}
	s.Variables["expiresAt"] = s.Now.Add(duration)
	return nil
}

func (s *TestScenario) expiresAt() (time.Time, error) {
	v, ok := s.Variables["expiresAt"].(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("no invitation expiry was given")
	}
	return v, nil
}

func (s *TestScenario) theTimeUntilExpiryShouldBe(expected string) error {
	at, err := s.expiresAt()
	if err != nil {
		return err
	}
	if actual := expiry.TimeUntilExpiry(at, s.Now); actual != expected {
		return fmt.Errorf("expected time until expiry %q, actual %q", expected, actual)
	}
	return nil
}

func (s *TestScenario) itShouldBeExpiringSoon(not string) error {
	at, err := s.expiresAt()
	if err != nil {
		return err
	}
	if actual := expiry.IsExpiringSoon(at, s.Now); actual != (not == "") {
		return fmt.Errorf("expected expiring soon to be %v, actual %v", not == "", actual)
	}
	return nil
}

func (s *TestScenario) variableShouldBe(name, expected string) error {
	actual, err := s.ResolveString(name)
	if err != nil {
		return err
	}
	expected, err = s.Expand(expected)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("expected ${%s} to be %q, actual %q", name, expected, actual)
	}
	return nil
}

func (s *TestScenario) variableShouldNotBeEmpty(name string) error {
	actual, err := s.ResolveString(name)
	if err != nil {
		return err
	}
	if actual == "" {
		return fmt.Errorf("expected ${%s} to be set", name)
	}
	return nil
}
