package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sitegrid/sitegrid/internal/config"
	"github.com/sitegrid/sitegrid/internal/expiry"
	"github.com/sitegrid/sitegrid/internal/invitations"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/urfave/cli/v3"
)

var tokenFlag = &cli.StringFlag{
	Name:     "token",
	Usage:    "the invitation token from the invitation link",
	Required: true,
}

func createInvitationCommand() *cli.Command {
	return &cli.Command{
		Name:    "invitation",
		Aliases: []string{"invitations", "inv"},
		Usage:   "Commands relating to contractor invitations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the invitations your organization received",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "only list invitations with this status: pending, accepted, declined or expired",
					},
					&cli.StringFlag{
						Name:  "date-from",
						Usage: "only list invitations created on or after this date (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:  "date-to",
						Usage: "only list invitations created on or before this date (YYYY-MM-DD)",
					},
					&cli.IntFlag{
						Name:  "per-page",
						Usage: "page size, defaults to the per_page setting",
					},
					&cli.IntFlag{
						Name:  "pages",
						Usage: "number of pages to load",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "load every page",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					filters, err := listFilters(command)
					if err != nil {
						return err
					}
					return listInvitations(ctx, command, filters, int(command.Int("pages")), command.Bool("all"))
				},
			},
			{
				Name:  "show",
				Usage: "Show an invitation",
				Flags: []cli.Flag{tokenFlag},
				Action: func(ctx context.Context, command *cli.Command) error {
					return showInvitation(ctx, command, command.String("token"))
				},
			},
			{
				Name:  "accept",
				Usage: "Accept an invitation and become a contractor of the inviting organization",
				Flags: []cli.Flag{tokenFlag},
				Action: func(ctx context.Context, command *cli.Command) error {
					return acceptInvitation(ctx, command, command.String("token"))
				},
			},
			{
				Name:  "decline",
				Usage: "Decline an invitation",
				Flags: []cli.Flag{
					tokenFlag,
					&cli.StringFlag{
						Name:  "reason",
						Usage: "optional reason shared with the inviting organization",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return declineInvitation(ctx, command, command.String("token"), command.String("reason"))
				},
			},
			{
				Name:  "notifications",
				Usage: "List the pending invitations that need your attention",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "dismiss",
						Usage: "invitation ids to leave out",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "load every page of pending invitations",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return listNotifications(ctx, command, command.StringSlice("dismiss"), command.Bool("all"))
				},
			},
			{
				Name:  "watch",
				Usage: "Watch for new pending invitations",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "how often to poll, defaults to the watch_interval setting",
					},
					&cli.StringSliceFlag{
						Name:  "dismiss",
						Usage: "invitation ids to leave out",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return watchInvitations(ctx, command, command.Duration("interval"), command.StringSlice("dismiss"))
				},
			},
			{
				Name:  "stats",
				Usage: "Show invitation statistics for your organization",
				Action: func(ctx context.Context, command *cli.Command) error {
					return showStats(ctx, command)
				},
			},
		},
	}
}

func listFilters(command *cli.Command) (models.Filters, error) {
	var filters models.Filters
	if v := command.String("status"); v != "" {
		status, err := models.ParseStatus(strings.ToLower(v))
		if err != nil {
			return filters, err
		}
		filters = filters.WithStatus(status)
	}
	for _, d := range []struct {
		flag string
		dest **time.Time
	}{
		{"date-from", &filters.DateFrom},
		{"date-to", &filters.DateTo},
	} {
		v := command.String(d.flag)
		if v == "" {
			continue
		}
		t, err := time.Parse(models.DateLayout, v)
		if err != nil {
			return filters, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", d.flag, v)
		}
		*d.dest = &t
	}
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateTo.Before(*filters.DateFrom) {
		return filters, errors.New("--date-to is before --date-from")
	}
	if n := int(command.Int("per-page")); n > 0 {
		filters.PerPage = n
	}
	return filters, nil
}

func invitationsTableFields(now time.Time) []TableField {
	var fields []TableField
	fields = append(fields, TableField{Header: "INVITATION ID", Field: "ID"})
	fields = append(fields, TableField{Header: "ORGANIZATION", Formatter: func(item interface{}) string {
		return organizationText(item.(models.Invitation))
	}})
	fields = append(fields, TableField{Header: "INVITED BY", Field: "InvitedBy"})
	fields = append(fields, TableField{Header: "STATUS", Formatter: func(item interface{}) string {
		return statusText(item.(models.Invitation).Status)
	}})
	fields = append(fields, TableField{Header: "EXPIRES", Formatter: func(item interface{}) string {
		inv := item.(models.Invitation)
		if inv.Status != models.StatusPending {
			return ""
		}
		left := expiry.TimeUntilExpiry(inv.ExpiresAt, now)
		if expiry.IsExpiringSoon(inv.ExpiresAt, now) {
			return red(left)
		}
		return left
	}})
	fields = append(fields, TableField{Header: "RECEIVED", Formatter: func(item interface{}) string {
		return humanize.RelTime(item.(models.Invitation).CreatedAt, now, "ago", "from now")
	}})
	fields = append(fields, TableField{Header: "TOKEN", Field: "Token"})
	return fields
}

func organizationText(inv models.Invitation) string {
	if inv.FromOrganization.IsVerified {
		return inv.FromOrganization.Name + " " + green("✓")
	}
	return inv.FromOrganization.Name
}

func listInvitations(ctx context.Context, command *cli.Command, filters models.Filters, pages int, all bool) error {
	s, err := newSession(command)
	if err != nil {
		return err
	}
	defer s.close()
	if filters.PerPage == 0 {
		filters.PerPage = s.cfg.PerPage
	}
	p := newPrinter(s.cfg.Output, command.String("query"))
	list := invitations.NewListController(s.client, s.options()...)

	err = p.busy("Loading invitations...", func() error {
		if err := list.Replace(ctx, filters); err != nil {
			return err
		}
		for loaded := 1; all || loaded < pages; loaded++ {
			if !list.State().Page.HasMore {
				break
			}
			if err := list.LoadMore(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	state := list.State()
	if !p.human() {
		return p.show(nil, models.InvitationPage{Items: state.Items, Page: state.Page})
	}
	if err := p.show(invitationsTableFields(time.Now()), state.Items); err != nil {
		return err
	}
	if p.format == config.OutputColumn {
		fmt.Fprintf(os.Stderr, "%s of %s invitations, page %d of %d\n",
			humanize.Comma(int64(len(state.Items))), humanize.Comma(int64(state.Page.Total)),
			state.Page.Current, state.Page.Last)
	}
	return nil
}

// invitationDetail is the flattened form of an invitation shown by show, accept and decline.
type invitationDetail struct {
	Invitation models.Invitation      `json:"invitation"`
	Contractor *models.ContractorLink `json:"contractor,omitempty"`
	Message    string                 `json:"message,omitempty"`
}

func detailTableFields(now time.Time) []TableField {
	invitation := func(format func(models.Invitation) string) func(item interface{}) string {
		return func(item interface{}) string {
			return format(item.(invitationDetail).Invitation)
		}
	}
	var fields []TableField
	fields = append(fields, TableField{Header: "INVITATION ID", Formatter: invitation(func(inv models.Invitation) string {
		return inv.ID
	})})
	fields = append(fields, TableField{Header: "ORGANIZATION", Formatter: invitation(organizationText)})
	fields = append(fields, TableField{Header: "INVITED BY", Formatter: invitation(func(inv models.Invitation) string {
		return inv.InvitedBy.String()
	})})
	fields = append(fields, TableField{Header: "STATUS", Formatter: invitation(func(inv models.Invitation) string {
		return statusText(inv.Status)
	})})
	fields = append(fields, TableField{Header: "EXPIRES AT", Formatter: invitation(func(inv models.Invitation) string {
		return fmt.Sprintf("%s (%s)", inv.ExpiresAt.Local().Format(LocalTimeFormat), expiry.Relative(inv.ExpiresAt, now))
	})})
	fields = append(fields, TableField{Header: "MESSAGE", Formatter: invitation(func(inv models.Invitation) string {
		return inv.InvitationMessage
	})})
	fields = append(fields, TableField{Header: "CAN ACCEPT", Formatter: invitation(func(inv models.Invitation) string {
		return fmt.Sprintf("%v", inv.CanBeAccepted)
	})})
	return fields
}

func loadDetail(ctx context.Context, p *printer, detail *invitations.DetailController, token string) error {
	return p.busy("Loading invitation...", func() error {
		return detail.Load(ctx, token)
	})
}

func showDetail(p *printer, state invitations.DetailState) error {
	if state.Invitation == nil {
		return errors.New("invitation not loaded")
	}
	d := invitationDetail{
		Invitation: *state.Invitation,
		Contractor: state.Contractor,
		Message:    state.Message,
	}
	return p.show(detailTableFields(time.Now()), d)
}

func showInvitation(ctx context.Context, command *cli.Command, token string) error {
	s, err := newSession(command)
	if err != nil {
		return err
	}
	defer s.close()
	p := newPrinter(s.cfg.Output, command.String("query"))
	detail := invitations.NewDetailController(s.client, s.options()...)
	if err := loadDetail(ctx, p, detail, token); err != nil {
		return err
	}
	return showDetail(p, detail.State())
}

func acceptInvitation(ctx context.Context, command *cli.Command, token string) error {
	s, err := newSession(command)
	if err != nil {
		return err
	}
	defer s.close()
	p := newPrinter(s.cfg.Output, command.String("query"))
	detail := invitations.NewDetailController(s.client, s.options()...)
	if err := loadDetail(ctx, p, detail, token); err != nil {
		return err
	}
	var res *models.AcceptResult
	err = p.busy("Accepting invitation...", func() error {
		res, err = detail.Accept(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if p.human() {
		p.showSuccessfully("%s", res.Message)
		p.showSuccessfully("You are now a contractor of %s (connected %s).",
			res.Contractor.Name, humanize.Time(res.Contractor.ConnectedAt))
		return nil
	}
	return showDetail(p, detail.State())
}

func declineInvitation(ctx context.Context, command *cli.Command, token, reason string) error {
	s, err := newSession(command)
	if err != nil {
		return err
	}
	defer s.close()
	p := newPrinter(s.cfg.Output, command.String("query"))
	detail := invitations.NewDetailController(s.client, s.options()...)
	if err := loadDetail(ctx, p, detail, token); err != nil {
		return err
	}
	err = p.busy("Declining invitation...", func() error {
		_, err := detail.Decline(ctx, reason)
		return err
	})
	if err != nil {
		return err
	}
	if p.human() {
		p.showSuccessfully("Invitation from %s declined.", detail.State().Invitation.FromOrganization.Name)
		return nil
	}
	return showDetail(p, detail.State())
}

func statsTableFields() []TableField {
	var fields []TableField
	fields = append(fields, TableField{Header: "INVITATIONS", Field: "Direction"})
	count := func(get func(models.Counters) int) func(item interface{}) string {
		return func(item interface{}) string {
			return humanize.Comma(int64(get(item.(statsRow).Counters)))
		}
	}
	rate := func(get func(models.Counters) float64) func(item interface{}) string {
		return func(item interface{}) string {
			return invitations.FormatPercent(get(item.(statsRow).Counters))
		}
	}
	fields = append(fields, TableField{Header: "TOTAL", Formatter: count(func(c models.Counters) int { return c.Total })})
	fields = append(fields, TableField{Header: "PENDING", Formatter: count(func(c models.Counters) int { return c.Pending })})
	fields = append(fields, TableField{Header: "ACCEPTED", Formatter: count(func(c models.Counters) int { return c.Accepted })})
	fields = append(fields, TableField{Header: "DECLINED", Formatter: count(func(c models.Counters) int { return c.Declined })})
	fields = append(fields, TableField{Header: "SUCCESS RATE", Formatter: rate(models.Counters.SuccessRate)})
	fields = append(fields, TableField{Header: "PENDING RATE", Formatter: rate(models.Counters.PendingRate)})
	fields = append(fields, TableField{Header: "DECLINE RATE", Formatter: rate(models.Counters.DeclineRate)})
	return fields
}

type statsRow struct {
	Direction string
	models.Counters
}

func showStats(ctx context.Context, command *cli.Command) error {
	s, err := newSession(command)
	if err != nil {
		return err
	}
	defer s.close()
	p := newPrinter(s.cfg.Output, command.String("query"))
	stats := invitations.NewStatsAggregator(s.client, s.options()...)
	err = p.busy("Loading stats...", func() error {
		return stats.Fetch(ctx)
	})
	if err != nil {
		return err
	}
	snapshot := stats.State().Snapshot
	if !p.human() {
		return p.show(nil, snapshot)
	}
	return p.show(statsTableFields(), []statsRow{
		{Direction: "received", Counters: snapshot.ReceivedInvitations},
		{Direction: "sent", Counters: snapshot.SentInvitations},
	})
}
