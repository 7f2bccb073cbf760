package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sitegrid/sitegrid/internal/config"
	"github.com/sitegrid/sitegrid/internal/expiry"
	"github.com/sitegrid/sitegrid/internal/invitations"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/sitegrid/sitegrid/internal/signalbus"
	"github.com/sitegrid/sitegrid/internal/util"
	"github.com/urfave/cli/v3"
)

// notificationView is the json form of the notifications command.
type notificationView struct {
	Badge       string              `json:"badge"`
	Count       int                 `json:"count"`
	Urgent      int                 `json:"urgent"`
	Invitations []models.Invitation `json:"invitations"`
}

func newNotificationView(n *invitations.Notifications, limit int, now time.Time) notificationView {
	badge := n.Badge(now)
	return notificationView{
		Badge:       badge.Label(limit),
		Count:       badge.Count,
		Urgent:      badge.Urgent,
		Invitations: n.Active(),
	}
}

func badgeText(label string) string {
	if label == "" {
		return "no"
	}
	return label
}

func refreshNotifications(ctx context.Context, n *invitations.Notifications, all bool) error {
	if err := n.Refresh(ctx); err != nil {
		return err
	}
	for all && n.List().Page.HasMore {
		if err := n.LoadMore(ctx); err != nil {
			return err
		}
	}
	return nil
}

func listNotifications(ctx context.Context, command *cli.Command, dismiss []string, all bool) error {
	s, err := newSession(command)
	if err != nil {
		return err
	}
	defer s.close()
	p := newPrinter(s.cfg.Output, command.String("query"))
	n := invitations.NewNotifications(s.client, s.options()...)
	for _, id := range dismiss {
		n.Dismiss(id)
	}

	err = p.busy("Loading notifications...", func() error {
		return refreshNotifications(ctx, n, all)
	})
	if err != nil {
		return err
	}

	now := time.Now()
	view := newNotificationView(n, s.cfg.BadgeCap, now)
	if !p.human() {
		return p.show(nil, view)
	}
	if p.format == config.OutputColumn {
		fmt.Fprintf(os.Stderr, "%s pending, %d expiring soon\n", badgeText(view.Badge), view.Urgent)
	}
	return p.show(invitationsTableFields(now), view.Invitations)
}

// watcher polls the pending invitations and reports badge changes and newly
// seen invitations. Rendering is driven by the list signal.
type watcher struct {
	notifications *invitations.Notifications
	printer       *printer
	limit         int
	now           func() time.Time

	seen  map[string]struct{}
	badge invitations.Badge
	first bool
}

func newWatcher(n *invitations.Notifications, p *printer, limit int, now func() time.Time) *watcher {
	return &watcher{
		notifications: n,
		printer:       p,
		limit:         limit,
		now:           now,
		seen:          map[string]struct{}{},
		first:         true,
	}
}

// render reports what changed since the previous render.
func (w *watcher) render() error {
	state := w.notifications.List()
	if state.Loading || !state.Loaded {
		return nil
	}
	now := w.now()
	badge := w.notifications.Badge(now)
	var fresh []models.Invitation
	for _, inv := range w.notifications.Active() {
		if _, ok := w.seen[inv.ID]; ok {
			continue
		}
		w.seen[inv.ID] = struct{}{}
		fresh = append(fresh, inv)
	}
	if !w.first && len(fresh) == 0 && badge == w.badge {
		return nil
	}
	w.first = false
	w.badge = badge

	if !w.printer.human() {
		return w.printer.show(nil, newNotificationView(w.notifications, w.limit, now))
	}
	fmt.Fprintf(w.printer.out, "%s  %s pending, %d expiring soon\n",
		now.Local().Format(LocalTimeFormat), badgeText(badge.Label(w.limit)), badge.Urgent)
	for _, inv := range fresh {
		left := expiry.TimeUntilExpiry(inv.ExpiresAt, now)
		if expiry.IsExpiringSoon(inv.ExpiresAt, now) {
			left = red(left)
		}
		fmt.Fprintf(w.printer.out, "  new: %s from %s, expires in %s (token %s)\n",
			inv.ID, organizationText(inv), left, inv.Token)
	}
	return nil
}

// clockTick is how often watch re-evaluates labels derived from the current time.
const clockTick = time.Minute

// tickClock wakes every subscriber each period, so an invitation that moves
// into the expiring soon window is reported without waiting for new data.
func tickClock(ctx context.Context, bus signalbus.SignalBus, period time.Duration) {
	util.RunPeriodically(ctx, period, func(context.Context) {
		bus.NotifyAll()
	})
}

func watchInvitations(ctx context.Context, command *cli.Command, interval time.Duration, dismiss []string) error {
	s, err := newSession(command)
	if err != nil {
		return err
	}
	defer s.close()
	if interval <= 0 {
		interval = s.cfg.WatchInterval.Std()
	}
	p := newPrinter(s.cfg.Output, command.String("query"))
	n := invitations.NewNotifications(s.client, s.options()...)
	for _, id := range dismiss {
		n.Dismiss(id)
	}
	w := newWatcher(n, p, s.cfg.BadgeCap, time.Now)

	sub := s.bus.Subscribe(invitations.SignalList)
	defer sub.Close()

	refresh := func(ctx context.Context) {
		err := refreshNotifications(ctx, n, true)
		if err != nil && ctx.Err() == nil && !errors.Is(err, invitations.ErrSuperseded) {
			s.logger.Warnw("refreshing notifications failed", "error", err)
		}
	}
	// the first load is fatal, later failures are retried on the next tick.
	if err := refreshNotifications(ctx, n, true); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()
	util.GoWithWaitGroup(wg, func() {
		util.RunPeriodically(ctx, interval, refresh)
	})
	util.GoWithWaitGroup(wg, func() {
		tickClock(ctx, s.bus, clockTick)
	})

	for {
		if err := w.render(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Signal():
		}
	}
}
