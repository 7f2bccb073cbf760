package invitations

import (
	"context"
	"strconv"
	"time"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"github.com/sitegrid/sitegrid/internal/expiry"
	"github.com/sitegrid/sitegrid/internal/models"
)

// DefaultBadgeCap is the count above which a badge is shown as "99+".
const DefaultBadgeCap = 99

type Badge struct {
	// Count is the exact number of active notifications.
	Count  int
	Urgent int
}

// Label renders the badge count capped at limit.
func (b Badge) Label(limit int) string {
	return BadgeLabel(b.Count, limit)
}

// BadgeLabel renders count for display, e.g. "99+" when it exceeds limit.
// A zero count renders as "". A limit of zero or less disables capping.
func BadgeLabel(count, limit int) string {
	if count <= 0 {
		return ""
	}
	if limit > 0 && count > limit {
		return strconv.Itoa(limit) + "+"
	}
	return strconv.Itoa(count)
}

// Notifications derives the invitation notifications from the pending
// invitations. Dismissing hides a notification for the lifetime of this
// value only; the invitation stays pending on the server.
type Notifications struct {
	list      *ListController
	dismissed *csmap.CsMap[string, struct{}]
	settings  settings
}

func NewNotifications(gateway Gateway, opts ...Option) *Notifications {
	return &Notifications{
		list:      NewListController(gateway, opts...),
		dismissed: csmap.Create[string, struct{}](),
		settings:  newSettings(opts),
	}
}

func (n *Notifications) filters() models.Filters {
	return models.Filters{PerPage: n.settings.perPage}.WithStatus(models.StatusPending)
}

// Refresh reloads the first page of pending invitations.
func (n *Notifications) Refresh(ctx context.Context) error {
	return n.list.Load(ctx, n.filters(), LoadReplace)
}

// LoadMore appends the next page of pending invitations.
func (n *Notifications) LoadMore(ctx context.Context) error {
	return n.list.Load(ctx, n.filters(), LoadAppend)
}

// List returns the state of the underlying pending list.
func (n *Notifications) List() ListState {
	return n.list.State()
}

// Dismiss hides the notification for id. Dismissing twice is the same as once.
func (n *Notifications) Dismiss(id string) {
	if id == "" {
		return
	}
	n.dismissed.Store(id, struct{}{})
	n.settings.notify(SignalList)
}

func (n *Notifications) Dismissed(id string) bool {
	return n.dismissed.Has(id)
}

// DismissedCount is the size of the dismissal set.
func (n *Notifications) DismissedCount() int {
	return n.dismissed.Count()
}

// Active returns the loaded pending invitations that can still be accepted
// and were not dismissed, in list order.
func (n *Notifications) Active() []models.Invitation {
	items := n.list.State().Items
	active := make([]models.Invitation, 0, len(items))
	for _, inv := range items {
		if inv.Status != models.StatusPending || !inv.CanBeAccepted || inv.IsExpired {
			continue
		}
		if n.dismissed.Has(inv.ID) {
			continue
		}
		active = append(active, inv)
	}
	return active
}

// Urgent returns the active notifications that expire within expiry.SoonWindow of now.
func (n *Notifications) Urgent(now time.Time) []models.Invitation {
	var urgent []models.Invitation
	for _, inv := range n.Active() {
		if expiry.IsExpiringSoon(inv.ExpiresAt, now) {
			urgent = append(urgent, inv)
		}
	}
	return urgent
}

func (n *Notifications) Badge(now time.Time) Badge {
	active := n.Active()
	b := Badge{Count: len(active)}
	for _, inv := range active {
		if expiry.IsExpiringSoon(inv.ExpiresAt, now) {
			b.Urgent++
		}
	}
	return b
}
