// Package invitations holds the controllers behind the contractor invitation
// screens: the paged incoming list, the accept and decline lanes, the detail
// view, the notification badge and the stats summary.
//
// Controllers never block the caller's rendering. Each blocking method is
// meant to run on its own goroutine while State() is read by the renderer,
// which learns about changes through the signal bus.
package invitations

import (
	"context"
	"errors"
	"time"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/sitegrid/sitegrid/internal/signalbus"
	"go.uber.org/zap"
)

const (
	// SignalList is notified whenever a ListController state changes.
	SignalList = "/invitations/list"
	// SignalActions is notified whenever an accept or decline lane changes.
	SignalActions = "/invitations/actions"
	// SignalDetail is notified whenever the DetailController state changes.
	SignalDetail = "/invitations/detail"
	// SignalStats is notified whenever the StatsAggregator state changes.
	SignalStats = "/invitations/stats"
)

var (
	ErrBusy       = errors.New("a request is already in flight")
	ErrSuperseded = errors.New("request was superseded by a newer one")
)

// Gateway is the remote invitation API. *client.Client implements it.
type Gateway interface {
	ListIncoming(ctx context.Context, filters models.Filters, page int) (models.InvitationPage, error)
	GetByToken(ctx context.Context, token string) (models.Invitation, error)
	Accept(ctx context.Context, token string) (models.AcceptResult, error)
	Decline(ctx context.Context, token string, reason string) (models.DeclineResult, error)
	Stats(ctx context.Context) (models.Stats, error)
}

var _ Gateway = &client.Client{}

type settings struct {
	logger   *zap.SugaredLogger
	bus      signalbus.SignalBus
	now      func() time.Time
	cacheTTL time.Duration
	perPage  int
}

type Option func(s *settings)

func newSettings(opts []Option) settings {
	s := settings{
		now:      time.Now,
		cacheTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	return s
}

func (s settings) notify(name string) {
	if s.bus != nil {
		s.bus.Notify(name)
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithSignalBus makes the controller announce its state changes on bus.
func WithSignalBus(bus signalbus.SignalBus) Option {
	return func(s *settings) {
		s.bus = bus
	}
}

// WithClock replaces time.Now for the timestamps of local patches.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithCacheTTL sets how long the DetailController reuses a fetched invitation.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.cacheTTL = ttl
	}
}

// WithPerPage sets the page size Notifications requests.
func WithPerPage(perPage int) Option {
	return func(s *settings) {
		s.perPage = perPage
	}
}
