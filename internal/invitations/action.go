package invitations

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/models"
)

type Lane int

const (
	LaneAccept Lane = iota
	LaneDecline
)

func (l Lane) String() string {
	switch l {
	case LaneAccept:
		return "accept"
	case LaneDecline:
		return "decline"
	}
	return fmt.Sprintf("Lane(%d)", int(l))
}

// LaneState is the busy flag and last error of one action lane.
type LaneState struct {
	Busy bool
	Err  error
}

// ErrMessage is the human readable form of Err, or "".
func (s LaneState) ErrMessage() string {
	return client.Message(s.Err)
}

type ActionState struct {
	Accept  LaneState
	Decline LaneState
}

// Lane returns the state of one lane.
func (s ActionState) Lane(lane Lane) LaneState {
	if lane == LaneDecline {
		return s.Decline
	}
	return s.Accept
}

// ActionController runs accept and decline requests. The two lanes track
// their busy flag and error independently, so a failure in one never hides
// or clears the other.
type ActionController struct {
	gateway  Gateway
	settings settings

	mu    sync.Mutex
	lanes [2]LaneState
}

func NewActionController(gateway Gateway, opts ...Option) *ActionController {
	return &ActionController{
		gateway:  gateway,
		settings: newSettings(opts),
	}
}

func (a *ActionController) State() ActionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ActionState{
		Accept:  a.lanes[LaneAccept],
		Decline: a.lanes[LaneDecline],
	}
}

func (a *ActionController) begin(lane Lane) error {
	a.mu.Lock()
	if a.lanes[lane].Busy {
		a.mu.Unlock()
		return ErrBusy
	}
	a.lanes[lane] = LaneState{Busy: true}
	a.mu.Unlock()
	a.settings.notify(SignalActions)
	return nil
}

func (a *ActionController) finish(lane Lane, err error) {
	a.mu.Lock()
	a.lanes[lane] = LaneState{Err: err}
	a.mu.Unlock()
	if err != nil {
		a.settings.logger.Debugw("invitation action failed", "lane", lane, "kind", client.KindOf(err), "error", err)
	}
	a.settings.notify(SignalActions)
}

// Accept accepts the invitation identified by token. An empty token is a
// no-op returning a nil result. A call while the accept lane is busy fails
// with ErrBusy.
func (a *ActionController) Accept(ctx context.Context, token string) (*models.AcceptResult, error) {
	if token == "" {
		return nil, nil
	}
	if err := a.begin(LaneAccept); err != nil {
		return nil, err
	}
	res, err := a.gateway.Accept(ctx, token)
	a.finish(LaneAccept, err)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Decline declines the invitation identified by token. The reason is optional;
// an empty or blank reason is the same as none. An empty token is a no-op
// returning false.
func (a *ActionController) Decline(ctx context.Context, token string, reason string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if err := a.begin(LaneDecline); err != nil {
		return false, err
	}
	_, err := a.gateway.Decline(ctx, token, declineReason(reason))
	a.finish(LaneDecline, err)
	if err != nil {
		return false, err
	}
	return true, nil
}

// declineReason maps a blank reason to none and leaves any other reason as given.
func declineReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return ""
	}
	return reason
}
