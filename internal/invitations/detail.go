package invitations

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/sitegrid/sitegrid/internal/util/cache"
)

var ErrNotActionable = errors.New("invitation can no longer be accepted or declined")

// DetailState is a snapshot of a DetailController.
type DetailState struct {
	Token      string
	Invitation *models.Invitation
	Loading    bool
	Err        error
	// Contractor is set after a confirmed accept.
	Contractor *models.ContractorLink
	// Message is the server's confirmation of the last action.
	Message string
	Actions ActionState
}

// ErrMessage is the human readable form of Err, or "".
func (s DetailState) ErrMessage() string {
	return client.Message(s.Err)
}

// DetailController shows one invitation and runs its accept and decline
// actions. Invitations are cached by token for the configured TTL. A
// confirmed action patches the shown invitation with the controller's clock;
// a failed one leaves it untouched.
type DetailController struct {
	gateway  Gateway
	actions  *ActionController
	cache    *cache.RWMutexTTLCache[string, models.Invitation]
	settings settings

	mu         sync.Mutex
	state      DetailState
	generation uint64
}

func NewDetailController(gateway Gateway, opts ...Option) *DetailController {
	s := newSettings(opts)
	c := cache.NewRWMutexTTLCache[string, models.Invitation](s.cacheTTL)
	c.Now = s.now
	return &DetailController{
		gateway:  gateway,
		actions:  NewActionController(gateway, opts...),
		cache:    c,
		settings: s,
	}
}

func (d *DetailController) State() DetailState {
	d.mu.Lock()
	s := d.state
	if s.Invitation != nil {
		inv := *s.Invitation
		s.Invitation = &inv
	}
	d.mu.Unlock()
	s.Actions = d.actions.State()
	return s
}

// Load shows the invitation for token, from the cache when possible.
func (d *DetailController) Load(ctx context.Context, token string) error {
	return d.load(ctx, token, true)
}

// Reload fetches the shown invitation again, bypassing the cache.
func (d *DetailController) Reload(ctx context.Context) error {
	d.mu.Lock()
	token := d.state.Token
	d.mu.Unlock()
	return d.load(ctx, token, false)
}

func (d *DetailController) load(ctx context.Context, token string, useCache bool) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	d.mu.Lock()
	d.generation++
	generation := d.generation
	if d.state.Token != token {
		d.state = DetailState{Token: token}
	}
	if useCache {
		if inv, ok := d.cache.Get(token); ok {
			d.state.Invitation = &inv
			d.state.Loading = false
			d.state.Err = nil
			d.mu.Unlock()
			d.settings.notify(SignalDetail)
			return nil
		}
	}
	d.state.Loading = true
	d.mu.Unlock()
	d.settings.notify(SignalDetail)

	inv, err := d.gateway.GetByToken(ctx, token)

	d.mu.Lock()
	if generation != d.generation {
		d.mu.Unlock()
		return ErrSuperseded
	}
	d.state.Loading = false
	if err != nil {
		d.state.Err = err
		d.mu.Unlock()
		d.settings.notify(SignalDetail)
		return err
	}
	d.state.Err = nil
	d.state.Invitation = &inv
	d.mu.Unlock()
	d.cache.Put(token, inv)
	d.settings.notify(SignalDetail)
	return nil
}

// current returns the token and the shown invitation if it may still be acted on.
func (d *DetailController) current() (string, models.Invitation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Invitation == nil {
		return "", models.Invitation{}, ErrNotActionable
	}
	inv := *d.state.Invitation
	if !inv.CanBeAccepted || inv.Status.IsTerminal() {
		return "", inv, ErrNotActionable
	}
	return d.state.Token, inv, nil
}

// apply shows the patched invitation, unless another token was loaded meanwhile.
func (d *DetailController) apply(token string, patched models.Invitation, update func(s *DetailState)) {
	d.mu.Lock()
	if d.state.Token == token {
		d.state.Invitation = &patched
		update(&d.state)
	}
	d.mu.Unlock()
	d.cache.Put(token, patched)
	d.settings.notify(SignalDetail)
}

// Accept accepts the shown invitation. It fails with ErrNotActionable when
// the server no longer allows it, without issuing a request.
func (d *DetailController) Accept(ctx context.Context) (*models.AcceptResult, error) {
	token, inv, err := d.current()
	if err != nil {
		return nil, err
	}
	res, err := d.actions.Accept(ctx, token)
	if err != nil || res == nil {
		return res, err
	}
	patched, err := inv.Accept(d.settings.now())
	if err != nil {
		return res, err
	}
	d.apply(token, patched, func(s *DetailState) {
		contractor := res.Contractor
		s.Contractor = &contractor
		s.Message = res.Message
	})
	return res, nil
}

// Decline declines the shown invitation with an optional reason.
func (d *DetailController) Decline(ctx context.Context, reason string) (bool, error) {
	token, inv, err := d.current()
	if err != nil {
		return false, err
	}
	reason = declineReason(reason)
	ok, err := d.actions.Decline(ctx, token, reason)
	if err != nil || !ok {
		return ok, err
	}
	patched, err := inv.Decline(d.settings.now(), reason)
	if err != nil {
		return ok, err
	}
	d.apply(token, patched, func(s *DetailState) {
		s.Contractor = nil
		s.Message = ""
	})
	return true, nil
}
