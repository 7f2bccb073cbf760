package invitations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sitegrid/sitegrid/internal/models"
)

// result is what a fake gateway call resolves with.
type result struct {
	page    models.InvitationPage
	inv     models.Invitation
	accept  models.AcceptResult
	decline models.DeclineResult
	stats   models.Stats
	err     error
}

type call struct {
	method  string
	filters models.Filters
	page    int
	token   string
	reason  string
	resolve chan result
}

func (c *call) Resolve(r result) {
	c.resolve <- r
}

// fakeGateway hands every call to the test, which resolves them in any order.
// When respond is set, calls resolve immediately with its result instead.
type fakeGateway struct {
	calls   chan *call
	respond func(c *call) result

	mu  sync.Mutex
	log []*call
}

var _ Gateway = &fakeGateway{}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: make(chan *call, 16)}
}

func respondingGateway(respond func(c *call) result) *fakeGateway {
	g := newFakeGateway()
	g.respond = respond
	return g
}

func (g *fakeGateway) do(ctx context.Context, c *call) result {
	g.mu.Lock()
	g.log = append(g.log, c)
	g.mu.Unlock()
	if g.respond != nil {
		return g.respond(c)
	}
	c.resolve = make(chan result, 1)
	g.calls <- c
	select {
	case r := <-c.resolve:
		return r
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

func (g *fakeGateway) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a gateway call")
		return nil
	}
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.log)
}

func (g *fakeGateway) ListIncoming(ctx context.Context, filters models.Filters, page int) (models.InvitationPage, error) {
	r := g.do(ctx, &call{method: "list", filters: filters, page: page})
	return r.page, r.err
}

func (g *fakeGateway) GetByToken(ctx context.Context, token string) (models.Invitation, error) {
	r := g.do(ctx, &call{method: "get", token: token})
	return r.inv, r.err
}

func (g *fakeGateway) Accept(ctx context.Context, token string) (models.AcceptResult, error) {
	r := g.do(ctx, &call{method: "accept", token: token})
	return r.accept, r.err
}

func (g *fakeGateway) Decline(ctx context.Context, token string, reason string) (models.DeclineResult, error) {
	r := g.do(ctx, &call{method: "decline", token: token, reason: reason})
	return r.decline, r.err
}

func (g *fakeGateway) Stats(ctx context.Context) (models.Stats, error) {
	r := g.do(ctx, &call{method: "stats"})
	return r.stats, r.err
}

// async runs fn on its own goroutine, the way a UI event handler would.
func async(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- fn()
	}()
	return ch
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the controller")
		return nil
	}
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func invitation(id string, expiresIn time.Duration) models.Invitation {
	return models.Invitation{
		ID:               id,
		Token:            "tok-" + id,
		Status:           models.StatusPending,
		CreatedAt:        testNow.Add(-24 * time.Hour),
		ExpiresAt:        testNow.Add(expiresIn),
		CanBeAccepted:    true,
		FromOrganization: models.Organization{ID: "org-" + id, Name: "Org " + id},
	}
}

func page(current, last int, ids ...string) models.InvitationPage {
	items := make([]models.Invitation, 0, len(ids))
	for _, id := range ids {
		items = append(items, invitation(id, 7*24*time.Hour))
	}
	return models.InvitationPage{
		Items: items,
		Page: models.PageInfo{
			Current: current,
			Last:    last,
			PerPage: 20,
			Total:   len(ids),
			HasMore: current < last,
		},
	}
}

func ids(items []models.Invitation) []string {
	out := make([]string, 0, len(items))
	for _, inv := range items {
		out = append(out, inv.ID)
	}
	return out
}

func idsN(prefix string, n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}
