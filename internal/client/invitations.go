package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sitegrid/sitegrid/internal/models"
)

const (
	INVITATIONS_INCOMING = "/api/contractor-invitations/incoming"
	INVITATIONS_STATS    = "/api/contractor-invitations/stats"
	INVITATION_TOKEN     = "/api/contractor-invitations/token"
)

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

type listResponse struct {
	Data []models.Invitation `json:"data"`
	Meta pageMeta            `json:"meta"`
}

type invitationResponse struct {
	Data models.Invitation `json:"data"`
}

type acceptResponse struct {
	Data struct {
		Contractor models.ContractorLink `json:"contractor"`
	} `json:"data"`
	Message string `json:"message"`
}

type declineRequest struct {
	Reason string `json:"reason,omitempty"`
}

type statsResponse struct {
	Data models.Stats `json:"data"`
}

// checkToken rejects tokens that cannot name an invitation. Dot segments would
// be resolved away by URL path cleaning and address a different endpoint.
func checkToken(token string) error {
	switch token {
	case "":
		return &Error{Kind: KindInvalidRequest, Message: "An invitation token is required."}
	case ".", "..":
		return &Error{Kind: KindInvalidRequest, Message: "The invitation token is invalid."}
	}
	return nil
}

// checkInvitation fails on an invitation without a usable status and logs any
// other inconsistency.
func (c *Client) checkInvitation(inv models.Invitation) error {
	if !inv.Status.Valid() {
		return &Error{
			Kind:    KindTransportFailure,
			Message: "The server returned an invitation without a valid status.",
			Err:     fmt.Errorf("invitation %q: invalid status %d", inv.ID, int(inv.Status)),
		}
	}
	if err := inv.Validate(); err != nil {
		c.logger.Warnw("server returned an inconsistent invitation", "error", err)
	}
	return nil
}

func tokenPath(token string, action ...string) string {
	parts := append([]string{INVITATION_TOKEN, url.PathEscape(token)}, action...)
	return strings.Join(parts, "/")
}

// ListIncoming fetches one page of the invitations received by the current organization.
func (c *Client) ListIncoming(ctx context.Context, filters models.Filters, page int) (models.InvitationPage, error) {
	if page < 1 {
		page = 1
	}
	var res listResponse
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       INVITATIONS_INCOMING,
		query:      filters.Query(page),
		idempotent: true,
	}, &res)
	if err != nil {
		return models.InvitationPage{}, err
	}

	for _, inv := range res.Data {
		if err := c.checkInvitation(inv); err != nil {
			return models.InvitationPage{}, err
		}
	}
	current := res.Meta.CurrentPage
	if current == 0 {
		current = page
	}
	items := res.Data
	if items == nil {
		items = []models.Invitation{}
	}
	return models.InvitationPage{
		Items: items,
		Page: models.PageInfo{
			Current: current,
			Last:    res.Meta.LastPage,
			PerPage: res.Meta.PerPage,
			Total:   res.Meta.Total,
			HasMore: current < res.Meta.LastPage,
		},
	}, nil
}

// GetByToken fetches a single invitation by its opaque token.
func (c *Client) GetByToken(ctx context.Context, token string) (models.Invitation, error) {
	if err := checkToken(token); err != nil {
		return models.Invitation{}, err
	}
	var res invitationResponse
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       tokenPath(token),
		idempotent: true,
	}, &res)
	if err != nil {
		return models.Invitation{}, err
	}
	if err := c.checkInvitation(res.Data); err != nil {
		return models.Invitation{}, err
	}
	return res.Data, nil
}

// Accept accepts the invitation, creating the contractor relationship.
func (c *Client) Accept(ctx context.Context, token string) (models.AcceptResult, error) {
	if err := checkToken(token); err != nil {
		return models.AcceptResult{}, err
	}
	var res acceptResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tokenPath(token, "accept"),
	}, &res)
	if err != nil {
		return models.AcceptResult{}, err
	}
	return models.AcceptResult{
		Contractor: res.Data.Contractor,
		Message:    res.Message,
	}, nil
}

// Decline declines the invitation. A blank reason is not sent; any other reason
// is sent as given.
func (c *Client) Decline(ctx context.Context, token string, reason string) (models.DeclineResult, error) {
	if err := checkToken(token); err != nil {
		return models.DeclineResult{}, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = ""
	}
	var res models.DeclineResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tokenPath(token, "decline"),
		body:   declineRequest{Reason: reason},
	}, &res)
	if err != nil {
		return models.DeclineResult{}, err
	}
	return res, nil
}

// Stats fetches the invitation counters of the current organization.
func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var res statsResponse
	err := c.do(ctx, request{
		method:     http.MethodGet,
		path:       INVITATIONS_STATS,
		idempotent: true,
	}, &res)
	if err != nil {
		return models.Stats{}, err
	}
	return res.Data, nil
}
