package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrTerminalStatus is returned when a transition is attempted out of a terminal status.
var ErrTerminalStatus = errors.New("invitation is no longer pending")

// Status is the lifecycle state of an invitation.
type Status int

const (
	StatusPending Status = iota + 1
	StatusAccepted
	StatusDeclined
	StatusExpired
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusAccepted, StatusDeclined, StatusExpired}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "accepted":
		return StatusAccepted, nil
	case "declined":
		return StatusDeclined, nil
	case "expired":
		return StatusExpired, nil
	}
	return 0, fmt.Errorf("unknown invitation status %q", s)
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAccepted:
		return "accepted"
	case StatusDeclined:
		return "declined"
	case StatusExpired:
		return "expired"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsTerminal reports whether no further transition is possible. Invalid values
// are treated as terminal so nothing transitions out of them.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPending:
		return false
	case StatusAccepted, StatusDeclined, StatusExpired:
		return true
	}
	return true
}

// Valid is false for the zero value and anything outside Statuses. A missing
// "status" field decodes to the zero value.
func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusExpired
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid invitation status %d", int(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Organization is the read-only snapshot of the inviting organization.
type Organization struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	LegalName        string `json:"legal_name,omitempty"`
	City             string `json:"city,omitempty"`
	IsVerified       bool   `json:"is_verified"`
	LogoURL          string `json:"logo_url,omitempty"`
	ConnectionsCount *int   `json:"connections_count,omitempty"`
}

// Inviter is the person who sent the invitation.
type Inviter struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (i Inviter) String() string {
	switch {
	case i.Email == "":
		return i.Name
	case i.Name == "":
		return i.Email
	}
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

// Invitation is an offer of a contractor relationship between two organizations.
// Values are snapshots received from the backend and are never mutated in place;
// Accept and Decline return patched copies.
type Invitation struct {
	ID                string         `json:"id"`
	Token             string         `json:"token,omitempty"`
	Status            Status         `json:"status"`
	InvitationMessage string         `json:"invitation_message"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
	AcceptedAt        *time.Time     `json:"accepted_at,omitempty"`
	DeclinedAt        *time.Time     `json:"declined_at,omitempty"`
	DeclineReason     *string        `json:"decline_reason,omitempty"`
	IsExpired         bool           `json:"is_expired"`
	CanBeAccepted     bool           `json:"can_be_accepted"`
	FromOrganization  Organization   `json:"from_organization"`
	InvitedBy         Inviter        `json:"invited_by"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Accept returns the invitation as it is after a confirmed accept at the given time.
func (i Invitation) Accept(at time.Time) (Invitation, error) {
	if i.Status.IsTerminal() {
		return i, fmt.Errorf("accept %s: %w", i.ID, ErrTerminalStatus)
	}
	i.Status = StatusAccepted
	i.AcceptedAt = &at
	i.DeclinedAt = nil
	i.DeclineReason = nil
	i.CanBeAccepted = false
	return i, nil
}

// Decline returns the invitation as it is after a confirmed decline at the given time.
// An empty reason is recorded as no reason.
func (i Invitation) Decline(at time.Time, reason string) (Invitation, error) {
	if i.Status.IsTerminal() {
		return i, fmt.Errorf("decline %s: %w", i.ID, ErrTerminalStatus)
	}
	i.Status = StatusDeclined
	i.DeclinedAt = &at
	i.DeclineReason = nil
	if reason != "" {
		i.DeclineReason = &reason
	}
	i.AcceptedAt = nil
	i.CanBeAccepted = false
	return i, nil
}

// Validate checks the invariants that tie status to the timestamp and guard fields.
func (i Invitation) Validate() error {
	switch i.Status {
	case StatusPending, StatusExpired:
		if i.AcceptedAt != nil || i.DeclinedAt != nil {
			return fmt.Errorf("invitation %s: %s invitation has a resolution timestamp", i.ID, i.Status)
		}
	case StatusAccepted:
		if i.AcceptedAt == nil {
			return fmt.Errorf("invitation %s: accepted without accepted_at", i.ID)
		}
		if i.DeclinedAt != nil || i.DeclineReason != nil {
			return fmt.Errorf("invitation %s: accepted with decline fields", i.ID)
		}
	case StatusDeclined:
		if i.DeclinedAt == nil {
			return fmt.Errorf("invitation %s: declined without declined_at", i.ID)
		}
		if i.AcceptedAt != nil {
			return fmt.Errorf("invitation %s: declined with accepted_at", i.ID)
		}
	default:
		return fmt.Errorf("invitation %s: invalid status %d", i.ID, int(i.Status))
	}
	if i.CanBeAccepted && (i.Status != StatusPending || i.IsExpired) {
		return fmt.Errorf("invitation %s: can_be_accepted set on a %s invitation", i.ID, i.Status)
	}
	return nil
}

// ContractorLink is the contractor relationship created by an accepted invitation.
type ContractorLink struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
}

// AcceptResult confirms an accepted invitation.
type AcceptResult struct {
	Contractor ContractorLink `json:"contractor"`
	Message    string         `json:"message"`
}

// DeclineResult confirms a declined invitation.
type DeclineResult struct {
	Message string `json:"message"`
}
