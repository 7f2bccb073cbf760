package models

// Counters is the tally of invitations by outcome.
type Counters struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Declined int `json:"declined"`
}

// SuccessRate is accepted/total, or 0 when there are no invitations.
func (c Counters) SuccessRate() float64 {
	return ratio(c.Accepted, c.Total)
}

// PendingRate is pending/total, or 0 when there are no invitations.
func (c Counters) PendingRate() float64 {
	return ratio(c.Pending, c.Total)
}

// DeclineRate is declined/total, or 0 when there are no invitations.
func (c Counters) DeclineRate() float64 {
	return ratio(c.Declined, c.Total)
}

func ratio(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Stats is a snapshot of the invitation counters for the current organization.
type Stats struct {
	ReceivedInvitations Counters `json:"received_invitations"`
	SentInvitations     Counters `json:"sent_invitations"`
}
