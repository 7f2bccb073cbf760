package models

import (
	"net/url"
	"strconv"
	"time"
)

// DateLayout is the wire format of the date_from and date_to filters.
const DateLayout = "2006-01-02"

// Filters narrows the incoming invitation list. Changing any field invalidates
// the loaded pages.
type Filters struct {
	Status   *Status    `json:"status,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	PerPage  int        `json:"per_page,omitempty"`
}

func (f Filters) Equal(o Filters) bool {
	return equalPtr(f.Status, o.Status) &&
		equalDate(f.DateFrom, o.DateFrom) &&
		equalDate(f.DateTo, o.DateTo) &&
		f.PerPage == o.PerPage
}

// WithStatus returns a copy of the filters restricted to one status.
func (f Filters) WithStatus(s Status) Filters {
	f.Status = &s
	return f
}

// Query encodes the filters and the requested page as query parameters.
func (f Filters) Query(page int) url.Values {
	v := url.Values{}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if f.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.Status != nil {
		v.Set("status", f.Status.String())
	}
	if f.DateFrom != nil {
		v.Set("date_from", f.DateFrom.Format(DateLayout))
	}
	if f.DateTo != nil {
		v.Set("date_to", f.DateTo.Format(DateLayout))
	}
	return v
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// PageInfo is the pagination cursor of a loaded list.
type PageInfo struct {
	Current int  `json:"current"`
	Last    int  `json:"last"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// InvitationPage is one page of the incoming invitation list.
type InvitationPage struct {
	Items []Invitation `json:"items"`
	Page  PageInfo     `json:"page"`
}
