package cucumber

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sitegrid/sitegrid/internal/models"
)

// RecordedRequest is a request the mock API received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type failure struct {
	status  int
	message string
}

// MockAPI is an in-memory contractor invitation API served over TLS.
type MockAPI struct {
	// Token is the only bearer token the API accepts.
	Token  string
	server *httptest.Server
	now    time.Time

	mu          sync.Mutex
	invitations []models.Invitation
	stats       *models.Stats
	requests    []RecordedRequest
	failures    map[string]failure
	holds       map[string]chan struct{}
	arrived     map[string]chan struct{}
}

func NewMockAPI(now time.Time) *MockAPI {
	api := &MockAPI{
		Token:    uuid.NewString(),
		now:      now,
		failures: map[string]failure{},
		holds:    map[string]chan struct{}{},
		arrived:  map[string]chan struct{}{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/contractor-invitations/incoming", api.listIncoming)
	mux.HandleFunc("GET /api/contractor-invitations/stats", api.getStats)
	mux.HandleFunc("GET /api/contractor-invitations/token/{token}", api.getByToken)
	mux.HandleFunc("POST /api/contractor-invitations/token/{token}/accept", api.accept)
	mux.HandleFunc("POST /api/contractor-invitations/token/{token}/decline", api.decline)
	api.server = httptest.NewTLSServer(api.middleware(mux))
	return api
}

func (api *MockAPI) URL() string {
	return api.server.URL
}

// TLSConfig trusts the mock API's self signed certificate.
func (api *MockAPI) TLSConfig() *tls.Config {
	return api.server.Client().Transport.(*http.Transport).TLSClientConfig
}

func (api *MockAPI) Close() {
	api.mu.Lock()
	for key, hold := range api.holds {
		close(hold)
		delete(api.holds, key)
	}
	api.mu.Unlock()
	api.server.Close()
}

func (api *MockAPI) SetInvitations(invitations []models.Invitation) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.invitations = invitations
}

// SetStats overrides the stats computed from the stored invitations.
func (api *MockAPI) SetStats(stats models.Stats) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.stats = &stats
}

// FailNext makes the next request whose path ends with suffix fail with status.
func (api *MockAPI) FailNext(suffix string, status int, message string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.failures[suffix] = failure{status: status, message: message}
}

// Hold delays list responses for the given status filter until Release.
// The returned channel is closed once such a request has arrived.
func (api *MockAPI) Hold(status string) <-chan struct{} {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.holds[status] = make(chan struct{})
	arrived := make(chan struct{})
	api.arrived[status] = arrived
	return arrived
}

func (api *MockAPI) Release(status string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if hold, ok := api.holds[status]; ok {
		close(hold)
		delete(api.holds, status)
	}
}

func (api *MockAPI) Requests() []RecordedRequest {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]RecordedRequest(nil), api.requests...)
}

// LastRequest returns the latest request whose path ends with suffix.
func (api *MockAPI) LastRequest(suffix string) (RecordedRequest, bool) {
	api.mu.Lock()
	defer api.mu.Unlock()
	for i := len(api.requests) - 1; i >= 0; i-- {
		if strings.HasSuffix(api.requests[i].Path, suffix) {
			return api.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

func (api *MockAPI) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.requests = append(api.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
		})
		var fail *failure
		for suffix, f := range api.failures {
			if strings.HasSuffix(r.URL.Path, suffix) {
				f := f
				fail = &f
				delete(api.failures, suffix)
				break
			}
		}
		api.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+api.Token {
			sendJson(w, http.StatusUnauthorized, models.BaseError{Message: "Unauthenticated."})
			return
		}
		if fail != nil {
			sendJson(w, fail.status, models.BaseError{Message: fail.message})
			return
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		next.ServeHTTP(w, r)
	})
}

func sendJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func notFound(w http.ResponseWriter) {
	body := models.NewNotFoundError("invitation")
	body.Message = "Invitation not found."
	sendJson(w, http.StatusNotFound, body)
}

func (api *MockAPI) waitForRelease(status string) {
	api.mu.Lock()
	hold := api.holds[status]
	arrived := api.arrived[status]
	delete(api.arrived, status)
	api.mu.Unlock()
	if arrived != nil {
		close(arrived)
	}
	if hold != nil {
		<-hold
	}
}

func (api *MockAPI) listIncoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	api.waitForRelease(status)

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = 20
	}

	api.mu.Lock()
	var matched []models.Invitation
	for _, inv := range api.invitations {
		if status == "" || inv.Status.String() == status {
			matched = append(matched, inv)
		}
	}
	api.mu.Unlock()

	last := (len(matched) + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}
	data := []models.Invitation{}
	if start := (page - 1) * perPage; start < len(matched) {
		end := min(start+perPage, len(matched))
		data = matched[start:end]
	}
	sendJson(w, http.StatusOK, map[string]any{
		"data": data,
		"meta": map[string]int{
			"current_page": page,
			"last_page":    last,
			"per_page":     perPage,
			"total":        len(matched),
		},
	})
}

// find returns the index of the invitation with token, or -1. Callers hold api.mu.
func (api *MockAPI) find(token string) int {
	for i, inv := range api.invitations {
		if inv.Token == token {
			return i
		}
	}
	return -1
}

func (api *MockAPI) getByToken(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	i := api.find(r.PathValue("token"))
	if i < 0 {
		api.mu.Unlock()
		notFound(w)
		return
	}
	inv := api.invitations[i]
	api.mu.Unlock()
	sendJson(w, http.StatusOK, map[string]any{"data": inv})
}

// resolvable checks the invitation for token may be accepted or declined and
// writes the error response if not. Callers hold api.mu.
func (api *MockAPI) resolvable(w http.ResponseWriter, token string) int {
	i := api.find(token)
	if i < 0 {
		notFound(w)
		return -1
	}
	inv := api.invitations[i]
	if inv.IsExpired || inv.Status == models.StatusExpired {
		sendJson(w, http.StatusGone, models.NewGoneError("This invitation has expired."))
		return -1
	}
	if inv.Status.IsTerminal() {
		sendJson(w, http.StatusForbidden, models.NewNotAllowedError("This invitation has already been "+inv.Status.String()+"."))
		return -1
	}
	return i
}

func (api *MockAPI) accept(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()
	i := api.resolvable(w, r.PathValue("token"))
	if i < 0 {
		return
	}
	accepted, err := api.invitations[i].Accept(api.now)
	if err != nil {
		sendJson(w, http.StatusConflict, models.NewNotAllowedError(err.Error()))
		return
	}
	api.invitations[i] = accepted
	sendJson(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"contractor": models.ContractorLink{
				ID:          "contractor-" + accepted.ID,
				Name:        accepted.FromOrganization.Name,
				ConnectedAt: api.now,
			},
		},
		"message": "Invitation accepted successfully.",
	})
}

func (api *MockAPI) decline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		sendJson(w, http.StatusBadRequest, models.NewFieldValidationError("reason", err.Error()))
		return
	}
	if len(body.Reason) > 500 {
		sendJson(w, http.StatusUnprocessableEntity, models.NewFieldValidationError("reason", "The reason may not be greater than 500 characters."))
		return
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	i := api.resolvable(w, r.PathValue("token"))
	if i < 0 {
		return
	}
	declined, err := api.invitations[i].Decline(api.now, body.Reason)
	if err != nil {
		sendJson(w, http.StatusConflict, models.NewNotAllowedError(err.Error()))
		return
	}
	api.invitations[i] = declined
	sendJson(w, http.StatusOK, map[string]any{"message": "Invitation declined."})
}

func (api *MockAPI) getStats(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.stats != nil {
		sendJson(w, http.StatusOK, map[string]any{"data": api.stats})
		return
	}
	var received models.Counters
	for _, inv := range api.invitations {
		received.Total++
		switch inv.Status {
		case models.StatusPending:
			received.Pending++
		case models.StatusAccepted:
			received.Accepted++
		case models.StatusDeclined:
			received.Declined++
		case models.StatusExpired:
		}
	}
	sendJson(w, http.StatusOK, map[string]any{"data": models.Stats{ReceivedInvitations: received}})
}
