package invitations

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/models"
	"github.com/sitegrid/sitegrid/internal/util"
)

type LoadMode int

const (
	// LoadReplace fetches page 1 and replaces everything loaded so far.
	LoadReplace LoadMode = iota
	// LoadAppend fetches the page after the current one and appends it.
	LoadAppend
)

func (m LoadMode) String() string {
	switch m {
	case LoadReplace:
		return "replace"
	case LoadAppend:
		return "append"
	}
	return fmt.Sprintf("LoadMode(%d)", int(m))
}

// ListState is a snapshot of a ListController.
type ListState struct {
	Filters models.Filters
	Items   []models.Invitation
	Page    models.PageInfo
	// Loaded is set once any page has been applied.
	Loaded  bool
	Loading bool
	Err     error
	// Generation identifies the current filter epoch. Every replace bumps it.
	Generation uint64
}

// ErrMessage is the human readable form of Err, or "".
func (s ListState) ErrMessage() string {
	return client.Message(s.Err)
}

// ListController pages through the incoming invitations for one filter set.
//
// Every replace starts a new generation. A response is applied only when it
// belongs to the current generation, so the last filter set issued wins no
// matter in which order responses arrive.
type ListController struct {
	gateway  Gateway
	settings settings

	mu    sync.Mutex
	state ListState
	// loaded is the filter set the items in state were fetched with. It lags
	// state.Filters after a failed replace.
	loaded models.Filters
}

func NewListController(gateway Gateway, opts ...Option) *ListController {
	return &ListController{
		gateway:  gateway,
		settings: newSettings(opts),
	}
}

func (l *ListController) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.Items = slices.Clone(l.state.Items)
	return s
}

// Replace loads page 1 for filters.
func (l *ListController) Replace(ctx context.Context, filters models.Filters) error {
	return l.Load(ctx, filters, LoadReplace)
}

// Refresh reloads page 1 for the current filters.
func (l *ListController) Refresh(ctx context.Context) error {
	l.mu.Lock()
	filters := l.state.Filters
	l.mu.Unlock()
	return l.Load(ctx, filters, LoadReplace)
}

// LoadMore appends the next page for the current filters.
func (l *ListController) LoadMore(ctx context.Context) error {
	return l.Load(ctx, models.Filters{}, LoadAppend)
}

// Load fetches a page and applies it to the state. Append ignores filters and
// uses those of the loaded list. It is a no-op when nothing is loaded, when
// there are no more pages, or when the last replace failed and the loaded
// pages belong to an older filter set. It fails with ErrBusy while another
// fetch is in flight.
// Replace is always accepted. Load returns ErrSuperseded when a newer replace
// was issued before the response arrived; the response is then discarded.
func (l *ListController) Load(ctx context.Context, filters models.Filters, mode LoadMode) error {
	l.mu.Lock()
	var page int
	switch mode {
	case LoadReplace:
		l.state.Generation++
		l.state.Filters = filters
		page = 1
	case LoadAppend:
		if l.state.Loading {
			l.mu.Unlock()
			return ErrBusy
		}
		if !l.state.Loaded || !l.state.Page.HasMore || !l.loaded.Equal(l.state.Filters) {
			l.mu.Unlock()
			return nil
		}
		filters = l.state.Filters
		page = l.state.Page.Current + 1
	default:
		l.mu.Unlock()
		return fmt.Errorf("unknown load mode %d", mode)
	}
	generation := l.state.Generation
	l.state.Loading = true
	l.mu.Unlock()
	l.settings.notify(SignalList)

	result, err := l.gateway.ListIncoming(ctx, filters, page)

	l.mu.Lock()
	if generation != l.state.Generation {
		l.mu.Unlock()
		l.settings.logger.Debugw("discarding superseded page",
			"mode", mode,
			"page", page,
			"generation", generation,
		)
		return ErrSuperseded
	}
	l.state.Loading = false
	if err != nil {
		l.state.Err = err
		l.mu.Unlock()
		l.settings.logger.Debugw("loading invitations failed",
			"mode", mode,
			"page", page,
			"filters", util.JsonStringer(filters),
			"error", err,
		)
		l.settings.notify(SignalList)
		return err
	}
	l.state.Err = nil
	switch mode {
	case LoadReplace:
		l.state.Items = slices.Clone(result.Items)
		l.loaded = filters
	case LoadAppend:
		l.logDuplicates(result.Items)
		l.state.Items = append(l.state.Items, result.Items...)
	}
	l.state.Page = result.Page
	l.state.Loaded = true
	l.mu.Unlock()
	l.settings.notify(SignalList)
	return nil
}

// logDuplicates reports ids that are both loaded and in the appended page.
// Pages are assumed disjoint, so duplicates are kept.
func (l *ListController) logDuplicates(next []models.Invitation) {
	seen := make(map[string]struct{}, len(l.state.Items))
	for _, inv := range l.state.Items {
		seen[inv.ID] = struct{}{}
	}
	for _, inv := range next {
		if _, ok := seen[inv.ID]; ok {
			l.settings.logger.Debugw("invitation appears on more than one page", "id", inv.ID)
		}
	}
}

// Patch replaces the loaded invitation with the same id, if there is one.
func (l *ListController) Patch(inv models.Invitation) bool {
	l.mu.Lock()
	found := false
	for i := range l.state.Items {
		if l.state.Items[i].ID == inv.ID {
			l.state.Items[i] = inv
			found = true
		}
	}
	l.mu.Unlock()
	if found {
		l.settings.notify(SignalList)
	}
	return found
}
