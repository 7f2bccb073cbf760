package invitations

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/models"
)

type StatsState struct {
	// Snapshot is the last successfully fetched stats, nil before the first success.
	Snapshot *models.Stats
	Loading  bool
	Err      error
}

// ErrMessage is the human readable form of Err, or "".
func (s StatsState) ErrMessage() string {
	return client.Message(s.Err)
}

// StatsAggregator keeps the latest invitation stats. A failed fetch keeps the
// previous snapshot visible and records the error.
type StatsAggregator struct {
	gateway  Gateway
	settings settings

	mu    sync.Mutex
	state StatsState
}

func NewStatsAggregator(gateway Gateway, opts ...Option) *StatsAggregator {
	return &StatsAggregator{
		gateway:  gateway,
		settings: newSettings(opts),
	}
}

func (a *StatsAggregator) State() StatsState {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	if s.Snapshot != nil {
		snapshot := *s.Snapshot
		s.Snapshot = &snapshot
	}
	return s
}

// Fetch replaces the snapshot with fresh stats. It fails with ErrBusy while
// another fetch is in flight.
func (a *StatsAggregator) Fetch(ctx context.Context) error {
	a.mu.Lock()
	if a.state.Loading {
		a.mu.Unlock()
		return ErrBusy
	}
	a.state.Loading = true
	a.mu.Unlock()
	a.settings.notify(SignalStats)

	stats, err := a.gateway.Stats(ctx)

	a.mu.Lock()
	a.state.Loading = false
	if err != nil {
		a.state.Err = err
	} else {
		a.state.Err = nil
		a.state.Snapshot = &stats
	}
	a.mu.Unlock()
	a.settings.notify(SignalStats)
	return err
}

// FormatPercent renders a ratio in [0, 1] as a whole percentage, e.g. "60%".
func FormatPercent(rate float64) string {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 0
	}
	return fmt.Sprintf("%.0f%%", math.Round(rate*100))
}
