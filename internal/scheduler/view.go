// Package scheduler keeps one asset's quote current for a mounted view.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coinpulse/internal/market"
)

const DefaultInterval = 120 * time.Second

type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
	StateDegraded // showing stale or demo data
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	case StateReady:
		return "READY"
	case StateDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

type QuoteFetcher interface {
	FetchQuote(ctx context.Context, asset string) (market.Result, error)
}

// Snapshot is what the view currently shows. While Fetching, Result still
// holds the previous quote.
type Snapshot struct {
	Asset     string
	State     State
	Result    market.Result
	Err       error
	UpdatedAt time.Time
}

// View drives Idle -> Fetching -> Ready|Degraded for one asset at a time.
// Mount fetches at once and then on every tick; SetAsset and Unmount retire
// the running loop and wait for it, so a stale timer never publishes.
//
// onUpdate runs on the loop goroutine after every completed fetch. It must
// not call Mount, SetAsset or Unmount synchronously.
type View struct {
	fetcher  QuoteFetcher
	interval time.Duration
	onUpdate func(Snapshot)
	logger   *slog.Logger

	lifecycle sync.Mutex // serialises Mount/SetAsset/Unmount
	parent    context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	mu   sync.RWMutex
	gen  uint64
	snap Snapshot
}

func NewView(fetcher QuoteFetcher, interval time.Duration, onUpdate func(Snapshot), logger *slog.Logger) *View {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		fetcher:  fetcher,
		interval: interval,
		onUpdate: onUpdate,
		logger:   logger,
	}
}

// Mount starts refreshing asset, replacing whatever was mounted before.
func (v *View) Mount(ctx context.Context, asset string) {
	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()

	v.teardown()
	v.parent = ctx
	v.start(asset)
}

// SetAsset retargets a mounted view. On an unmounted view it is a no-op.
func (v *View) SetAsset(asset string) {
	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()

	if v.cancel == nil {
		return
	}
	v.teardown()
	v.start(asset)
}

// Unmount stops the timer and returns the view to Idle.
func (v *View) Unmount() {
	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()

	v.teardown()
	v.parent = nil
}

// Mounted reports whether a refresh loop is running.
func (v *View) Mounted() bool {
	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()
	return v.cancel != nil
}

func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}

func (v *View) start(asset string) {
	ctx, cancel := context.WithCancel(v.parent)

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.snap = Snapshot{Asset: asset, State: StateIdle}
	v.mu.Unlock()

	done := make(chan struct{})
	v.cancel = cancel
	v.done = done

	go v.run(ctx, gen, asset, done)
	v.logger.Info("view mounted", "asset", asset, "interval", v.interval)
}

// teardown must be called with lifecycle held.
func (v *View) teardown() {
	if v.cancel == nil {
		return
	}

	v.mu.Lock()
	v.gen++
	asset := v.snap.Asset
	v.snap = Snapshot{State: StateIdle}
	v.mu.Unlock()

	v.cancel()
	<-v.done
	v.cancel = nil
	v.done = nil
	v.logger.Info("view unmounted", "asset", asset)
}

func (v *View) run(ctx context.Context, gen uint64, asset string, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("view refresh panic recovered", "asset", asset, "panic", r)
		}
	}()

	v.refresh(ctx, gen, asset)

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.refresh(ctx, gen, asset)
		}
	}
}

func (v *View) refresh(ctx context.Context, gen uint64, asset string) {
	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	v.snap.State = StateFetching
	v.mu.Unlock()

	res, err := v.fetcher.FetchQuote(ctx, asset)
	if ctx.Err() != nil {
		// retired while in flight, drop the result
		return
	}

	snap := Snapshot{Asset: asset, Result: res, Err: err, UpdatedAt: time.Now()}
	switch {
	case err != nil:
		snap.State = StateDegraded
		v.logger.Warn("view refresh failed", "asset", asset, "error", err)
	case res.Source != market.SourceFresh:
		snap.State = StateDegraded
	default:
		snap.State = StateReady
	}

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	v.snap = snap
	v.mu.Unlock()

	v.logger.Debug("view refreshed", "asset", asset, "state", snap.State, "source", res.Source)
	if v.onUpdate != nil {
		v.onUpdate(snap)
	}
}
