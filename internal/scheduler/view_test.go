package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"coinpulse/internal/market"
	"coinpulse/internal/models"
)

type fakeFetcher struct {
	mu     sync.Mutex
	calls  []string
	source market.Source
	err    error
	block  map[string]chan struct{} // fetches for these assets wait until closed or cancelled
}

func (f *fakeFetcher) FetchQuote(ctx context.Context, asset string) (market.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, asset)
	gate := f.block[asset]
	source, err := f.source, f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return market.Result{Asset: asset, Source: market.SourceDemo}, nil
		}
	}
	if err != nil {
		return market.Result{}, err
	}
	return market.Result{Asset: asset, Source: source, Quote: models.Quote{Symbol: asset}}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect() (func(Snapshot), <-chan Snapshot) {
	ch := make(chan Snapshot, 64)
	return func(s Snapshot) { ch <- s }, ch
}

func waitUpdate(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for view update")
		return Snapshot{}
	}
}

func TestView_MountFetchesImmediately(t *testing.T) {
	f := &fakeFetcher{source: market.SourceFresh}
	onUpdate, updates := collect()
	v := NewView(f, time.Hour, onUpdate, quiet())

	if v.Snapshot().State != StateIdle {
		t.Errorf("initial state = %s", v.Snapshot().State)
	}

	v.Mount(context.Background(), "bitcoin")
	defer v.Unmount()

	s := waitUpdate(t, updates)
	if s.State != StateReady || s.Asset != "bitcoin" {
		t.Errorf("snapshot = %s/%s, want READY/bitcoin", s.State, s.Asset)
	}
	if got := v.Snapshot(); got.State != StateReady || got.Result.Quote.Symbol != "bitcoin" {
		t.Errorf("Snapshot() = %+v", got)
	}
	if !v.Mounted() {
		t.Error("Mounted() = false")
	}
}

func TestView_RefreshesOnInterval(t *testing.T) {
	f := &fakeFetcher{source: market.SourceFresh}
	onUpdate, updates := collect()
	v := NewView(f, 15*time.Millisecond, onUpdate, quiet())

	v.Mount(context.Background(), "ethereum")
	defer v.Unmount()

	for i := 0; i < 3; i++ {
		waitUpdate(t, updates)
	}
	if f.callCount() < 3 {
		t.Errorf("calls = %d, want at least 3", f.callCount())
	}
}

func TestView_Degraded(t *testing.T) {
	tests := []struct {
		name   string
		source market.Source
		err    error
	}{
		{"stale", market.SourceStale, nil},
		{"demo", market.SourceDemo, nil},
		{"error", market.SourceFresh, errors.New("unknown asset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{source: tt.source, err: tt.err}
			onUpdate, updates := collect()
			v := NewView(f, time.Hour, onUpdate, quiet())

			v.Mount(context.Background(), "solana")
			defer v.Unmount()

			s := waitUpdate(t, updates)
			if s.State != StateDegraded {
				t.Errorf("state = %s, want DEGRADED", s.State)
			}
			if (s.Err != nil) != (tt.err != nil) {
				t.Errorf("Err = %v", s.Err)
			}
		})
	}
}

func TestView_SetAssetDropsStaleFetch(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{source: market.SourceFresh, block: map[string]chan struct{}{"bitcoin": gate}}
	onUpdate, updates := collect()
	v := NewView(f, time.Hour, onUpdate, quiet())

	v.Mount(context.Background(), "bitcoin")
	defer v.Unmount()

	// Wait until the bitcoin fetch is in flight.
	deadline := time.Now().Add(2 * time.Second)
	for f.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if v.Snapshot().State != StateFetching {
		t.Errorf("state while in flight = %s, want FETCHING", v.Snapshot().State)
	}

	v.SetAsset("ethereum")
	close(gate)

	s := waitUpdate(t, updates)
	if s.Asset != "ethereum" {
		t.Fatalf("first published update is for %s, want ethereum", s.Asset)
	}
	select {
	case s := <-updates:
		t.Errorf("unexpected extra update for %s", s.Asset)
	case <-time.After(50 * time.Millisecond):
	}
	if got := v.Snapshot().Asset; got != "ethereum" {
		t.Errorf("Snapshot().Asset = %s", got)
	}
}

func TestView_UnmountStopsTimer(t *testing.T) {
	f := &fakeFetcher{source: market.SourceFresh}
	onUpdate, updates := collect()
	v := NewView(f, 10*time.Millisecond, onUpdate, quiet())

	v.Mount(context.Background(), "bitcoin")
	waitUpdate(t, updates)
	v.Unmount()

	calls := f.callCount()
	time.Sleep(60 * time.Millisecond)
	if f.callCount() != calls {
		t.Errorf("fetches continued after Unmount: %d -> %d", calls, f.callCount())
	}
	if v.Snapshot().State != StateIdle {
		t.Errorf("state after Unmount = %s", v.Snapshot().State)
	}
	if v.Mounted() {
		t.Error("Mounted() = true after Unmount")
	}

	// SetAsset on an unmounted view does nothing.
	v.SetAsset("ethereum")
	if v.Mounted() {
		t.Error("SetAsset mounted an unmounted view")
	}
}

func TestView_ParentCancelStopsLoop(t *testing.T) {
	f := &fakeFetcher{source: market.SourceFresh}
	onUpdate, updates := collect()
	v := NewView(f, 10*time.Millisecond, onUpdate, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	v.Mount(ctx, "bitcoin")
	waitUpdate(t, updates)
	cancel()

	time.Sleep(30 * time.Millisecond)
	calls := f.callCount()
	time.Sleep(50 * time.Millisecond)
	if f.callCount() != calls {
		t.Error("loop kept running after parent context was cancelled")
	}
	v.Unmount()
}

func TestStateString(t *testing.T) {
	want := map[State]string{StateIdle: "IDLE", StateFetching: "FETCHING", StateReady: "READY", StateDegraded: "DEGRADED", State(42): "UNKNOWN"}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("%d.String() = %s, want %s", s, s.String(), w)
		}
	}
}
