package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEntryValid(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := Entry[int]{Payload: 1, CapturedAt: base}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"same instant", base, true},
		{"just inside", base.Add(QuoteTTL - time.Millisecond), true},
		{"exactly ttl", base.Add(QuoteTTL), false},
		{"past ttl", base.Add(2 * QuoteTTL), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Valid(tt.now, QuoteTTL); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDemoQuotesCoverEveryAsset(t *testing.T) {
	demo := DefaultDemoQuotes()
	for key, coin := range Assets {
		q, ok := demo[key]
		if !ok {
			t.Fatalf("no demo quote for %s", key)
		}
		if q.Symbol != coin.Symbol || q.Name != coin.Name {
			t.Errorf("%s: demo identity %s/%s, want %s/%s", key, q.Name, q.Symbol, coin.Name, coin.Symbol)
		}
		if q.Price < 0 {
			t.Errorf("%s: negative demo price", key)
		}
		if coin.DominanceKey == "" && q.Dominance != 0 {
			t.Errorf("%s: untracked asset has dominance %.2f", key, q.Dominance)
		}
	}

	btc := demo["bitcoin"]
	if btc.Price != 120000 || btc.ChangePct24h != 1.01 {
		t.Errorf("bitcoin demo = %.2f / %.2f%%", btc.Price, btc.ChangePct24h)
	}
}

func TestDefaultDemoQuotesReturnsCopy(t *testing.T) {
	a := DefaultDemoQuotes()
	a["bitcoin"] = Quote{Price: 1}
	if DefaultDemoQuotes()["bitcoin"].Price != 120000 {
		t.Error("mutating a returned map leaked into the defaults")
	}
}

func TestLoadDemoQuotesFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.json")
	body := `{"solana": {"name": "Solana", "symbol": "SOL", "price": 150.5}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	quotes := DefaultDemoQuotes()
	if err := LoadDemoQuotesFromJSON(path, quotes); err != nil {
		t.Fatalf("LoadDemoQuotesFromJSON: %v", err)
	}
	if quotes["solana"].Price != 150.5 {
		t.Errorf("solana price = %.2f, want 150.5", quotes["solana"].Price)
	}
	if quotes["bitcoin"].Price != 120000 {
		t.Error("bitcoin default should be untouched")
	}
}

func TestLoadDemoQuotesFromJSONErrors(t *testing.T) {
	if err := LoadDemoQuotesFromJSON("", DefaultDemoQuotes()); err != nil {
		t.Errorf("empty path: %v", err)
	}
	if err := LoadDemoQuotesFromJSON(filepath.Join(t.TempDir(), "missing.json"), DefaultDemoQuotes()); err != nil {
		t.Errorf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"dogecoin": {"price": 1}}`), 0o644)
	if err := LoadDemoQuotesFromJSON(path, DefaultDemoQuotes()); err == nil {
		t.Error("expected error for unsupported asset")
	}
}

func TestAssetKeysSorted(t *testing.T) {
	keys := AssetKeys()
	want := []string{"bitcoin", "ethereum", "solana"}
	if len(keys) != len(want) {
		t.Fatalf("AssetKeys() = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("AssetKeys()[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}
