package models

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Assets maps asset keys (CoinGecko slugs) to the supported coins.
// Only btc and eth have a dominance entry in CoinGecko's global payload.
var Assets = map[string]Coin{
	"bitcoin":  {Name: "Bitcoin", ID: "bitcoin", Symbol: "BTC", DominanceKey: "btc"},
	"ethereum": {Name: "Ethereum", ID: "ethereum", Symbol: "ETH", DominanceKey: "eth"},
	"solana":   {Name: "Solana", ID: "solana", Symbol: "SOL"},
}

// AssetKeys returns the supported asset keys in a stable order.
func AssetKeys() []string {
	keys := make([]string, 0, len(Assets))
	for k := range Assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultDemoQuotes returns a fresh copy of the static quotes served when an
// asset has never been fetched successfully.
func DefaultDemoQuotes() map[string]Quote {
	return map[string]Quote{
		"bitcoin": {
			Name:              "Bitcoin",
			Symbol:            "BTC",
			Price:             120000,
			Change24h:         1199.88,
			ChangePct24h:      1.01,
			MarketCap:         2.39e12,
			Volume24h:         4.5e10,
			Dominance:         58.2,
			CirculatingSupply: 19.9e6,
		},
		"ethereum": {
			Name:              "Ethereum",
			Symbol:            "ETH",
			Price:             4500,
			Change24h:         103.33,
			ChangePct24h:      2.35,
			MarketCap:         5.43e11,
			Volume24h:         2.1e10,
			Dominance:         12.9,
			CirculatingSupply: 120.7e6,
		},
		"solana": {
			Name:              "Solana",
			Symbol:            "SOL",
			Price:             210,
			Change24h:         -1.8,
			ChangePct24h:      -0.85,
			MarketCap:         1.14e11,
			Volume24h:         4.2e9,
			CirculatingSupply: 5.42e8,
		},
	}
}

// LoadDemoQuotesFromJSON loads demo quotes from a JSON file and merges them
// into quotes. An empty path or a missing file keeps the defaults.
func LoadDemoQuotesFromJSON(filePath string, quotes map[string]Quote) error {
	if filePath == "" {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("demo quotes file not found, using defaults", "path", filePath)
			return nil
		}
		return err
	}

	var custom map[string]Quote
	if err := json.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("parse demo quotes %s: %w", filePath, err)
	}

	for assetID, q := range custom {
		if _, ok := Assets[assetID]; !ok {
			return fmt.Errorf("demo quote for unsupported asset %q", assetID)
		}
		quotes[assetID] = q
	}

	slog.Info("loaded custom demo quotes", "path", filePath, "count", len(custom))
	return nil
}
