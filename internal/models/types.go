package models

import "time"

// Coin is one supported asset. DominanceKey is the short code CoinGecko's
// global endpoint uses for the asset, empty when dominance is not tracked.
type Coin struct {
	Name         string
	ID           string
	Symbol       string
	DominanceKey string
}

type MultiCurrency struct {
	USD float64 `json:"usd"`
}

type CoinData struct {
	Price                    MultiCurrency `json:"current_price"`
	PriceChange24h           MultiCurrency `json:"price_change_24h_in_currency"`
	PriceChangePercentage24h float64       `json:"price_change_percentage_24h"`
	MarketCap                MultiCurrency `json:"market_cap"`
	Volume24h                MultiCurrency `json:"total_volume"`
	CirculatingSupply        float64       `json:"circulating_supply"`
}

type CoinGeckoResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Symbol     string   `json:"symbol"`
	MarketData CoinData `json:"market_data"`
}

type GlobalResponse struct {
	Data struct {
		MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

// Quote is the merged market snapshot shown for one asset.
type Quote struct {
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	Change24h         float64 `json:"change_24h"`
	ChangePct24h      float64 `json:"change_pct_24h"`
	MarketCap         float64 `json:"market_cap"`
	Volume24h         float64 `json:"volume_24h"`
	Dominance         float64 `json:"dominance"` // 0 when not tracked
	CirculatingSupply float64 `json:"circulating_supply"`
}

// Source is a citation attached to a generated narrative.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Host  string `json:"host"`
}

// Narrative is a generated market analysis. IsReal is false only for
// placeholders built by callers, never for fetcher output.
type Narrative struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Sources     []Source  `json:"sources"`
	IsReal      bool      `json:"is_real"`
	GeneratedAt time.Time `json:"generated_at"`
}
