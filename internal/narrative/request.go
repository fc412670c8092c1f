package narrative

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BucketSize is the time window inside which identical inputs share a
// cached narrative.
const BucketSize = 5 * time.Minute

// Request carries the market snapshot a narrative is generated for.
type Request struct {
	Name      string
	Symbol    string
	Price     float64
	ChangePct float64
	MarketCap float64
	Volume    float64
}

func fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// CacheKey quantises price and change to cents and time to 5-minute buckets.
// Requests that only differ below that resolution share a key.
func CacheKey(req Request, now time.Time) string {
	bucket := now.Unix() / int64(BucketSize/time.Second)
	return fmt.Sprintf("%s:%s:%s:%d", strings.ToUpper(req.Symbol), fixed2(req.Price), fixed2(req.ChangePct), bucket)
}

func compact(v float64) string {
	d := decimal.NewFromFloat(v)
	switch {
	case v >= 1e12:
		return d.Div(decimal.NewFromInt(1e12)).StringFixed(2) + "T"
	case v >= 1e9:
		return d.Div(decimal.NewFromInt(1e9)).StringFixed(2) + "B"
	case v >= 1e6:
		return d.Div(decimal.NewFromInt(1e6)).StringFixed(2) + "M"
	default:
		return d.StringFixed(2)
	}
}

// BuildPrompt renders the analysis prompt. Price and change use the same
// quantisation as CacheKey so a cached answer matches its prompt.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a cryptocurrency market analyst. Search the web for the latest news and data about %s (%s) and write a concise market analysis.\n\n",
		req.Name, strings.ToUpper(req.Symbol))
	b.WriteString("Current market data:\n")
	fmt.Fprintf(&b, "- Price: $%s\n", fixed2(req.Price))
	fmt.Fprintf(&b, "- 24h change: %s%%\n", fixed2(req.ChangePct))
	fmt.Fprintf(&b, "- Market cap: $%s\n", compact(req.MarketCap))
	fmt.Fprintf(&b, "- 24h volume: $%s\n\n", compact(req.Volume))
	b.WriteString("Structure the answer in markdown with these sections:\n")
	b.WriteString("## Market Overview\n## Key Drivers\n## Technical Levels\n## Outlook\n\n")
	b.WriteString("Cite every factual claim inline with a link to its source. Keep it under 400 words and do not give financial advice.")
	return b.String()
}
