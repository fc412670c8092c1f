package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"coinpulse/internal/market"
	"coinpulse/internal/models"
	"coinpulse/internal/narrative"
	"coinpulse/internal/scheduler"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

// Telegram rejects messages longer than 4096 characters.
const maxMessageRunes = 4096

const sparklinePoints = 24

var sparkBars = []rune("▁▂▃▄▅▆▇█")

func helpText() string {
	return `🪙 coinpulse

/price <asset> - current quote
/prices - all supported assets ranked by market cap
/analysis <asset> - AI market analysis with sources
/watch <asset> - live dashboard that refreshes in place
/unwatch - stop the live dashboard
/assets - list supported assets

Assets can be given by id or symbol (bitcoin, btc). Default: bitcoin.`
}

func unknownAssetText(arg string) string {
	return fmt.Sprintf("Unknown asset %q. Supported: %s", arg, strings.Join(models.AssetKeys(), ", "))
}

func formatValue(value float64) string {
	if value == 0 {
		return "N/A"
	}
	if value >= 1e12 {
		return fmt.Sprintf("%.2f T", value/1e12)
	}
	if value >= 1e9 {
		return fmt.Sprintf("%.2f B", value/1e9)
	}
	if value >= 1e6 {
		return fmt.Sprintf("%.2f M", value/1e6)
	}
	return fmt.Sprintf("%.2f", value)
}

// formatPrice shows two decimals with thousands separators, four below $1.
func formatPrice(price float64) string {
	if price == 0 {
		return "N/A"
	}
	places := int32(2)
	if price < 1 {
		places = 4
	}
	s := decimal.NewFromFloat(price).StringFixed(places)
	whole, frac, _ := strings.Cut(s, ".")
	return "$" + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func changeIndicator(pct float64) string {
	switch {
	case pct > 0:
		return "🟢"
	case pct < 0:
		return "🔴"
	default:
		return "➖"
	}
}

// sparkline renders a series as block characters scaled between its min and
// max. A flat series renders at mid height.
func sparkline(series []float64) string {
	if len(series) == 0 {
		return ""
	}
	lo, hi := series[0], series[0]
	for _, v := range series {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]rune, len(series))
	for i, v := range series {
		idx := len(sparkBars) / 2
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkBars)-1))
		}
		out[i] = sparkBars[idx]
	}
	return string(out)
}

func formatQuote(res market.Result) string {
	q := res.Quote
	lines := []string{
		fmt.Sprintf("%s %s (%s)", changeIndicator(q.ChangePct24h), q.Name, q.Symbol),
		fmt.Sprintf("💰 %s (%+.2f%% / %s)", formatPrice(q.Price), q.ChangePct24h, signedPrice(q.Change24h)),
		fmt.Sprintf("📈 Vol 24h: %s | 💎 MC: %s", formatValue(q.Volume24h), formatValue(q.MarketCap)),
	}
	if q.Dominance > 0 {
		lines = append(lines, fmt.Sprintf("👑 Dominance: %.2f%%", q.Dominance))
	}
	if q.CirculatingSupply > 0 {
		lines = append(lines, fmt.Sprintf("🔄 Supply: %s %s", formatValue(q.CirculatingSupply), q.Symbol))
	}
	if s := sparkline(market.SyntheticHistory(q, sparklinePoints)); s != "" {
		lines = append(lines, s+" 24h")
	}
	if res.Notice != "" {
		lines = append(lines, "⚠️ "+res.Notice)
	}
	return strings.Join(lines, "\n")
}

func signedPrice(v float64) string {
	if v == 0 {
		return "+$0.00"
	}
	if v < 0 {
		return "-" + formatPrice(-v)
	}
	return "+" + formatPrice(v)
}

func formatOverview(results []market.Result, now time.Time) string {
	var rows []string
	for i, res := range results {
		q := res.Quote
		row := fmt.Sprintf("#%d %s | 💰 %s (%s%.2f%%) | 💎 MC: %s",
			i+1,
			q.Symbol,
			formatPrice(q.Price),
			changeIndicator(q.ChangePct24h),
			q.ChangePct24h,
			formatValue(q.MarketCap))
		if res.Notice != "" {
			row += " | ⚠️ " + res.Notice
		}
		rows = append(rows, row)
	}

	return fmt.Sprintf("🏆 MARKET OVERVIEW 🏆\n\n%s\n\n📊 Updated: %s",
		strings.Join(rows, "\n"),
		now.UTC().Format("2006-01-02 15:04 UTC"))
}

func formatDashboard(s scheduler.Snapshot) string {
	var body string
	if s.Err != nil {
		body = fmt.Sprintf("Data unavailable: %v", s.Err)
	} else {
		body = formatQuote(s.Result)
	}
	return fmt.Sprintf("📊 LIVE %s\n\n%s\n\n%s | Updated: %s",
		strings.ToUpper(s.Asset),
		body,
		s.State,
		s.UpdatedAt.UTC().Format("15:04:05 UTC"))
}

func formatNarrative(q models.Quote, res market.Result, n models.Narrative) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧠 %s (%s) ANALYSIS\n\n", q.Name, q.Symbol)
	if res.Notice != "" {
		fmt.Fprintf(&b, "⚠️ Based on %s.\n\n", res.Notice)
	}
	b.WriteString(strings.TrimSpace(n.Text))

	if len(n.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for i, src := range n.Sources {
			title := src.Title
			if title == "" {
				title = src.Host
			}
			fmt.Fprintf(&b, "\n%d. %s (%s)\n%s", i+1, title, src.Host, src.URL)
		}
	}
	return b.String()
}

func formatNarrativeError(asset string, err error) string {
	var reason string
	var apiErr *openai.APIError
	switch {
	case errors.Is(err, narrative.ErrMissingCredential):
		reason = "analysis is not configured (OPENAI_API_KEY is not set)"
	case errors.As(err, &apiErr):
		reason = fmt.Sprintf("upstream error (HTTP %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	case errors.Is(err, narrative.ErrMalformedResponse), errors.Is(err, narrative.ErrEmptyContent):
		reason = "the model returned an unusable response"
	default:
		reason = err.Error()
	}
	return fmt.Sprintf("⚠️ Analysis unavailable: %s\nSend /analysis %s to retry.", reason, asset)
}

func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxMessageRunes-1]) + "…"
}
