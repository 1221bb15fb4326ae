package telegram

import (
	"fmt"
	"strings"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/service"

	"github.com/shopspring/decimal"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// FormatPrice picks precision by magnitude: cents with thousands
// separators from 1 up, four places from 0.01, eight below that.
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price)
	switch {
	case price >= 1:
		return "$" + groupThousands(d.StringFixed(2))
	case price >= 0.01:
		return "$" + d.StringFixed(4)
	default:
		return "$" + d.StringFixed(8)
	}
}

func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteString("." + frac)
	}
	return b.String()
}

func FormatChange(change float64) string {
	switch {
	case change > 0:
		return fmt.Sprintf("📈 +%.2f%%", change)
	case change < 0:
		return fmt.Sprintf("📉 %.2f%%", change)
	default:
		return fmt.Sprintf("➡️ %.2f%%", change)
	}
}

func MarketCapCategory(marketCap float64) string {
	switch billions := marketCap / 1e9; {
	case billions >= 1:
		return fmt.Sprintf("🔷 Large Cap ($%.1fB)", billions)
	case marketCap/1e6 >= 100:
		return fmt.Sprintf("💎 Mid Cap ($%.0fM)", marketCap/1e6)
	default:
		return fmt.Sprintf("💎 Small Cap ($%.0fM)", marketCap/1e6)
	}
}

// FormatMessage renders an alert as Telegram Markdown. Times are shown in
// IST.
func FormatMessage(a service.Alert, now time.Time) string {
	sig := a.Signal
	emoji := "🟢"
	if sig.Direction == models.DirectionSell {
		emoji = "🔴"
	}
	title, banner := "STANDARD SIGNAL", "💎 QUALITY CONFIRMED SIGNAL 💎"
	if a.Asset.Tier == models.TierHighRisk {
		title, banner = "HIGH RISK SIGNAL", "⚡ PREMIUM AUTHENTICATED SIGNAL ⚡"
	}
	local := now.In(ist)
	link := a.ChartURL
	if link == "" {
		link = "https://www.tradingview.com"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", emoji, title, emoji)
	fmt.Fprintf(&b, "*%s-USD : %s*\n", a.Asset.Symbol, sig.Direction)
	fmt.Fprintf(&b, "%s\n", MarketCapCategory(a.Asset.MarketCap))
	fmt.Fprintf(&b, "%s\n\n", banner)
	fmt.Fprintf(&b, "💰 *Price*: %s\n", FormatPrice(a.Asset.Price))
	fmt.Fprintf(&b, "📊 *24h Change*: %s\n", FormatChange(a.Asset.Change24h))
	fmt.Fprintf(&b, "📈 *TrendPulse*: WT1:%.2f | WT2:%.2f\n", sig.WT1, sig.WT2)
	fmt.Fprintf(&b, "🎯 *StochRSI 2H*: K:%.1f D:%.1f\n", sig.K, sig.D)
	fmt.Fprintf(&b, "💪 *Signal Strength*: %.1f\n", sig.Strength)
	fmt.Fprintf(&b, "✅ *Confirmation*: %s\n", sig.Reason)
	fmt.Fprintf(&b, "🕐 *Time*: %s IST\n", local.Format("03:04 PM 02-01-2006"))
	fmt.Fprintf(&b, "📅 *Date*: %s\n", local.Format("Monday, 02 January 2006"))
	fmt.Fprintf(&b, "📊 1H Heikin Ashi TrendPulse + 2H StochRSI\n\n")
	fmt.Fprintf(&b, "🔗 [Live Chart](%s)", link)
	return b.String()
}
