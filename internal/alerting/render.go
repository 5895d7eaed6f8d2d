package alerting

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	etherscanBaseURL   = "https://etherscan.io/"
	cowExplorerBaseURL = "https://explorer.cow.fi/"
)

// Render formats an alert as Telegram markdown.
func Render(alert Alert) string {
	b := &strings.Builder{}

	switch alert.Kind {
	case KindLargeMint:
		renderMint(b, alert)
	case KindSolverSettlement:
		renderSolve(b, alert)
	case KindBribeAdded:
		renderBribe(b, alert)
	case KindLockChanged:
		renderLock(b, alert)
	case KindFeesCheckpointed:
		renderFees(b, alert)
	case KindFailedTx:
		renderFailedTx(b, alert)
	default:
		fmt.Fprintf(b, "*%s*\n", alert.Kind)
	}

	fmt.Fprintf(b, "\n🔗 [Etherscan](%stx/%s)", etherscanBaseURL, alert.TxHash.Hex())
	if alert.Kind == KindSolverSettlement {
		fmt.Fprintf(b, " | [Cow Explorer](%stx/%s)", cowExplorerBaseURL, alert.TxHash.Hex())
	}
	return b.String()
}

func renderMint(b *strings.Builder, alert Alert) {
	b.WriteString("✨ *yCRV mint detected!*\n\n")
	fmt.Fprintf(b, "User: %s", addressMarkdown(alert.Participant))
	if alert.NewParticipant {
		b.WriteString(" (first mint)")
	}
	b.WriteString("\n\n")
	if len(alert.Amounts) > 0 {
		amt := alert.Amounts[0]
		if alert.SubLabel == "migrated" {
			fmt.Fprintf(b, "%s yveCRV migrated", formatAmount(amt))
		} else {
			fmt.Fprintf(b, "%s CRV locked", formatAmount(amt))
		}
	}
	b.WriteString("\n")
}

func renderSolve(b *strings.Builder, alert Alert) {
	emoji := "🐬"
	if alert.SubLabel == "prod" {
		emoji = "🧜‍♂️"
	}
	fmt.Fprintf(b, "%s *New solve detected!*\n", emoji)
	fmt.Fprintf(b, "by %s   %s\n\n", addressMarkdown(alert.Participant), alert.At.UTC().Format("01/02 15:04"))

	if len(alert.Trades) > 0 {
		b.WriteString("📕 *Trades*:\n")
		for _, t := range alert.Trades {
			fmt.Fprintf(b, "    User: %s\n", addressMarkdown(t.Owner))
			fmt.Fprintf(b, "    [%s](%stoken/%s) %s --> [%s](%stoken/%s) %s\n\n",
				t.Sell.Symbol, etherscanBaseURL, t.SellToken.Hex(), formatValue(t.Sell.Value),
				t.Buy.Symbol, etherscanBaseURL, t.BuyToken.Hex(), formatValue(t.Buy.Value))
		}
	}

	if len(alert.Slippage) > 0 {
		b.WriteString("📉 *Slippage*:\n")
		for _, s := range alert.Slippage {
			fmt.Fprintf(b, "    %s: %s\n", s.Symbol, formatValue(s.Amount))
		}
	}

	if alert.GasNative != nil {
		fmt.Fprintf(b, "⛽ Gas: %s ETH", alert.GasNative.StringFixed(5))
		if alert.GasUSD != nil {
			fmt.Fprintf(b, " ($%s)", alert.GasUSD.StringFixed(2))
		}
		b.WriteString("\n")
	}
	if alert.Position >= 0 {
		fmt.Fprintf(b, "Index in block: %d\n", alert.Position)
	}
}

func renderBribe(b *strings.Builder, alert Alert) {
	b.WriteString("🤑 *New bribe posted!*\n\n")
	fmt.Fprintf(b, "Briber: %s\n", addressMarkdown(alert.Participant))
	if len(alert.Amounts) > 0 {
		fmt.Fprintf(b, "Amount: %s\n", formatAmount(alert.Amounts[0]))
	}
}

func renderLock(b *strings.Builder, alert Alert) {
	if alert.SubLabel == "withdrawal" {
		b.WriteString("🔓 *Lock withdrawal detected!*\n\n")
	} else {
		b.WriteString("🔒 *New lock deposit!*\n\n")
	}
	fmt.Fprintf(b, "User: %s", addressMarkdown(alert.Participant))
	if alert.NewParticipant {
		b.WriteString(" (new locker)")
	}
	b.WriteString("\n")
	if len(alert.Amounts) > 0 {
		fmt.Fprintf(b, "Amount: %s\n", formatAmount(alert.Amounts[0]))
	}
}

func renderFees(b *strings.Builder, alert Alert) {
	b.WriteString("💰 *Fees checkpointed!*\n\n")
	if len(alert.Amounts) > 0 {
		fmt.Fprintf(b, "Amount: %s\n", formatAmount(alert.Amounts[0]))
	}
}

func renderFailedTx(b *strings.Builder, alert Alert) {
	b.WriteString("❌ *Failed transaction!*\n\n")
	fmt.Fprintf(b, "From: %s\n", addressMarkdown(alert.Participant))
	if alert.GasNative != nil {
		fmt.Fprintf(b, "Gas burned: %s ETH", alert.GasNative.StringFixed(5))
		if alert.GasUSD != nil {
			fmt.Fprintf(b, " ($%s)", alert.GasUSD.StringFixed(2))
		}
		b.WriteString("\n")
	}
}

func addressMarkdown(addr common.Address) string {
	hex := addr.Hex()
	return fmt.Sprintf("[%s...](%saddress/%s)", hex[:7], etherscanBaseURL, hex)
}

func formatAmount(a Amount) string {
	text := formatValue(a.Value)
	if a.Symbol != "" {
		text += " " + a.Symbol
	}
	if a.Approximate {
		text = "~" + text
	}
	return text
}

// formatValue renders a decimal with thousands separators and trailing
// zeros trimmed.
func formatValue(v decimal.Decimal) string {
	text := v.StringFixed(4)
	neg := strings.HasPrefix(text, "-")
	if neg {
		text = text[1:]
	}

	parts := strings.SplitN(text, ".", 2)
	whole := parts[0]

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	out := grouped.String()
	if len(parts) == 2 {
		out += "." + strings.TrimRight(parts[1], "0")
		out = strings.TrimRight(out, ".")
	}
	if neg {
		out = "-" + out
	}
	return out
}
