package notifier

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"TrancheVault/internal/model"
)

// FormatAmount renders a raw integer amount with the given number of display decimals.
func FormatAmount(x *big.Int, decimals int32) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x, -decimals).String()
}

func shortAddr(a common.Address) string {
	h := a.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}

// FormatStatus formats the vault status for display.
func FormatStatus(st *model.VaultStatus, decimals int32) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏦 <b>TrancheVault</b> | %s\n\n", st.AsOf.Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("Phase: <b>%s</b> (cycle %d)\n", st.Phase, st.Cycle))
	if st.TimeRemaining > 0 {
		b.WriteString(fmt.Sprintf("Next transition in: %s\n", st.TimeRemaining.Truncate(time.Minute)))
	} else {
		b.WriteString("Next transition: due\n")
	}
	if st.Emergency {
		b.WriteString("🚨 <b>Emergency mode ACTIVE</b>\n")
	}
	b.WriteString("\n")

	for _, p := range st.Pools {
		b.WriteString(fmt.Sprintf("Pool %s: %s\n", shortAddr(p.Asset), FormatAmount(p.Balance, decimals)))
	}
	b.WriteString(fmt.Sprintf("TVL: %s\n", FormatAmount(st.TotalValueLocked, decimals)))
	b.WriteString(fmt.Sprintf("Issued: %s (SNR %s | JNR %s)\n",
		FormatAmount(st.TotalIssued, decimals),
		FormatAmount(st.SeniorSupply, decimals),
		FormatAmount(st.JuniorSupply, decimals)))
	return b.String()
}

// FormatEvent formats a vault event as a one-line alert.
func FormatEvent(evt model.Event, decimals int32) string {
	switch e := evt.(type) {
	case model.PhaseTransitioned:
		how := "advanced"
		if e.Forced {
			how = "force-advanced"
		}
		return fmt.Sprintf("⏱ Phase %s: %s → <b>%s</b>", how, e.OldPhase, e.NewPhase)
	case model.CycleStarted:
		return fmt.Sprintf("🔄 Cycle <b>%d</b> started", e.Cycle)
	case model.EmergencyModeToggled:
		if e.IsActive {
			return "🚨 <b>Emergency mode ACTIVATED</b>: only senior emergency withdrawals allowed"
		}
		return "✅ Emergency mode deactivated"
	case model.OwnershipTransferred:
		return fmt.Sprintf("👤 Ownership transferred %s → %s", shortAddr(e.PreviousOwner), shortAddr(e.NewOwner))
	case model.AssetDeposited:
		return fmt.Sprintf("➕ %s deposited %s of %s",
			shortAddr(e.Depositor), FormatAmount(e.AmountIn, decimals), shortAddr(e.Asset))
	case model.TokensWithdrawn:
		return fmt.Sprintf("➖ %s redeemed SNR %s + JNR %s for %s A + %s B",
			shortAddr(e.Withdrawer),
			FormatAmount(e.SeniorBurned, decimals), FormatAmount(e.JuniorBurned, decimals),
			FormatAmount(e.AssetAOut, decimals), FormatAmount(e.AssetBOut, decimals))
	case model.EmergencyWithdrawal:
		return fmt.Sprintf("🆘 %s emergency-redeemed SNR %s for %s of %s",
			shortAddr(e.Withdrawer), FormatAmount(e.SeniorBurned, decimals),
			FormatAmount(e.AmountOut, decimals), shortAddr(e.Asset))
	default:
		return evt.Name()
	}
}

// FormatMarketReport compares tranche market prices with redemption value.
func FormatMarketReport(ind *model.MarketIndicators) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Tranche market</b> | %s\n\n", ind.AsOf.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("NAV per claim: %.4f\n\n", ind.NAV))
	for _, q := range []model.TrancheQuote{ind.Senior, ind.Junior} {
		b.WriteString(fmt.Sprintf("<b>%s</b>: %.4f (%+.2f%% vs NAV)\n", q.Symbol, q.Price, q.Premium*100))
		b.WriteString(fmt.Sprintf("  SMA24 %.4f | RSI %.0f | range %.4f–%.4f (%.0f%%)\n",
			q.SMA, q.RSI, q.Low, q.High, q.Position*100))
	}
	if spread := ind.Senior.Premium - ind.Junior.Premium; spread > 0.05 {
		b.WriteString(fmt.Sprintf("\n⚠️ Senior trades %.1f%% over junior relative to NAV", spread*100))
	}
	return b.String()
}

// FormatHelp lists the chat commands.
func FormatHelp() string {
	return "Available commands:\n" +
		"/status - vault status\n" +
		"/phase - current phase and timing\n" +
		"/advance - advance phase if due\n" +
		"/force_advance - advance phase now\n" +
		"/restart - start a new cycle\n" +
		"/emergency - toggle emergency mode\n" +
		"/market - tranche market report"
}
