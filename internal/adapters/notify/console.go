package notify

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Console implementa ports.Notifier e imprime reportes de mercados.
type Console struct {
	out      io.Writer
	decimals int32
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole escribe a stdout. decimals es la escala de las unidades base
// (9 → 1_000_000_000 unidades = 1.000000000).
func NewConsole(decimals int32) *Console {
	return &Console{out: os.Stdout, decimals: decimals}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, decimals int32) *Console {
	return &Console{out: w, decimals: decimals}
}

// Publish imprime una línea por evento.
func (c *Console) Publish(_ context.Context, events []domain.Event) error {
	for _, ev := range events {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s] %-18s", ev.At.Format("2006-01-02 15:04:05"), ev.Kind)
		if ev.MarketID != 0 {
			fmt.Fprintf(&sb, " market=%d", ev.MarketID)
		}
		if ev.QuestionID != 0 {
			fmt.Fprintf(&sb, " question=%d", ev.QuestionID)
		}
		if ev.Actor != "" {
			fmt.Fprintf(&sb, " actor=%s", ev.Actor)
		}
		if ev.Side != domain.NoSide {
			fmt.Fprintf(&sb, " side=%d", ev.Side)
		}
		if ev.Amount != 0 {
			fmt.Fprintf(&sb, " amount=%s", c.amount(ev.Amount))
		}
		if ev.Fee != 0 {
			fmt.Fprintf(&sb, " fee=%s", c.amount(ev.Fee))
		}
		if ev.Status != "" {
			fmt.Fprintf(&sb, " status=%s", ev.Status)
		}
		if ev.Ref != "" {
			fmt.Fprintf(&sb, " ref=%s", ev.Ref)
		}
		fmt.Fprintln(c.out, sb.String())
	}
	return nil
}

// PrintMarkets imprime la tabla de mercados con sus pools.
func (c *Console) PrintMarkets(markets []domain.Market) {
	if len(markets) == 0 {
		fmt.Fprintln(c.out, "No markets found")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Variant", "Status", "Question", "Pools", "Fees", "Winner", "Deadline")

	for _, m := range markets {
		pools := make([]string, len(m.Pools))
		for i, p := range m.Pools {
			pools[i] = c.amount(p)
		}
		table.Append(
			strconv.FormatUint(m.ID, 10),
			string(m.Variant),
			string(m.Status),
			truncate(m.Question, 40),
			strings.Join(pools, " / "),
			c.amount(m.TotalFees),
			winnerLabel(m),
			m.Deadline.Format("2006-01-02 15:04"),
		)
	}
	table.Render()
}

func (c *Console) amount(v uint64) string {
	if c.decimals <= 0 {
		return strconv.FormatUint(v, 10)
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -c.decimals).StringFixed(c.decimals)
}

func winnerLabel(m domain.Market) string {
	switch {
	case m.Status != domain.StatusResolved:
		return "-"
	case m.WinningSide >= 0 && m.WinningSide < len(m.Labels):
		return m.Labels[m.WinningSide]
	case m.Variant == domain.VariantRange:
		if m.WinningSide == domain.SideInRange {
			return "IN RANGE"
		}
		return "OUT"
	case m.Variant == domain.VariantTimeSeries:
		if m.WinningSide == domain.SideAllSucceed {
			return "ALL"
		}
		return "NOT ALL"
	case m.WinningSide == domain.SideYes:
		return "YES"
	default:
		return "NO"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
