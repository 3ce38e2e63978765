// Package receipt renders finalized sales as 40-column plain text, the
// width of common thermal printers.
package receipt

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vendafacil/api/internal/database"
	"github.com/vendafacil/api/internal/enum"
)

const width = 40

var paymentLabels = map[string]string{
	enum.PaymentMethodCash: "Dinheiro",
	enum.PaymentMethodPix:  "Pix",
	enum.PaymentMethodCard: "Cartão",
}

// Data carries everything a printed receipt shows. ComandaNumero and Mesa
// are zero-valued for balcão sales.
type Data struct {
	Store         database.Store
	Sale          database.Sale
	Items         []database.SaleItem
	ComandaNumero int32
	Mesa          string
}

// Render produces the printable receipt text. It reads only from its
// input: the sale is already immutable by the time it gets here.
func Render(d Data) string {
	var b strings.Builder

	writeCentered(&b, d.Store.Name)
	if d.Store.CNPJ.Valid {
		writeCentered(&b, "CNPJ: "+d.Store.CNPJ.String)
	}
	if d.Store.Address.Valid {
		writeCentered(&b, d.Store.Address.String)
	}
	writeDivider(&b)

	b.WriteString(d.Sale.CreatedAt.Format("02/01/2006 15:04") + "\n")
	if d.ComandaNumero > 0 {
		line := fmt.Sprintf("Comanda %d", d.ComandaNumero)
		if d.Mesa != "" {
			line += " - " + d.Mesa
		}
		b.WriteString(line + "\n")
	}
	writeDivider(&b)

	for _, item := range d.Items {
		b.WriteString(item.ProductNameSnapshot + "\n")
		qtyLine := fmt.Sprintf("  %d x %s", item.Quantity, formatBRL(item.UnitPriceCents))
		writeAmountLine(&b, qtyLine, item.SubtotalCents)
	}
	writeDivider(&b)

	writeAmountLine(&b, "TOTAL", d.Sale.TotalCents)
	b.WriteString("Pagamento: " + paymentLabel(d.Sale.PaymentMethod) + "\n")
	if d.Sale.AmountPaidCents.Valid {
		writeAmountLine(&b, "Recebido", d.Sale.AmountPaidCents.Int64)
		writeAmountLine(&b, "Troco", d.Sale.ChangeCents.Int64)
	}
	writeDivider(&b)

	writeCentered(&b, "Obrigado pela preferência!")
	return b.String()
}

// formatBRL renders integer cents as "R$ 1.234,56".
func formatBRL(cents int64) string {
	d := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
	s := d.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	out := "R$ " + grouped.String() + "," + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

func paymentLabel(method string) string {
	if label, ok := paymentLabels[method]; ok {
		return label
	}
	return method
}

func writeCentered(b *strings.Builder, s string) {
	runes := []rune(s)
	if len(runes) >= width {
		b.WriteString(s + "\n")
		return
	}
	pad := (width - len(runes)) / 2
	b.WriteString(strings.Repeat(" ", pad) + s + "\n")
}

func writeDivider(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", width) + "\n")
}

// writeAmountLine left-aligns the label and right-aligns the amount on one
// 40-column line, spilling to two lines only if the label is too long.
func writeAmountLine(b *strings.Builder, label string, cents int64) {
	amount := formatBRL(cents)
	gap := width - len([]rune(label)) - len([]rune(amount))
	if gap < 1 {
		b.WriteString(label + "\n")
		b.WriteString(strings.Repeat(" ", width-len([]rune(amount))) + amount + "\n")
		return
	}
	b.WriteString(label + strings.Repeat(" ", gap) + amount + "\n")
}
