// Package report prints a user's due states and period totals for the
// command line.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"trackme/internal/core"
	"trackme/internal/services"
)

const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTable, FormatYAML}

// Document is the YAML form of a report.
type Document struct {
	User          string             `yaml:"user"`
	Today         string             `yaml:"today"`
	Period        string             `yaml:"period"`
	Totals        TotalsDoc          `yaml:"totals"`
	Subscriptions []SubscriptionDoc  `yaml:"subscriptions"`
	PerCurrency   map[string]float64 `yaml:"per_currency,omitempty"`
}

type TotalsDoc struct {
	Income  string `yaml:"income"`
	Expense string `yaml:"expense"`
	Net     string `yaml:"net"`
	Label   string `yaml:"label"`
}

type SubscriptionDoc struct {
	Name     string  `yaml:"name"`
	Price    float64 `yaml:"price"`
	Currency string  `yaml:"currency"`
	Due      string  `yaml:"due"`
	State    string  `yaml:"state"`
}

// Build converts a dashboard into the report document for one period.
func Build(d services.Dashboard, p core.Period) Document {
	tot := d.Totals[p]
	doc := Document{
		User:   d.UserID,
		Today:  d.Today.String(),
		Period: string(p),
		Totals: TotalsDoc{
			Income:  tot.Income.StringFixed(2),
			Expense: tot.Expense.StringFixed(2),
			Net:     tot.Net.StringFixed(2),
			Label:   p.BalanceLabel(),
		},
		Subscriptions: make([]SubscriptionDoc, 0, len(d.Subscriptions)),
	}
	for _, s := range d.Subscriptions {
		doc.Subscriptions = append(doc.Subscriptions, SubscriptionDoc{
			Name:     s.Name,
			Price:    core.SanitizeAmount(s.Price),
			Currency: s.CurrencyCode(),
			Due:      s.EffectiveDueDate(),
			State:    string(s.State),
		})
	}
	if len(d.SubscriptionTotals) > 0 {
		doc.PerCurrency = make(map[string]float64, len(d.SubscriptionTotals))
		for _, st := range d.SubscriptionTotals {
			doc.PerCurrency[st.Currency] = st.Amount.InexactFloat64()
		}
	}
	return doc
}

// Render writes the report for period p in the given format.
func Render(w io.Writer, d services.Dashboard, p core.Period, format string) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Build(d, p)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTable, "":
		renderTables(w, d, p)
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func renderTables(w io.Writer, d services.Dashboard, p core.Period) {
	fmt.Fprintf(w, "Subscriptions for %s as of %s\n", d.UserID, d.Today.Display())

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Name", "Price", "Due", "Status"})
	for _, s := range d.Subscriptions {
		t.AppendRow(table.Row{
			s.Name,
			core.FormatPrice(s.Price, s.CurrencyCode()),
			core.DisplayDate(s.EffectiveDueDate()),
			colorState(s.State),
		})
	}
	t.AppendSeparator()
	for _, st := range d.SubscriptionTotals {
		t.AppendFooter(table.Row{"", text.Bold.Sprint(st.String()), "", ""})
	}
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()

	tot := d.Totals[p]
	fmt.Fprintf(w, "\n%s\n", p.Label())
	m := table.NewWriter()
	m.SetOutputMirror(w)
	m.AppendRow(table.Row{"Income", core.FormatAmount(tot.Income)})
	m.AppendRow(table.Row{"Expenses", core.FormatAmount(tot.Expense)})
	m.AppendSeparator()
	m.AppendRow(table.Row{text.Bold.Sprint(p.BalanceLabel()), text.Bold.Sprint(core.FormatAmount(tot.Net))})
	m.SetStyle(table.StyleRounded)
	m.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	m.Render()
}

func colorState(s core.DueState) string {
	switch s {
	case core.StateOverdue:
		return text.FgRed.Sprint(s.Label())
	case core.StateDueSoon:
		return text.FgYellow.Sprint(s.Label())
	case core.StatePaid:
		return text.FgGreen.Sprint(s.Label())
	}
	return text.FgHiBlack.Sprint("-")
}
