// Package export writes a user's data as an XLSX workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"trackme/internal/core"
	"trackme/internal/services"
)

const (
	SheetSubscriptions = "Subscriptions"
	SheetTransactions  = "Transactions"
	SheetSummary       = "Summary"
)

// Filename is the download name for a workbook exported on today.
func Filename(today core.Date) string {
	return fmt.Sprintf("trackme_%s.xlsx", today.Format("20060102"))
}

// WriteWorkbook renders d as three sheets: subscriptions with their due
// state, every transaction, and per-period totals.
func WriteWorkbook(w io.Writer, d services.Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSubscriptions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTransactions, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	subRows := [][]any{{"Name", "Price", "Currency", "Interval", "Due date", "Status", "Last paid"}}
	for _, s := range d.Subscriptions {
		subRows = append(subRows, []any{
			s.Name, core.SanitizeAmount(s.Price), s.CurrencyCode(), s.RenewalInterval,
			core.DisplayDate(s.EffectiveDueDate()), stateText(s.State), core.DisplayDate(s.LastPaidDate),
		})
	}

	txRows := [][]any{{"Date", "Type", "Title", "Category", "Amount"}}
	for _, t := range d.Transactions {
		txRows = append(txRows, []any{
			core.DisplayDate(t.Date), string(t.Type), t.Title, t.Category, core.SanitizeAmount(t.Amount),
		})
	}

	sumRows := [][]any{{"Period", "Income", "Expenses", "Net"}}
	for _, p := range core.Periods {
		tot := d.Totals[p]
		sumRows = append(sumRows, []any{
			p.Label(), tot.Income.InexactFloat64(), tot.Expense.InexactFloat64(), tot.Net.InexactFloat64(),
		})
	}
	sumRows = append(sumRows, []any{})
	sumRows = append(sumRows, []any{"Subscriptions", "Currency", "Total"})
	for _, st := range d.SubscriptionTotals {
		sumRows = append(sumRows, []any{"", st.Currency, st.Amount.InexactFloat64()})
	}

	for sheet, rows := range map[string][][]any{
		SheetSubscriptions: subRows,
		SheetTransactions:  txRows,
		SheetSummary:       sumRows,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func stateText(s core.DueState) string {
	if label := s.Label(); label != "" {
		return label
	}
	return "Upcoming"
}
