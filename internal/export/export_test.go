package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"trackme/internal/core"
	"trackme/internal/services"
)

func TestWriteWorkbook(t *testing.T) {
	today := core.NewDate(2024, 6, 10)
	d := services.BuildDashboard("u1",
		[]core.Subscription{
			{Name: "Netflix", Price: 15.49, Currency: "EUR", RenewalInterval: "1 Month", RenewalDate: "2024-06-12"},
			{Name: "Broken", Price: 1, RenewalDate: "garbage"},
		},
		[]core.Transaction{
			{Type: core.Income, Title: "Pay", Amount: 1000, Category: "Salary", Date: "2024-06-01"},
			{Type: core.Expense, Title: "Rent", Amount: 400, Category: "Bills", Date: "2024-05-01"},
		},
		today)

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, d); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 3 || got[0] != SheetSubscriptions {
		t.Fatalf("sheets = %v", got)
	}

	subs, _ := f.GetRows(SheetSubscriptions)
	if len(subs) != 3 || subs[1][0] != "Netflix" || subs[1][5] != "Due soon" {
		t.Fatalf("subscription rows = %v", subs)
	}
	if subs[2][4] != "garbage" || subs[2][5] != "Upcoming" {
		t.Fatalf("malformed date row = %v", subs[2])
	}

	txs, _ := f.GetRows(SheetTransactions)
	if len(txs) != 3 || txs[1][2] != "Pay" {
		t.Fatalf("transaction rows = %v", txs)
	}

	summary, _ := f.GetRows(SheetSummary)
	if summary[1][0] != core.ThisMonth.Label() || summary[1][3] != "1000" {
		t.Fatalf("summary rows = %v", summary)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(core.NewDate(2024, 6, 10)); got != "trackme_20240610.xlsx" {
		t.Fatalf("Filename() = %q", got)
	}
}
