package importer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconcile/internal/model"
)

var fixedNow = func() time.Time { return time.Date(2024, 2, 1, 14, 30, 0, 0, time.UTC) }

func TestGenericParser_WellFormedRow(t *testing.T) {
	p := &GenericParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader("date,description,amount\n\"2024-01-15\",\"ICA Maxi\",-250.00\n"))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)

	txn := res.Transactions[0]
	assert.Equal(t, 0, txn.ID)
	assert.Equal(t, "2024-01-15", model.DateKey(txn.Date))
	assert.Equal(t, "ICA Maxi", txn.Description)
	assert.Equal(t, "250.00", txn.Amount.StringFixed(2))
	assert.Equal(t, model.DirectionExpense, txn.Direction)
	assert.Equal(t, model.Uncategorized, txn.Category)
	assert.Equal(t, model.StateUnmatched, txn.State)
	assert.Empty(t, txn.LinkedLedgerID)
	assert.False(t, txn.Flagged())
	assert.Empty(t, res.Warnings)
}

func TestGenericParser_Testdata(t *testing.T) {
	data, err := os.ReadFile("../../testdata/bank_export.csv")
	require.NoError(t, err)

	p := &GenericParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 6, "blank line skipped")

	for i, txn := range res.Transactions {
		assert.Equal(t, i, txn.ID, "ids follow row order")
		assert.NoError(t, txn.CheckInvariants())
	}

	// Income row
	assert.Equal(t, "Lön", res.Transactions[2].Description)
	assert.Equal(t, model.DirectionIncome, res.Transactions[2].Direction)
	assert.Equal(t, "5000.00", res.Transactions[2].Amount.StringFixed(2))

	// Comma decimal separator inside quotes
	assert.Equal(t, "119.00", res.Transactions[3].Amount.StringFixed(2))
	assert.Equal(t, model.DirectionExpense, res.Transactions[3].Direction)

	// Bad date defaults to the processing date
	assert.Equal(t, "2024-02-01", model.DateKey(res.Transactions[4].Date))
	assert.True(t, res.Transactions[4].Flagged())
	assert.Equal(t, "75.50", res.Transactions[4].Amount.StringFixed(2))

	// Empty description and bad amount
	last := res.Transactions[5]
	assert.Equal(t, UnknownDescription, last.Description)
	assert.True(t, last.Amount.IsZero())
	assert.Equal(t, model.Uncategorized, last.Category)
	assert.True(t, last.Flagged())

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, 4, res.Warnings[0].Row)
	assert.Equal(t, "date", res.Warnings[0].Field)
	assert.Equal(t, 5, res.Warnings[1].Row)
	assert.Equal(t, "amount", res.Warnings[1].Field)
}

func TestGenericParser_BatchIDStable(t *testing.T) {
	input := "date,description,amount\n2024-01-15,ICA,-250\n"
	p := &GenericParser{Now: fixedNow}

	a, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	b, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, a.BatchID, b.BatchID)
	assert.NotEmpty(t, a.BatchID)
}

func TestGenericParser_MissingFields(t *testing.T) {
	input := "date,description,amount\n2024-01-15\n2024-01-16,Only description\n"
	p := &GenericParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)

	assert.Equal(t, UnknownDescription, res.Transactions[0].Description)
	assert.True(t, res.Transactions[0].Amount.IsZero())
	assert.Equal(t, "Only description", res.Transactions[1].Description)
	assert.True(t, res.Transactions[1].Flagged())
}

func TestGenericParser_UnquotedCommaInDescription(t *testing.T) {
	input := "date,description,amount\n2024-01-15,ICA Maxi, Lindhagen,-250.00\n"
	p := &GenericParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "ICA Maxi,Lindhagen", res.Transactions[0].Description)
	assert.Equal(t, "250.00", res.Transactions[0].Amount.StringFixed(2))
}

func TestGenericParser_CRLFAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFdate,description,amount\r\n2024-01-15,ICA,-250.00\r\n"
	p := &GenericParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "ICA", res.Transactions[0].Description)
	assert.False(t, res.Transactions[0].Flagged())
}

func TestGenericParser_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"nothing", ""},
		{"header only", "date,description,amount\n"},
		{"header and blanks", "date,description,amount\n\n   \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &GenericParser{Now: fixedNow}
			res, err := p.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, res)

			var ie *ImportError
			require.True(t, errors.As(err, &ie))
			assert.ErrorIs(t, err, ErrNoRows)
		})
	}
}

func TestGenericParser_NotText(t *testing.T) {
	p := &GenericParser{Now: fixedNow}
	_, err := p.Parse(strings.NewReader("date,description,amount\n2024-01-15,\xff\xfe,-1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotText)
	assert.Contains(t, err.Error(), "generic")
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		err   error
	}{
		{"-250.00", "-250.00", nil},
		{"5000", "5000.00", nil},
		{"1.234", "1.23", nil},
		{"1 234,50", "1234.50", nil},
		{"1,234.50", "1234.50", nil},
		{"-1.234,50", "-1234.50", nil},
		{"1.234.567,89", "1234567.89", nil},
		{"1,234,567.89", "1234567.89", nil},
		{"1.234.567", "1234567.00", nil},
		{"1'234.50", "1234.50", nil},
		{"12,5", "12.50", nil},
		{"−119,00", "-119.00", nil},
		{"1,234", "0.00", errAmbiguousDecimals},
		{"-1,234", "0.00", errAmbiguousDecimals},
		{"1,23,4.00", "0.00", errAmountGrouping},
		{"12,", "0.00", errAmountSyntax},
		{"abc", "0.00", errAmountSyntax},
		{"", "0.00", errNoAmount},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.input)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, "input %q", tt.input)
		} else {
			assert.NoError(t, err, "input %q", tt.input)
		}
		assert.Equal(t, tt.want, got.StringFixed(2), "input %q", tt.input)
	}
}

func TestGenericParser_ThousandsSeparators(t *testing.T) {
	input := "date,description,amount\n" +
		"2024-01-15,Hyra,\"-1.234,50\"\n" +
		"2024-01-16,Okänt,\"1,234\"\n"
	p := &GenericParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)

	rent := res.Transactions[0]
	assert.Equal(t, "1234.50", rent.Amount.StringFixed(2))
	assert.Equal(t, model.DirectionExpense, rent.Direction)
	assert.False(t, rent.Flagged())

	unclear := res.Transactions[1]
	assert.True(t, unclear.Amount.IsZero())
	assert.True(t, unclear.Flagged())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, res.Warnings[0].Row)
	assert.Equal(t, "amount", res.Warnings[0].Field)
	assert.Contains(t, res.Warnings[0].Reason, "ambiguous separator")
	assert.Contains(t, res.Warnings[0].Reason, "defaulted to 0")
}

func TestChaseParser_Parse(t *testing.T) {
	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)

	p := &ChaseParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	txns := res.Transactions
	assert.Len(t, txns, 6)

	// First: GITHUB subscription
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", txns[0].Description)
	assert.Equal(t, "4.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, model.DirectionExpense, txns[0].Direction)
	assert.Equal(t, "2025-01-03", model.DateKey(txns[0].Date))

	// Fourth: ACME income (positive)
	assert.Equal(t, "ACME CONSULTING INVOICE 1042", txns[3].Description)
	assert.Equal(t, model.DirectionIncome, txns[3].Direction)
	assert.Equal(t, "3500.00", txns[3].Amount.StringFixed(2))

	assert.Equal(t, "2025-01-22", model.DateKey(txns[5].Date))
	assert.Empty(t, res.Warnings)
}

func TestChaseParser_BadFieldsAreLenient(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\nDEBIT,NOTADATE,desc,NOTANUMBER,ACH_DEBIT,100.00,\n"
	p := &ChaseParser{Now: fixedNow}
	res, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "2024-02-01", model.DateKey(res.Transactions[0].Date))
	assert.True(t, res.Transactions[0].Amount.IsZero())
	assert.Len(t, res.Warnings, 2)
}

func TestChaseParser_EmptyFile(t *testing.T) {
	p := &ChaseParser{}
	_, err := p.Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	p := r.Get("chase")
	require.NotNil(t, p)
	assert.Equal(t, "chase", p.Format())
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&GenericParser{})
	assert.NotNil(t, r.Get("Generic"))
	assert.NotNil(t, r.Get("GENERIC"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	assert.Panics(t, func() { r.Register(&ChaseParser{}) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("chase"))
	assert.NotNil(t, r.Get("generic"))
	assert.Equal(t, []string{"chase", "generic"}, r.Formats())
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processedDir := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.MkdirAll(processedDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processedDir, "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_EmptyDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
