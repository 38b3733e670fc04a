package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/id"
	"github.com/cleared-dev/reconcile/internal/model"
)

// UnknownDescription replaces an empty description.
const UnknownDescription = "Unknown transaction"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readRecords decodes raw export text into per-line fields with the
// header line dropped. Blank lines are skipped.
func readRecords(format string, r io.Reader) (batchID string, records [][]string, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", nil, &ImportError{Format: format, Err: fmt.Errorf("reading input: %w", err)}
	}
	if !utf8.Valid(raw) {
		return "", nil, &ImportError{Format: format, Err: ErrNotText}
	}
	batchID = id.BatchID(raw)

	sc := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	header := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if header {
			header = false
			continue
		}
		records = append(records, splitFields(line))
	}
	if err := sc.Err(); err != nil {
		return "", nil, &ImportError{Format: format, Err: fmt.Errorf("scanning input: %w", err)}
	}
	if len(records) == 0 {
		return "", nil, &ImportError{Format: format, Err: ErrNoRows}
	}
	return batchID, records, nil
}

// splitFields splits one comma-delimited line. A line the CSV reader
// rejects falls back to a plain split so one odd row cannot abort a batch.
func splitFields(line string) []string {
	cr := csv.NewReader(strings.NewReader(line))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	fields, err := cr.Read()
	if err != nil {
		fields = strings.Split(line, ",")
	}
	for i, f := range fields {
		fields[i] = unquote(f)
	}
	return fields
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(strings.Trim(s, `"`))
}

// rowBuilder applies the lenient defaulting policy shared by all parsers.
type rowBuilder struct {
	now         time.Time
	dateLayouts []string
	warnings    []RowWarning
}

func (b *rowBuilder) build(row int, rawDate, desc, rawAmount string) model.ImportedTransaction {
	txn := model.ImportedTransaction{
		ID:          row,
		Description: desc,
		Category:    model.Uncategorized,
		State:       model.StateUnmatched,
	}

	date, ok := parseDate(rawDate, b.dateLayouts)
	if !ok {
		date = model.Day(b.now)
		b.warn(&txn, "date", rawDate, "defaulted to processing date "+model.DateKey(date))
	}
	txn.Date = date

	if strings.TrimSpace(desc) == "" {
		txn.Description = UnknownDescription
	}

	amount, err := parseAmount(rawAmount)
	if err != nil {
		amount = decimal.Zero
		b.warn(&txn, "amount", rawAmount, err.Error()+"; defaulted to 0")
	}
	txn.Direction = model.DirectionOf(amount)
	txn.Amount = amount.Abs()

	return txn
}

func (b *rowBuilder) warn(txn *model.ImportedTransaction, field, value, reason string) {
	w := RowWarning{Row: txn.ID, Field: field, Value: value, Reason: reason}
	b.warnings = append(b.warnings, w)
	txn.Warnings = append(txn.Warnings, w.Error())
}

func parseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), true
		}
	}
	return time.Time{}, false
}

var (
	errNoAmount          = errors.New("empty amount")
	errAmountSyntax      = errors.New("not a number")
	errAmountGrouping    = errors.New("misplaced thousands separator")
	errAmbiguousDecimals = errors.New("ambiguous separator: thousands or decimals")
)

// parseAmount accepts "1234.50", "-250", "1 234,50", "-1.234,50",
// "1,234.50" and similar bank styles. When both ',' and '.' appear the
// last one is the decimal point. A lone ',' followed by exactly three
// digits could be either, so it is rejected rather than guessed.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errNoAmount
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'':
			return -1
		case '\u2212':
			return '-'
		}
		return r
	}, s)
	cleaned, err := normalizeSeparators(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, errAmountSyntax
	}
	return d, nil
}

// normalizeSeparators rewrites s so that '.' is the only separator and
// marks the decimal point.
func normalizeSeparators(s string) (string, error) {
	lastComma, lastDot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	commas, dots := strings.Count(s, ","), strings.Count(s, ".")

	intPart, frac, group := s, "", ""
	hasDecimal := false
	switch {
	case commas > 0 && dots > 0:
		dec := max(lastComma, lastDot)
		intPart, frac, hasDecimal = s[:dec], s[dec+1:], true
		group = ","
		if dec == lastComma {
			group = "."
		}
	case commas == 1:
		intPart, frac, hasDecimal = s[:lastComma], s[lastComma+1:], true
		if len(frac) == 3 {
			return "", errAmbiguousDecimals
		}
	case commas > 1:
		group = ","
	case dots > 1:
		group = "."
	case dots == 1:
		intPart, frac, hasDecimal = s[:lastDot], s[lastDot+1:], true
	}

	if group != "" {
		parts := strings.Split(intPart, group)
		for _, p := range parts[1:] {
			if len(p) != 3 {
				return "", errAmountGrouping
			}
		}
		intPart = strings.Join(parts, "")
	}
	if !hasDecimal {
		return intPart, nil
	}
	if frac == "" {
		return "", errAmountSyntax
	}
	return intPart + "." + frac, nil
}
