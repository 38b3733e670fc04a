package importer

import (
	"io"
	"strings"
	"time"
)

// GenericParser parses the plain three-column export:
//
//	date,description,amount
//
// Descriptions containing unquoted commas are rejoined from the middle
// fields; the last field is always the amount.
type GenericParser struct {
	// Now supplies the processing date for rows without a usable date.
	// Nil means time.Now.
	Now func() time.Time
}

var genericDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"02/01/2006",
	time.RFC3339,
}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads a generic export. Only undecodable or empty input fails;
// malformed rows are kept with defaulted fields and reported as warnings.
func (p *GenericParser) Parse(r io.Reader) (*Result, error) {
	batchID, records, err := readRecords(p.Format(), r)
	if err != nil {
		return nil, err
	}

	b := &rowBuilder{now: clock(p.Now), dateLayouts: genericDateLayouts}
	res := &Result{BatchID: batchID}
	for i, rec := range records {
		rawDate, desc, rawAmount := genericFields(rec)
		res.Transactions = append(res.Transactions, b.build(i, rawDate, desc, rawAmount))
	}
	res.Warnings = b.warnings
	return res, nil
}

func genericFields(rec []string) (date, desc, amount string) {
	switch len(rec) {
	case 0:
		return "", "", ""
	case 1:
		return rec[0], "", ""
	case 2:
		return rec[0], rec[1], ""
	case 3:
		return rec[0], rec[1], rec[2]
	default:
		return rec[0], strings.Join(rec[1:len(rec)-1], ","), rec[len(rec)-1]
	}
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
