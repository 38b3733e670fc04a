package importer

import (
	"io"
	"time"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct {
	Now func() time.Time
}

const (
	chaseDateFormat = "01/02/2006"
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV with the same lenient row policy as the
// generic format. Short rows get defaulted fields.
func (p *ChaseParser) Parse(r io.Reader) (*Result, error) {
	batchID, records, err := readRecords(p.Format(), r)
	if err != nil {
		return nil, err
	}

	b := &rowBuilder{now: clock(p.Now), dateLayouts: []string{chaseDateFormat}}
	res := &Result{BatchID: batchID}
	for i, rec := range records {
		res.Transactions = append(res.Transactions, b.build(i,
			field(rec, chaseColDate),
			field(rec, chaseColDesc),
			field(rec, chaseColAmount),
		))
	}
	res.Warnings = b.warnings
	return res, nil
}

func field(rec []string, col int) string {
	if col < len(rec) {
		return rec[col]
	}
	return ""
}
