package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/model"
)

// ValidationError describes a single rule a new ledger transaction breaks.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationErrors is the full list of problems with one transaction.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, ve := range v {
		msgs[i] = ve.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// CategoryChecker tests whether a category may be used for a direction.
type CategoryChecker interface {
	Allows(name string, d model.Direction) bool
}

var hundred = decimal.NewFromInt(100)

// ValidateFields checks every rule and returns all violations.
func ValidateFields(f model.LedgerFields, cats CategoryChecker) ValidationErrors {
	var errs ValidationErrors

	if f.Date.IsZero() {
		errs = append(errs, ValidationError{Field: "date", Description: "missing date"})
	}

	if strings.TrimSpace(f.Description) == "" {
		errs = append(errs, ValidationError{Field: "description", Description: "empty description"})
	}

	if f.Amount.IsNegative() {
		errs = append(errs, ValidationError{
			Field:       "amount",
			Description: fmt.Sprintf("amount %s is negative; direction carries the sign", f.Amount),
		})
	}

	// No more than 2 decimal places.
	if scaled := f.Amount.Mul(hundred); !scaled.Equal(scaled.Floor()) {
		errs = append(errs, ValidationError{
			Field:       "amount",
			Description: fmt.Sprintf("amount %s has more than 2 decimal places", f.Amount),
		})
	}

	if !f.Direction.Valid() {
		errs = append(errs, ValidationError{
			Field:       "direction",
			Description: fmt.Sprintf("unknown direction %q", f.Direction),
		})
	}

	if cats != nil && !cats.Allows(f.Category, f.Direction) {
		errs = append(errs, ValidationError{
			Field:       "category",
			Description: fmt.Sprintf("category %q not allowed for %s", f.Category, f.Direction),
		})
	}

	return errs
}
