package journals

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// balanceTolerance is the fixed epsilon under which debits and credits are
// considered equal.
var balanceTolerance = decimal.RequireFromString("0.01")

// Balanced reports whether |debit - credit| < 0.01.
func Balanced(totalDebit, totalCredit decimal.Decimal) bool {
	return totalDebit.Sub(totalCredit).Abs().LessThan(balanceTolerance)
}

// ValidateBalanced reports whether the line set balances. The result is
// invariant under line reordering.
func ValidateBalanced(lines []LineInput) bool {
	debit, credit := totals(lines)
	return Balanced(debit, credit)
}

// ValidateLineShape enforces that exactly one of debit/credit is positive.
func ValidateLineShape(line LineInput) error {
	if line.Debit.IsNegative() || line.Credit.IsNegative() {
		return fmt.Errorf("accounting: line amounts must not be negative")
	}
	if line.Debit.IsPositive() && line.Credit.IsPositive() {
		return fmt.Errorf("accounting: line cannot carry both a debit and a credit")
	}
	if line.Debit.IsZero() && line.Credit.IsZero() {
		return fmt.Errorf("accounting: line must carry a debit or a credit")
	}
	return nil
}

// Validator resolves accounts while checking entry arithmetic. It collects
// every violation in one pass instead of failing on the first.
type Validator struct {
	accounts accounts.Repository
}

func NewValidator(repo accounts.Repository) *Validator {
	return &Validator{accounts: repo}
}

// ValidateEntry returns nil when the line set is postable. Otherwise it
// returns a ValidationError carrying all errors and warnings found.
func (v *Validator) ValidateEntry(ctx context.Context, tenantID uuid.UUID, lines []LineInput) error {
	result := &shared.ValidationError{}
	if len(lines) < 2 {
		result.Errors = append(result.Errors, "journal requires at least two lines")
	}
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.AccountID != 0 {
			ids = append(ids, line.AccountID)
		}
	}
	resolved := map[int64]accounts.Account{}
	if len(ids) > 0 {
		var err error
		resolved, err = v.accounts.GetMany(ctx, tenantID, ids)
		if err != nil {
			return err
		}
	}
	for idx, line := range lines {
		ordinal := idx + 1
		if err := ValidateLineShape(line); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", ordinal, err))
		}
		if line.Debit.Exponent() < -2 || line.Credit.Exponent() < -2 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("line %d: amount precision beyond cents", ordinal))
		}
		if line.AccountID == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: missing account", ordinal))
			continue
		}
		account, ok := resolved[line.AccountID]
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: account %d not found", ordinal, line.AccountID))
			continue
		}
		if !account.IsActive {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: account %s is inactive", ordinal, account.Code))
		}
		if account.IsHeader {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: account %s is a header account and cannot be posted to", ordinal, account.Code))
		}
	}
	if !ValidateBalanced(lines) {
		debit, credit := totals(lines)
		result.Errors = append(result.Errors, fmt.Sprintf("entry does not balance: debits %s, credits %s", debit, credit))
	}
	if len(result.Errors) > 0 {
		return result
	}
	return nil
}
