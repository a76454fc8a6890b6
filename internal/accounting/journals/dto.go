package journals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// LineInput describes one journal line of a draft.
type LineInput struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// CreateEntryInput groups fields required to create a draft entry, either
// manually or generated from a source document.
type CreateEntryInput struct {
	EntryDate   time.Time
	Description string
	Currency    string
	SourceType  string
	SourceID    *uuid.UUID
	Lines       []LineInput
}

// Validate performs the cheap structural checks. Per-line arithmetic and
// account resolution happen in the validator's single full pass.
func (in CreateEntryInput) Validate() error {
	if in.EntryDate.IsZero() {
		return fmt.Errorf("accounting: entry date required")
	}
	if in.Description == "" {
		return fmt.Errorf("accounting: description required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	if _, err := currency.ParseISO(in.Currency); err != nil {
		return fmt.Errorf("accounting: invalid currency %q", in.Currency)
	}
	return nil
}

// UpdateEntryInput replaces a draft's mutable fields and its lines wholesale.
type UpdateEntryInput struct {
	EntryID     int64
	EntryDate   time.Time
	Description string
	Currency    string
	Lines       []LineInput
}

func (in UpdateEntryInput) Validate() error {
	if in.EntryID == 0 {
		return fmt.Errorf("accounting: entry id required")
	}
	return CreateEntryInput{
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Currency:    in.Currency,
		Lines:       in.Lines,
	}.Validate()
}

// VoidInput wraps parameters for voiding a posted entry.
type VoidInput struct {
	EntryID int64
	Reason  string
}

func totals(lines []LineInput) (debit, credit decimal.Decimal) {
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}
