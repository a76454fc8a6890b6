package shared

import (
	"errors"
	"strings"
)

var (
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("accounting: journal entry not found")
	// ErrAccountNotFound indicates a missing ledger account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrInvalidStatus indicates an illegal lifecycle transition.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrUnbalanced indicates debits and credits differ beyond tolerance.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrPeriodClosed indicates the covering fiscal period is closed for posting.
	ErrPeriodClosed = errors.New("accounting: fiscal period is closed")
	// ErrPeriodNotFound indicates a missing fiscal period.
	ErrPeriodNotFound = errors.New("accounting: fiscal period not found")
	// ErrYearNotFound indicates a missing fiscal year.
	ErrYearNotFound = errors.New("accounting: fiscal year not found")
	// ErrYearClosed indicates the fiscal year is already closed.
	ErrYearClosed = errors.New("accounting: fiscal year already closed")
	// ErrPeriodOverlap indicates a date range conflicting with an existing period.
	ErrPeriodOverlap = errors.New("accounting: period range overlaps an existing period")
	// ErrRetainedEarningsMissing indicates no retained earnings account is configured.
	ErrRetainedEarningsMissing = errors.New("accounting: retained earnings account not configured")
	// ErrDuplicateEntryNumber indicates an entry number collision within the tenant.
	ErrDuplicateEntryNumber = errors.New("accounting: entry number already used")
)

// ValidationError aggregates every rule violation found in one validation pass.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return "accounting: validation failed: " + strings.Join(e.Errors, "; ")
}

// Kind classifies engine errors for transport mapping.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindValidation   Kind = "validation"
	KindPeriodClosed Kind = "period_closed"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// KindOf maps an engine error to its taxonomy kind.
func KindOf(err error) Kind {
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrPeriodNotFound),
		errors.Is(err, ErrYearNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrYearClosed):
		return KindInvalidState
	case errors.Is(err, ErrPeriodClosed):
		return KindPeriodClosed
	case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrTooFewLines):
		return KindValidation
	case errors.As(err, &vErr):
		return KindValidation
	case errors.Is(err, ErrRetainedEarningsMissing),
		errors.Is(err, ErrPeriodOverlap),
		errors.Is(err, ErrDuplicateEntryNumber):
		return KindConflict
	default:
		return KindInternal
	}
}
