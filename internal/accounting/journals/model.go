package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus enumerates journal lifecycle values. Transitions are strictly
// DRAFT -> POSTED -> VOIDED; VOIDED is terminal.
type EntryStatus string

const (
	StatusDraft  EntryStatus = "DRAFT"
	StatusPosted EntryStatus = "POSTED"
	StatusVoided EntryStatus = "VOIDED"
)

// JournalEntry captures one balanced business transaction.
type JournalEntry struct {
	ID             int64
	TenantID       uuid.UUID
	EntryNumber    int64
	EntryDate      time.Time
	Description    string
	Status         EntryStatus
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	Currency       string
	SourceType     string
	SourceID       *uuid.UUID
	FiscalPeriodID *int64
	PostedAt       *time.Time
	VoidedAt       *time.Time
	VoidedReason   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []JournalLine
}

// JournalLine stores a debit or credit amount for an account. Exactly one of
// the two amounts is greater than zero.
type JournalLine struct {
	ID          int64
	EntryID     int64
	LineNumber  int
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Delta returns the signed balance effect of the line (debit - credit).
func (l JournalLine) Delta() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// LedgerEntry is the durable general-ledger record of one posted line.
// Rows exist 1:1 with lines of posted entries only and are removed on void.
type LedgerEntry struct {
	ID             int64
	TenantID       uuid.UUID
	AccountID      int64
	JournalLineID  int64
	FiscalPeriodID *int64
	EntryDate      time.Time
	Description    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	CreatedAt      time.Time
}
