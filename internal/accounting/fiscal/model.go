package fiscal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

// Period represents a bounded posting window inside a fiscal year.
type Period struct {
	ID         int64
	TenantID   uuid.UUID
	FiscalYear int64
	Name       string
	StartDate  time.Time
	EndDate    time.Time
	Status     PeriodStatus
	ClosedAt   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Covers reports whether the date falls inside the period range, inclusive.
func (p Period) Covers(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// Year represents a fiscal year. Closing is terminal.
type Year struct {
	ID        int64
	TenantID  uuid.UUID
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsClosed  bool
	ClosedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CloseResult summarises a completed year-end close.
type CloseResult struct {
	Year           Year
	NetIncome      decimal.Decimal
	ClosingEntryID int64
	ClosedPeriods  int
}
