package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountCategory enumerates CoA categories.
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "ASSET"
	CategoryLiability AccountCategory = "LIABILITY"
	CategoryEquity    AccountCategory = "EQUITY"
	CategoryRevenue   AccountCategory = "REVENUE"
	CategoryExpense   AccountCategory = "EXPENSE"
)

// Account models a chart of accounts node. CurrentBalance is a derived
// counter maintained incrementally by the posting and closing engines.
type Account struct {
	ID             int64
	TenantID       uuid.UUID
	Code           string
	Name           string
	Category       AccountCategory
	ParentID       *int64
	IsActive       bool
	IsHeader       bool
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reconciliation reports the stored balance counter against a fresh fold of
// the account's ledger entries.
type Reconciliation struct {
	AccountID int64
	Stored    decimal.Decimal
	Computed  decimal.Decimal
	Drift     decimal.Decimal
}

// InSync reports whether the stored counter matches the ledger fold.
func (r Reconciliation) InSync() bool {
	return r.Drift.IsZero()
}
