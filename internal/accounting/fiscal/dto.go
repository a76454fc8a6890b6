package fiscal

import (
	"errors"
	"time"
)

// CreatePeriodInput groups fields required to open a new fiscal period.
type CreatePeriodInput struct {
	FiscalYearID int64
	Name         string
	StartDate    time.Time
	EndDate      time.Time
}

func (in CreatePeriodInput) Validate() error {
	if in.FiscalYearID == 0 {
		return errors.New("fiscal: year id required")
	}
	if in.Name == "" {
		return errors.New("fiscal: period name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return errors.New("fiscal: invalid period range")
	}
	return nil
}

// CreateYearInput groups fields required to open a new fiscal year.
type CreateYearInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

func (in CreateYearInput) Validate() error {
	if in.Name == "" {
		return errors.New("fiscal: year name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return errors.New("fiscal: invalid year range")
	}
	return nil
}
