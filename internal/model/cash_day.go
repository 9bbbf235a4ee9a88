package model

import (
	"fmt"
	"time"
)

// DayLayout is the canonical day key format.
const DayLayout = "2006-01-02"

// DayStatus: "open" | "closed". The only transition is open → closed.
type DayStatus string

const (
	DayOpen   DayStatus = "open"
	DayClosed DayStatus = "closed"
)

// CashDay is the persisted ledger state of one calendar day.
// A day without a row is open.
type CashDay struct {
	Day       string    `gorm:"type:varchar(10);primaryKey"`
	Status    DayStatus `gorm:"type:varchar(10);not null;default:'open'"`
	ClosedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d *CashDay) IsClosed() bool { return d.Status == DayClosed }

// DaySnapshot is an immutable copy of a closed day's payments.
type DaySnapshot struct {
	Day      CashDay
	Payments []Payment
}

// ParseDay validates and normalizes a YYYY-MM-DD key.
func ParseDay(s string) (string, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t.Format(DayLayout), nil
}

// DayKey formats t in loc as a day key.
func DayKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DayLayout)
}
