package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"caixa/internal/apperror"

	"github.com/shopspring/decimal"
)

// MaxClientNameLen bounds client names (column is varchar(120)).
const MaxClientNameLen = 120

// Payment is one recorded transaction on the register.
// Payments are never updated; the only mutation is delete while the day is open.
type Payment struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	Day        string          `gorm:"type:varchar(10);not null;index"`
	ClientName string          `gorm:"type:varchar(120);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method     Method          `gorm:"type:varchar(10);not null"`
	// Receipt fields are all nil/empty when no receipt was attached.
	ReceiptExt  *string `gorm:"type:varchar(10)"`
	ReceiptType *string `gorm:"type:varchar(100)"`
	ReceiptData []byte
	CreatedAt   time.Time
}

// HasReceipt reports whether a receipt binary is attached.
func (p *Payment) HasReceipt() bool {
	return p.ReceiptExt != nil && len(p.ReceiptData) > 0
}

// Validate enforces the store contract: non-empty client, positive amount
// with at most two decimals, known method and a well-formed day.
func (p *Payment) Validate() error {
	verr := &apperror.ValidationError{}
	if _, err := ParseDay(p.Day); err != nil {
		verr.Add("day", "must be a YYYY-MM-DD date")
	}
	name := strings.TrimSpace(p.ClientName)
	switch {
	case name == "":
		verr.Add("client_name", "required")
	case utf8.RuneCountInString(name) > MaxClientNameLen:
		verr.Add("client_name", "too long")
	}
	if reason := amountProblem(p.Amount); reason != "" {
		verr.Add("amount", reason)
	}
	if !p.Method.Valid() {
		verr.Add("method", "unknown payment method")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// ParseAmount reads a currency amount typed by the operator. Both "50.00"
// and "50,00" are accepted.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// 1.234,56 → 1234.56
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperror.NewValidation("amount", "not a number")
	}
	if reason := amountProblem(d); reason != "" {
		return decimal.Zero, apperror.NewValidation("amount", reason)
	}
	return d, nil
}

func amountProblem(d decimal.Decimal) string {
	switch {
	case !d.IsPositive():
		return "must be greater than zero"
	case d.Exponent() < -2 && !d.Equal(d.Round(2)):
		return "at most two decimal places"
	case d.GreaterThanOrEqual(maxAmount):
		return "too large"
	}
	return ""
}

// decimal(12,2) upper bound
var maxAmount = decimal.New(1, 10)
