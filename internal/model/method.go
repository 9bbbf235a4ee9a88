package model

import "strings"

// Method is the closed set of payment methods accepted at the register.
type Method string

const (
	MethodPix    Method = "PIX"
	MethodCredit Method = "CREDIT"
	MethodDebit  Method = "DEBIT"
	MethodCash   Method = "CASH"
)

// Methods lists every method in display order.
var Methods = []Method{MethodPix, MethodCredit, MethodDebit, MethodCash}

var methodAliases = map[string]Method{
	"pix":      MethodPix,
	"credit":   MethodCredit,
	"credito":  MethodCredit,
	"crédito":  MethodCredit,
	"debit":    MethodDebit,
	"debito":   MethodDebit,
	"débito":   MethodDebit,
	"cash":     MethodCash,
	"dinheiro": MethodCash,
}

// ParseMethod maps user input (code or Portuguese label, any case) to a Method.
func ParseMethod(s string) (Method, bool) {
	m, ok := methodAliases[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

func (m Method) Valid() bool {
	switch m {
	case MethodPix, MethodCredit, MethodDebit, MethodCash:
		return true
	}
	return false
}

// Label is the operator-facing name printed in reports.
func (m Method) Label() string {
	switch m {
	case MethodPix:
		return "PIX"
	case MethodCredit:
		return "Crédito"
	case MethodDebit:
		return "Débito"
	case MethodCash:
		return "Dinheiro"
	}
	return string(m)
}
