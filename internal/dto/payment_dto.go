package dto

import (
	"caixa/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AddPaymentRequest is the multipart form posted by the register UI. The
// optional receipt travels as the "receipt" file part.
type AddPaymentRequest struct {
	ClientName string `form:"client_name" json:"client_name" validate:"required,max=120"`
	Amount     string `form:"amount"      json:"amount"      validate:"required"`
	Method     string `form:"method"      json:"method"      validate:"required"`
}

// ReceiptUpload is an attached receipt binary and the extension of its
// original file name.
type ReceiptUpload struct {
	Ext  string
	Data []byte
}

// PaymentCandidate is a parsed payment not yet accepted by the ledger.
type PaymentCandidate struct {
	ClientName string
	Amount     decimal.Decimal
	Method     model.Method
	Receipt    *ReceiptUpload
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PaymentResponse struct {
	ID          int64           `json:"id"`
	Day         string          `json:"day"`
	ClientName  string          `json:"client_name"`
	Amount      decimal.Decimal `json:"amount"`
	Method      model.Method    `json:"method"`
	HasReceipt  bool            `json:"has_receipt"`
	ReceiptName string          `json:"receipt_name,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

type TotalsResponse struct {
	ByMethod map[model.Method]decimal.Decimal `json:"by_method"`
	Grand    decimal.Decimal                  `json:"grand"`
	Count    int                              `json:"count"`
}

type DayResponse struct {
	Day      string            `json:"day"`
	Status   model.DayStatus   `json:"status"`
	ClosedAt *string           `json:"closed_at"`
	Payments []PaymentResponse `json:"payments"`
	Totals   TotalsResponse    `json:"totals"`
}

type DaySummaryResponse struct {
	Day      string          `json:"day"`
	Status   model.DayStatus `json:"status"`
	ClosedAt *string         `json:"closed_at"`
}

type HistoryResponse struct {
	Data  []DaySummaryResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// HistoryQuery pages through known days, newest first.
type HistoryQuery struct {
	Page  int `form:"page"  validate:"omitempty,min=1"`
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}
