package service

import (
	"strings"
	"time"

	"caixa/internal/dto"
	"caixa/internal/model"
	"caixa/internal/naming"
)

func ToPaymentResponse(p *model.Payment) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		ID:         p.ID,
		Day:        p.Day,
		ClientName: p.ClientName,
		Amount:     p.Amount,
		Method:     p.Method,
		HasReceipt: p.HasReceipt(),
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if name, err := naming.ForPayment(p); err == nil {
		resp.ReceiptName = name
	}
	return resp
}

func ToTotalsResponse(t model.Totals) dto.TotalsResponse {
	return dto.TotalsResponse{ByMethod: t.ByMethod, Grand: t.Grand, Count: t.Count}
}

func trimClient(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func ToDaySummaryResponse(d *model.CashDay) dto.DaySummaryResponse {
	return dto.DaySummaryResponse{Day: d.Day, Status: d.Status, ClosedAt: formatTime(d.ClosedAt)}
}
