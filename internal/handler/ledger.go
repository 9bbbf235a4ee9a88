package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"caixa/internal/apierror"
	"caixa/internal/apperror"
	"caixa/internal/dto"
	"caixa/internal/model"
	"caixa/internal/naming"
	"caixa/internal/report"
	"caixa/internal/service"

	"github.com/gin-gonic/gin"
)

// todayParam may be used in place of a YYYY-MM-DD day in every day route.
const todayParam = "today"

// multipartOverhead is the slack on top of the receipt limit for the
// form fields and part headers.
const multipartOverhead = 64 << 10

// ReportBuilder is satisfied by *report.Builder.
type ReportBuilder interface {
	Build(ctx context.Context, day string) (*report.Archive, error)
}

type LedgerHandler struct {
	svc        service.LedgerService
	reports    ReportBuilder
	maxReceipt int64
	loc        *time.Location
	now        func() time.Time
}

func NewLedgerHandler(svc service.LedgerService, reports ReportBuilder, maxReceipt int64, loc *time.Location) *LedgerHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerHandler{svc: svc, reports: reports, maxReceipt: maxReceipt, loc: loc, now: time.Now}
}

func (h *LedgerHandler) day(c *gin.Context) string {
	d := c.Param("day")
	if d == todayParam {
		return model.DayKey(h.now(), h.loc)
	}
	return d
}

// GetDay godoc
// @Summary Returns the payments, totals and status of a day
// @Tags days
// @Produce json
// @Param day path string true "Day as YYYY-MM-DD or today"
// @Success 200 {object} dto.DayResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/days/{day} [get]
func (h *LedgerHandler) GetDay(c *gin.Context) {
	resp, err := h.svc.Day(c.Request.Context(), h.day(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Totals godoc
// @Summary Per-method totals and grand total of a day
// @Tags days
// @Produce json
// @Param day path string true "Day as YYYY-MM-DD or today"
// @Success 200 {object} dto.TotalsResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/days/{day}/totals [get]
func (h *LedgerHandler) Totals(c *gin.Context) {
	t, err := h.svc.Totals(c.Request.Context(), h.day(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToTotalsResponse(*t))
}

// AddPayment godoc
// @Summary Records a payment on an open day
// @Tags payments
// @Accept mpfd
// @Produce json
// @Param day path string true "Day as YYYY-MM-DD or today"
// @Param client_name formData string true "Client name"
// @Param amount formData string true "Amount, comma decimal separator accepted"
// @Param method formData string true "PIX, CREDIT, DEBIT or CASH"
// @Param receipt formData file false "Receipt: jpg, jpeg, png or pdf"
// @Success 201 {object} dto.PaymentResponse
// @Failure 409 {object} apierror.APIError
// @Failure 413 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/days/{day}/payments [post]
func (h *LedgerHandler) AddPayment(c *gin.Context) {
	day := h.day(c)
	if err := h.svc.EnsureOpen(c.Request.Context(), day); err != nil {
		respondError(c, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxReceipt+multipartOverhead)

	var req dto.AddPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cand, err := parseCandidate(req)
	if err != nil {
		respondError(c, err)
		return
	}
	receipt, ok := h.readReceipt(c)
	if !ok {
		return
	}
	cand.Receipt = receipt

	p, err := h.svc.AddPayment(c.Request.Context(), day, cand)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ToPaymentResponse(p))
}

// parseCandidate turns the raw form into typed values, reporting every bad
// field at once.
func parseCandidate(req dto.AddPaymentRequest) (dto.PaymentCandidate, error) {
	cand := dto.PaymentCandidate{ClientName: req.ClientName}
	verr := &apperror.ValidationError{}

	amount, err := model.ParseAmount(req.Amount)
	var amountErr *apperror.ValidationError
	switch {
	case errors.As(err, &amountErr):
		for f, reason := range amountErr.Fields {
			verr.Add(f, reason)
		}
	case err != nil:
		return cand, err
	}
	method, ok := model.ParseMethod(req.Method)
	if !ok {
		verr.Add("method", "unknown payment method")
	}

	if len(verr.Fields) > 0 {
		return cand, verr
	}
	cand.Amount = amount
	cand.Method = method
	return cand, nil
}

// readReceipt loads the optional receipt part. Returns false after writing
// an error response.
func (h *LedgerHandler) readReceipt(c *gin.Context) (*dto.ReceiptUpload, bool) {
	fh, err := c.FormFile("receipt")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, true
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid receipt upload: "+err.Error()))
		return nil, false
	}
	if fh.Size > h.maxReceipt {
		c.JSON(http.StatusRequestEntityTooLarge, apierror.New(fmt.Sprintf("receipt exceeds %d bytes", h.maxReceipt)))
		return nil, false
	}
	data, err := readPart(fh, h.maxReceipt)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return &dto.ReceiptUpload{Ext: filepath.Ext(fh.Filename), Data: data}, true
}

func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open receipt part: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("read receipt part: %w", err)
	}
	return data, nil
}

// RemovePayment godoc
// @Summary Deletes a payment from an open day
// @Tags payments
// @Param day path string true "Day as YYYY-MM-DD or today"
// @Param id path int true "Payment ID"
// @Param confirm query bool true "Must be true"
// @Success 204
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 428 {object} apierror.APIError
// @Router /v1/days/{day}/payments/{id} [delete]
func (h *LedgerHandler) RemovePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusPreconditionRequired, apierror.New("deleting a payment requires confirm=true"))
		return
	}
	if err := h.svc.RemovePayment(c.Request.Context(), h.day(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CloseDay godoc
// @Summary Closes the day; closing again is a no-op
// @Tags days
// @Produce json
// @Param day path string true "Day as YYYY-MM-DD or today"
// @Success 200 {object} dto.DaySummaryResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/days/{day}/close [post]
func (h *LedgerHandler) CloseDay(c *gin.Context) {
	d, err := h.svc.CloseDay(c.Request.Context(), h.day(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToDaySummaryResponse(d))
}

// Report godoc
// @Summary Downloads the closing zip with the table and receipts
// @Tags reports
// @Produce application/zip
// @Param day path string true "Day as YYYY-MM-DD or today"
// @Success 200 {file} binary
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/days/{day}/report [get]
func (h *LedgerHandler) Report(c *gin.Context) {
	archive, err := h.reports.Build(c.Request.Context(), h.day(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archive.FileName))
	c.Data(http.StatusOK, "application/zip", archive.Data)
}

// Receipt godoc
// @Summary Downloads the receipt of a payment
// @Tags payments
// @Produce octet-stream
// @Param id path int true "Payment ID"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/payments/{id}/receipt [get]
func (h *LedgerHandler) Receipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Receipt(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	name, err := naming.ForPayment(p)
	if err != nil {
		respondError(c, err)
		return
	}
	contentType := "application/octet-stream"
	if p.ReceiptType != nil && *p.ReceiptType != "" {
		contentType = *p.ReceiptType
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, p.ReceiptData)
}

// History godoc
// @Summary Lists recorded days, most recent first
// @Tags days
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size, at most 100"
// @Success 200 {object} dto.HistoryResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/days [get]
func (h *LedgerHandler) History(c *gin.Context) {
	var q dto.HistoryQuery
	if !bindQueryAndValidate(c, &q) {
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	resp, err := h.svc.History(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
