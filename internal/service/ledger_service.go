package service

import (
	"context"
	"time"

	"caixa/internal/apperror"
	"caixa/internal/dto"
	"caixa/internal/metrics"
	"caixa/internal/model"
	"caixa/internal/naming"
	"caixa/internal/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// LedgerService owns the open/closed state machine of each day. All
// mutations of a day run under that day's lock.
type LedgerService interface {
	AddPayment(ctx context.Context, day string, c dto.PaymentCandidate) (*model.Payment, error)
	RemovePayment(ctx context.Context, day string, id int64) error
	CloseDay(ctx context.Context, day string) (*model.CashDay, error)
	Totals(ctx context.Context, day string) (*model.Totals, error)
	Day(ctx context.Context, day string) (*dto.DayResponse, error)
	// Snapshot returns the payments of a closed day; the result is never
	// touched by the ledger again.
	Snapshot(ctx context.Context, day string) (*model.DaySnapshot, error)
	History(ctx context.Context, page, limit int) (*dto.HistoryResponse, error)
	Receipt(ctx context.Context, id int64) (*model.Payment, error)
	// EnsureOpen returns ClosedDayError once day has been closed.
	EnsureOpen(ctx context.Context, day string) error
}

// ExportDispatcher schedules the archive export of a freshly closed day.
type ExportDispatcher interface {
	EnqueueExport(ctx context.Context, day string) error
}

type Option func(*ledgerService)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ledgerService) { s.metrics = m }
}

func WithExportDispatcher(d ExportDispatcher) Option {
	return func(s *ledgerService) { s.exports = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *ledgerService) { s.now = now }
}

type ledgerService struct {
	repo    repository.PaymentRepository
	locks   *dayLocks
	metrics *metrics.Metrics
	exports ExportDispatcher
	now     func() time.Time
}

func NewLedgerService(repo repository.PaymentRepository, opts ...Option) LedgerService {
	s := &ledgerService{repo: repo, locks: newDayLocks(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── AddPayment ───────────────────────────────────────────────────────────────

func (s *ledgerService) AddPayment(ctx context.Context, day string, c dto.PaymentCandidate) (*model.Payment, error) {
	day, err := parseDay(day)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(day)
	defer unlock()

	// A closed day rejects every add, whatever the candidate looks like.
	if err := s.ensureOpen(ctx, day); err != nil {
		return nil, err
	}

	p := &model.Payment{
		Day:        day,
		ClientName: trimClient(c.ClientName),
		Amount:     c.Amount,
		Method:     c.Method,
	}
	if err := p.Validate(); err != nil {
		s.metrics.Rejected("validation")
		return nil, err
	}
	p.Amount = p.Amount.Round(2)
	if c.Receipt != nil {
		if err := attachReceipt(p, c.Receipt); err != nil {
			s.metrics.Rejected("receipt")
			return nil, err
		}
	}

	if err := s.repo.EnsureDay(ctx, day); err != nil {
		return nil, err
	}
	if err := s.repo.Append(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.PaymentAdded(string(p.Method))
	log.Debug().Str("day", day).Int64("payment_id", p.ID).Str("method", string(p.Method)).Msg("payment added")
	return p, nil
}

func attachReceipt(p *model.Payment, r *dto.ReceiptUpload) error {
	ext, err := naming.NormalizeExtension(r.Ext)
	if err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return apperror.NewValidation("receipt", "empty file")
	}
	contentType := mimetype.Detect(r.Data).String()
	p.ReceiptExt = &ext
	p.ReceiptType = &contentType
	p.ReceiptData = r.Data
	return nil
}

// ── RemovePayment ────────────────────────────────────────────────────────────

func (s *ledgerService) RemovePayment(ctx context.Context, day string, id int64) error {
	day, err := parseDay(day)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(day)
	defer unlock()

	if err := s.ensureOpen(ctx, day); err != nil {
		return err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	// An id from another day is unknown here; that day may even be closed.
	if p.Day != day {
		return &apperror.NotFoundError{ID: id}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.metrics.PaymentRemoved()
	log.Info().Str("day", day).Int64("payment_id", id).Msg("payment removed")
	return nil
}

// ── CloseDay ─────────────────────────────────────────────────────────────────

func (s *ledgerService) CloseDay(ctx context.Context, day string) (*model.CashDay, error) {
	day, err := parseDay(day)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(day)
	current, err := s.repo.FindDay(ctx, day)
	if err != nil {
		unlock()
		return nil, err
	}
	if current.IsClosed() {
		unlock()
		return current, nil
	}
	closed, err := s.repo.CloseDay(ctx, day, s.now())
	unlock()
	if err != nil {
		return nil, err
	}

	s.metrics.DayClosed()
	log.Info().Str("day", day).Msg("day closed")

	if s.exports != nil {
		if err := s.exports.EnqueueExport(ctx, day); err != nil {
			log.Warn().Err(err).Str("day", day).Msg("failed to enqueue archive export")
		}
	}
	return closed, nil
}

// ── Read side ────────────────────────────────────────────────────────────────

func (s *ledgerService) Totals(ctx context.Context, day string) (*model.Totals, error) {
	day, err := parseDay(day)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByDay(ctx, day)
	if err != nil {
		return nil, err
	}
	t := model.ComputeTotals(payments)
	return &t, nil
}

func (s *ledgerService) Day(ctx context.Context, day string) (*dto.DayResponse, error) {
	day, err := parseDay(day)
	if err != nil {
		return nil, err
	}
	state, err := s.repo.FindDay(ctx, day)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByDay(ctx, day)
	if err != nil {
		return nil, err
	}

	resp := &dto.DayResponse{
		Day:      day,
		Status:   state.Status,
		ClosedAt: formatTime(state.ClosedAt),
		Payments: make([]dto.PaymentResponse, 0, len(payments)),
		Totals:   ToTotalsResponse(model.ComputeTotals(payments)),
	}
	for i := range payments {
		resp.Payments = append(resp.Payments, ToPaymentResponse(&payments[i]))
	}
	return resp, nil
}

func (s *ledgerService) Snapshot(ctx context.Context, day string) (*model.DaySnapshot, error) {
	day, err := parseDay(day)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(day)
	defer unlock()

	state, err := s.repo.FindDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if !state.IsClosed() {
		return nil, &apperror.DayOpenError{Day: day}
	}
	payments, err := s.repo.ListByDay(ctx, day)
	if err != nil {
		return nil, err
	}
	return &model.DaySnapshot{Day: *state, Payments: payments}, nil
}

func (s *ledgerService) History(ctx context.Context, page, limit int) (*dto.HistoryResponse, error) {
	days, total, err := s.repo.ListDays(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	resp := &dto.HistoryResponse{
		Data:  make([]dto.DaySummaryResponse, 0, len(days)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range days {
		resp.Data = append(resp.Data, ToDaySummaryResponse(&days[i]))
	}
	return resp, nil
}

func (s *ledgerService) Receipt(ctx context.Context, id int64) (*model.Payment, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.HasReceipt() {
		return nil, &apperror.NotFoundError{ID: id}
	}
	return p, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (s *ledgerService) EnsureOpen(ctx context.Context, day string) error {
	day, err := parseDay(day)
	if err != nil {
		return err
	}
	return s.ensureOpen(ctx, day)
}

// ensureOpen must be called with the day lock held for mutations.
func (s *ledgerService) ensureOpen(ctx context.Context, day string) error {
	state, err := s.repo.FindDay(ctx, day)
	if err != nil {
		return err
	}
	if state.IsClosed() {
		s.metrics.Rejected("closed_day")
		return &apperror.ClosedDayError{Day: day}
	}
	return nil
}

func parseDay(day string) (string, error) {
	d, err := model.ParseDay(day)
	if err != nil {
		return "", apperror.NewValidation("day", "must be a YYYY-MM-DD date")
	}
	return d, nil
}
