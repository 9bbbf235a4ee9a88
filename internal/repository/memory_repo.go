package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"caixa/internal/apperror"
	"caixa/internal/model"
)

// memoryRepo keeps everything in process memory. Ids come from a counter
// that is never decremented, so deleted ids are not handed out again.
type memoryRepo struct {
	mu       sync.RWMutex
	nextID   int64
	payments []model.Payment
	days     map[string]*model.CashDay
}

// NewMemoryPaymentRepository returns a non-durable PaymentRepository.
func NewMemoryPaymentRepository() PaymentRepository {
	return &memoryRepo{days: make(map[string]*model.CashDay)}
}

func (r *memoryRepo) Append(_ context.Context, p *model.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	r.payments = append(r.payments, clonePayment(*p))
	return nil
}

func (r *memoryRepo) ListByDay(_ context.Context, day string) ([]model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []model.Payment{}
	for _, p := range r.payments {
		if p.Day == day {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

func (r *memoryRepo) FindByID(_ context.Context, id int64) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.ID == id {
			cp := clonePayment(p)
			return &cp, nil
		}
	}
	return nil, &apperror.NotFoundError{ID: id}
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.payments {
		if p.ID == id {
			r.payments = append(r.payments[:i], r.payments[i+1:]...)
			return nil
		}
	}
	return &apperror.NotFoundError{ID: id}
}

func (r *memoryRepo) FindDay(_ context.Context, day string) (*model.CashDay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.days[day]; ok {
		cp := *d
		return &cp, nil
	}
	return &model.CashDay{Day: day, Status: model.DayOpen}, nil
}

func (r *memoryRepo) EnsureDay(_ context.Context, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.days[day]; !ok {
		now := time.Now()
		r.days[day] = &model.CashDay{Day: day, Status: model.DayOpen, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (r *memoryRepo) CloseDay(_ context.Context, day string, at time.Time) (*model.CashDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.days[day]
	if !ok {
		d = &model.CashDay{Day: day, CreatedAt: at}
		r.days[day] = d
	}
	if !d.IsClosed() {
		d.Status = model.DayClosed
		d.ClosedAt = &at
		d.UpdatedAt = at
	}
	cp := *d
	return &cp, nil
}

func (r *memoryRepo) ListDays(_ context.Context, page, limit int) ([]model.CashDay, int64, error) {
	r.mu.RLock()
	all := make([]model.CashDay, 0, len(r.days))
	for _, d := range r.days {
		all = append(all, *d)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Day > all[j].Day })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.CashDay{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func clonePayment(p model.Payment) model.Payment {
	if p.ReceiptData != nil {
		p.ReceiptData = append([]byte(nil), p.ReceiptData...)
	}
	return p
}
