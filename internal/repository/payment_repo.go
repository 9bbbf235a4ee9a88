package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caixa/internal/apperror"
	"caixa/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository is the storage contract of the ledger: payments keyed by
// day plus the persisted closed flag of each day.
type PaymentRepository interface {
	// Append validates p, assigns a fresh id and persists it.
	Append(ctx context.Context, p *model.Payment) error
	// ListByDay returns the day's payments in insertion order.
	ListByDay(ctx context.Context, day string) ([]model.Payment, error)
	FindByID(ctx context.Context, id int64) (*model.Payment, error)
	// Delete returns *apperror.NotFoundError when id is unknown.
	Delete(ctx context.Context, id int64) error

	// FindDay returns an open CashDay when the day has no row yet.
	FindDay(ctx context.Context, day string) (*model.CashDay, error)
	EnsureDay(ctx context.Context, day string) error
	// CloseDay is idempotent and keeps the first ClosedAt.
	CloseDay(ctx context.Context, day string, at time.Time) (*model.CashDay, error)
	ListDays(ctx context.Context, page, limit int) ([]model.CashDay, int64, error)
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) Append(ctx context.Context, p *model.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = 0
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) ListByDay(ctx context.Context, day string) ([]model.Payment, error) {
	payments := []model.Payment{}
	err := r.db.WithContext(ctx).Where("day = ?", day).Order("id ASC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) FindByID(ctx context.Context, id int64) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperror.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Payment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &apperror.NotFoundError{ID: id}
	}
	return nil
}

func (r *paymentRepo) FindDay(ctx context.Context, day string) (*model.CashDay, error) {
	var d model.CashDay
	err := r.db.WithContext(ctx).Where("day = ?", day).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CashDay{Day: day, Status: model.DayOpen}, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *paymentRepo) EnsureDay(ctx context.Context, day string) error {
	d := model.CashDay{Day: day, Status: model.DayOpen}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&d).Error
}

func (r *paymentRepo) CloseDay(ctx context.Context, day string, at time.Time) (*model.CashDay, error) {
	var out model.CashDay
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("day = ?", day).First(&out).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = model.CashDay{Day: day, Status: model.DayClosed, ClosedAt: &at}
			return tx.Create(&out).Error
		case err != nil:
			return err
		case out.IsClosed():
			return nil
		}
		out.Status = model.DayClosed
		out.ClosedAt = &at
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, fmt.Errorf("close day %s: %w", day, err)
	}
	return &out, nil
}

func (r *paymentRepo) ListDays(ctx context.Context, page, limit int) ([]model.CashDay, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.CashDay{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	days := []model.CashDay{}
	err := r.db.WithContext(ctx).
		Order("day DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&days).Error
	return days, total, err
}
