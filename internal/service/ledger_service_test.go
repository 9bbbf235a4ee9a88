package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"caixa/internal/apperror"
	"caixa/internal/dto"
	"caixa/internal/infra"
	"caixa/internal/model"
	"caixa/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDay = "2024-01-01"

func candidate(client, amount string, m model.Method) dto.PaymentCandidate {
	return dto.PaymentCandidate{ClientName: client, Amount: decimal.RequireFromString(amount), Method: m}
}

func TestScenarioAddTotalsCloseReject(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())

	first, err := svc.AddPayment(ctx, testDay, candidate("Ana", "50.00", model.MethodPix))
	require.NoError(t, err)

	totals, err := svc.Totals(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, "50.00", totals.ByMethod[model.MethodPix].StringFixed(2))
	assert.Equal(t, "50.00", totals.Grand.StringFixed(2))

	second, err := svc.AddPayment(ctx, testDay, candidate("Ana", "50.00", model.MethodPix))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	totals, err = svc.Totals(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, "100.00", totals.Grand.StringFixed(2))
	assert.Equal(t, 2, totals.Count)
	for _, m := range model.Methods {
		_, ok := totals.ByMethod[m]
		assert.True(t, ok, "missing method %s", m)
	}

	_, err = svc.CloseDay(ctx, testDay)
	require.NoError(t, err)

	_, err = svc.AddPayment(ctx, testDay, candidate("Ana", "10.00", model.MethodCash))
	var closed *apperror.ClosedDayError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, testDay, closed.Day)
}

func TestClosedDayRejectsEveryMutationEvenAfterRepeatedClose(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())
	p, err := svc.AddPayment(ctx, testDay, candidate("Ana", "5", model.MethodDebit))
	require.NoError(t, err)

	firstClose, err := svc.CloseDay(ctx, testDay)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := svc.CloseDay(ctx, testDay)
		require.NoError(t, err)
		assert.Equal(t, model.DayClosed, again.Status)
		assert.Equal(t, firstClose.ClosedAt, again.ClosedAt)

		var closed *apperror.ClosedDayError
		_, err = svc.AddPayment(ctx, testDay, candidate("Bia", "1", model.MethodPix))
		assert.ErrorAs(t, err, &closed)
		assert.ErrorAs(t, svc.RemovePayment(ctx, testDay, p.ID), &closed)
		assert.ErrorAs(t, svc.RemovePayment(ctx, testDay, 9999), &closed)
	}

	totals, err := svc.Totals(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Count)
}

func TestClosedDayRejectsInvalidCandidatesAsClosed(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())
	_, err := svc.CloseDay(ctx, testDay)
	require.NoError(t, err)

	exe := candidate("Ana", "10", model.MethodPix)
	exe.Receipt = &dto.ReceiptUpload{Ext: ".exe", Data: []byte("MZ\x90\x00")}

	cases := map[string]dto.PaymentCandidate{
		"zero amount":    candidate("Ana", "0", model.MethodPix),
		"empty client":   candidate("  ", "10", model.MethodPix),
		"exe receipt":    exe,
		"unknown method": candidate("Ana", "10", model.Method("BOLETO")),
	}
	for name, c := range cases {
		_, err := svc.AddPayment(ctx, testDay, c)
		var closed *apperror.ClosedDayError
		assert.ErrorAs(t, err, &closed, name)
	}
	assert.ErrorAs(t, svc.EnsureOpen(ctx, testDay), new(*apperror.ClosedDayError))
	assert.NoError(t, svc.EnsureOpen(ctx, "2024-01-02"))
}

func TestZeroAmountRejected(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())

	_, err := svc.AddPayment(ctx, testDay, candidate("Ana", "0", model.MethodPix))
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "amount")

	day, err := svc.Day(ctx, testDay)
	require.NoError(t, err)
	assert.Empty(t, day.Payments)
	assert.True(t, day.Totals.Grand.IsZero())
}

func TestAddPaymentValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())

	cases := map[string]dto.PaymentCandidate{
		"empty client":   candidate("   ", "10", model.MethodPix),
		"negative":       candidate("Ana", "-1", model.MethodPix),
		"three decimals": candidate("Ana", "1.005", model.MethodPix),
		"bad method":     candidate("Ana", "10", model.Method("BOLETO")),
	}
	for name, c := range cases {
		_, err := svc.AddPayment(ctx, testDay, c)
		var verr *apperror.ValidationError
		assert.ErrorAs(t, err, &verr, name)
	}

	_, err := svc.AddPayment(ctx, "2024/01/01", candidate("Ana", "10", model.MethodPix))
	var verr *apperror.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAddPaymentReceipt(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())

	c := candidate("Ana", "10", model.MethodPix)
	c.Receipt = &dto.ReceiptUpload{Ext: "exe", Data: []byte("MZ")}
	_, err := svc.AddPayment(ctx, testDay, c)
	var extErr *apperror.InvalidExtensionError
	require.ErrorAs(t, err, &extErr)

	c.Receipt = &dto.ReceiptUpload{Ext: ".PDF", Data: []byte("%PDF-1.7\n")}
	p, err := svc.AddPayment(ctx, testDay, c)
	require.NoError(t, err)
	require.True(t, p.HasReceipt())
	assert.Equal(t, "pdf", *p.ReceiptExt)
	assert.Equal(t, "application/pdf", *p.ReceiptType)

	got, err := svc.Receipt(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7\n"), got.ReceiptData)

	plain, err := svc.AddPayment(ctx, testDay, candidate("Bia", "1", model.MethodCash))
	require.NoError(t, err)
	_, err = svc.Receipt(ctx, plain.ID)
	var nf *apperror.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRemovePayment(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())
	a, err := svc.AddPayment(ctx, testDay, candidate("Ana", "30", model.MethodPix))
	require.NoError(t, err)
	b, err := svc.AddPayment(ctx, testDay, candidate("Bia", "20", model.MethodCash))
	require.NoError(t, err)
	other, err := svc.AddPayment(ctx, "2024-01-02", candidate("Caio", "5", model.MethodCash))
	require.NoError(t, err)

	require.NoError(t, svc.RemovePayment(ctx, testDay, a.ID))

	totals, err := svc.Totals(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, "20.00", totals.Grand.StringFixed(2))

	var nf *apperror.NotFoundError
	assert.ErrorAs(t, svc.RemovePayment(ctx, testDay, 424242), &nf)
	assert.ErrorAs(t, svc.RemovePayment(ctx, testDay, other.ID), &nf)

	after, err := svc.Totals(ctx, testDay)
	require.NoError(t, err)
	assert.True(t, totals.Grand.Equal(after.Grand))
	assert.Equal(t, b.ID, mustDay(t, svc, testDay).Payments[0].ID)
}

func mustDay(t *testing.T, svc LedgerService, day string) *dto.DayResponse {
	t.Helper()
	d, err := svc.Day(context.Background(), day)
	require.NoError(t, err)
	return d
}

func TestGrandTotalEqualsAddedMinusDeleted(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())

	expected := decimal.Zero
	var ids []int64
	for i := 1; i <= 40; i++ {
		amount := decimal.New(int64(i*137%1000+1), -2)
		m := model.Methods[i%len(model.Methods)]
		p, err := svc.AddPayment(ctx, testDay, dto.PaymentCandidate{ClientName: fmt.Sprintf("c%d", i), Amount: amount, Method: m})
		require.NoError(t, err)
		expected = expected.Add(amount)
		ids = append(ids, p.ID)
	}
	for i, id := range ids {
		if i%3 != 0 {
			continue
		}
		d := mustDay(t, svc, testDay)
		for _, pr := range d.Payments {
			if pr.ID == id {
				expected = expected.Sub(pr.Amount)
			}
		}
		require.NoError(t, svc.RemovePayment(ctx, testDay, id))
	}

	totals, err := svc.Totals(ctx, testDay)
	require.NoError(t, err)
	assert.True(t, expected.Equal(totals.Grand), "want %s got %s", expected, totals.Grand)

	byMethod := decimal.Zero
	for _, v := range totals.ByMethod {
		byMethod = byMethod.Add(v)
	}
	assert.True(t, byMethod.Equal(totals.Grand))
}

func TestSnapshotRequiresClosedDay(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())
	_, err := svc.AddPayment(ctx, testDay, candidate("Ana", "1", model.MethodPix))
	require.NoError(t, err)

	_, err = svc.Snapshot(ctx, testDay)
	var open *apperror.DayOpenError
	require.ErrorAs(t, err, &open)

	_, err = svc.CloseDay(ctx, testDay)
	require.NoError(t, err)
	snap, err := svc.Snapshot(ctx, testDay)
	require.NoError(t, err)
	assert.Len(t, snap.Payments, 1)
	assert.True(t, snap.Day.IsClosed())
}

type recordingDispatcher struct {
	mu   sync.Mutex
	days []string
	err  error
}

func (d *recordingDispatcher) EnqueueExport(_ context.Context, day string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.days = append(d.days, day)
	return d.err
}

func TestCloseDayEnqueuesExportOnce(t *testing.T) {
	ctx := context.Background()
	disp := &recordingDispatcher{}
	at := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	svc := NewLedgerService(repository.NewMemoryPaymentRepository(),
		WithExportDispatcher(disp),
		WithClock(func() time.Time { return at }))

	d, err := svc.CloseDay(ctx, testDay)
	require.NoError(t, err)
	require.NotNil(t, d.ClosedAt)
	assert.True(t, at.Equal(*d.ClosedAt))

	_, err = svc.CloseDay(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, []string{testDay}, disp.days)
}

func TestCloseDaySurvivesDispatcherFailure(t *testing.T) {
	disp := &recordingDispatcher{err: errors.New("redis down")}
	svc := NewLedgerService(repository.NewMemoryPaymentRepository(), WithExportDispatcher(disp))

	d, err := svc.CloseDay(context.Background(), testDay)
	require.NoError(t, err)
	assert.True(t, d.IsClosed())
}

func TestConcurrentAddsAndCloseKeepInvariants(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []*model.Payment
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 25 {
				_, err := svc.CloseDay(ctx, testDay)
				assert.NoError(t, err)
				return
			}
			p, err := svc.AddPayment(ctx, testDay, candidate(fmt.Sprintf("c%d", i), "1.00", model.MethodCash))
			if err != nil {
				var closed *apperror.ClosedDayError
				assert.ErrorAs(t, err, &closed)
				return
			}
			mu.Lock()
			accepted = append(accepted, p)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, p := range accepted {
		assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
		seen[p.ID] = true
	}
	snap, err := svc.Snapshot(ctx, testDay)
	require.NoError(t, err)
	assert.Len(t, snap.Payments, len(accepted))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(repository.NewMemoryPaymentRepository())
	_, err := svc.AddPayment(ctx, "2024-01-01", candidate("Ana", "1", model.MethodPix))
	require.NoError(t, err)
	_, err = svc.CloseDay(ctx, "2024-01-02")
	require.NoError(t, err)

	h, err := svc.History(ctx, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, h.Total)
	require.Len(t, h.Data, 2)
	assert.Equal(t, "2024-01-02", h.Data[0].Day)
	assert.Equal(t, model.DayClosed, h.Data[0].Status)
	assert.NotNil(t, h.Data[0].ClosedAt)
	assert.Equal(t, model.DayOpen, h.Data[1].Status)
}

func sqliteRepo(t *testing.T) repository.PaymentRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := infra.NewDatabase(infra.DriverSQLite, dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return repository.NewPaymentRepository(db)
}

func TestLedgerOverSQLite(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(sqliteRepo(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddPayment(ctx, testDay, candidate(fmt.Sprintf("c%d", i), "2.50", model.MethodCredit))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	totals, err := svc.Totals(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, 20, totals.Count)
	assert.Equal(t, "50.00", totals.Grand.StringFixed(2))

	d := mustDay(t, svc, testDay)
	require.NoError(t, svc.RemovePayment(ctx, testDay, d.Payments[0].ID))
	_, err = svc.CloseDay(ctx, testDay)
	require.NoError(t, err)

	var closed *apperror.ClosedDayError
	_, err = svc.AddPayment(ctx, testDay, candidate("late", "1", model.MethodCash))
	assert.ErrorAs(t, err, &closed)

	snap, err := svc.Snapshot(ctx, testDay)
	require.NoError(t, err)
	assert.Len(t, snap.Payments, 19)
	assert.Equal(t, "47.50", model.ComputeTotals(snap.Payments).Grand.StringFixed(2))
}

func TestClosedFlagSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "caixa.db")

	open := func() LedgerService {
		db, err := infra.NewDatabase(infra.DriverSQLite, path)
		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		t.Cleanup(func() { _ = sqlDB.Close() })
		return NewLedgerService(repository.NewPaymentRepository(db))
	}

	first := open()
	p, err := first.AddPayment(ctx, testDay, candidate("Ana", "50.00", model.MethodPix))
	require.NoError(t, err)
	_, err = first.CloseDay(ctx, testDay)
	require.NoError(t, err)

	second := open()
	var closed *apperror.ClosedDayError
	_, err = second.AddPayment(ctx, testDay, candidate("Bia", "10.00", model.MethodCash))
	require.ErrorAs(t, err, &closed)
	assert.ErrorAs(t, second.RemovePayment(ctx, testDay, p.ID), &closed)

	snap, err := second.Snapshot(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, snap.Payments, 1)
	assert.Equal(t, p.ID, snap.Payments[0].ID)
}
