package report

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"caixa/internal/apperror"
	"caixa/internal/dto"
	"caixa/internal/model"
	"caixa/internal/repository"
	"caixa/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = "2024-01-01"

func newLedger(t *testing.T) service.LedgerService {
	t.Helper()
	return service.NewLedgerService(repository.NewMemoryPaymentRepository())
}

func add(t *testing.T, l service.LedgerService, client, amount string, m model.Method, receipt *dto.ReceiptUpload) *model.Payment {
	t.Helper()
	p, err := l.AddPayment(context.Background(), day, dto.PaymentCandidate{
		ClientName: client,
		Amount:     decimal.RequireFromString(amount),
		Method:     m,
		Receipt:    receipt,
	})
	require.NoError(t, err)
	return p
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = b
	}
	return out
}

type triple struct {
	client string
	amount string
	method model.Method
}

func triplesFromRows(rows []Row) []triple {
	out := make([]triple, 0, len(rows))
	for _, r := range rows {
		out = append(out, triple{r.Client, r.Amount.StringFixed(2), r.Method})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].client+out[i].amount < out[j].client+out[j].amount })
	return out
}

func triplesFromPayments(ps []model.Payment) []triple {
	return triplesFromRows(rowsFromPayments(ps))
}

func TestBuildScenarioTwoIdenticalPayments(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	add(t, ledger, "Ana", "50.00", model.MethodPix, nil)
	add(t, ledger, "Ana", "50.00", model.MethodPix, nil)
	_, err := ledger.CloseDay(ctx, day)
	require.NoError(t, err)

	archive, err := NewBuilder(ledger).Build(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "fechamento_caixa_2024-01-01.zip", archive.FileName)
	assert.Equal(t, FormatXLSX, archive.TableFormat)

	files := unzip(t, archive.Data)
	require.Len(t, files, 1)
	table, ok := files["relatorio_2024-01-01.xlsx"]
	require.True(t, ok)

	rows, err := ReadTable(archive.TableName, table)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	assert.Equal(t, "100.00", sum.StringFixed(2))
	assert.NotEqual(t, rows[0].ID, rows[1].ID)
}

func TestBuildRoundTripMatchesStore(t *testing.T) {
	for _, format := range []Format{FormatXLSX, FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			ledger := newLedger(t)
			add(t, ledger, "Ana", "50.00", model.MethodPix, nil)
			add(t, ledger, "João; \"Zé\"", "12.34", model.MethodCash, nil)
			add(t, ledger, "Carla", "0.01", model.MethodDebit, &dto.ReceiptUpload{Ext: "pdf", Data: []byte("%PDF-1.4 fake")})
			add(t, ledger, "=SUM(A1)", "999.99", model.MethodCredit, nil)
			_, err := ledger.CloseDay(ctx, day)
			require.NoError(t, err)

			archive, err := NewBuilder(ledger, WithFormat(format)).Build(ctx, day)
			require.NoError(t, err)
			assert.Equal(t, format, archive.TableFormat)

			files := unzip(t, archive.Data)
			rows, err := ReadTable(archive.TableName, files[archive.TableName])
			require.NoError(t, err)

			snap, err := ledger.Snapshot(ctx, day)
			require.NoError(t, err)
			assert.Len(t, rows, len(snap.Payments))
			assert.Equal(t, triplesFromPayments(snap.Payments), triplesFromRows(rows))
		})
	}
}

func TestBuildIncludesReceiptsUnderReceiptsDir(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	png := []byte("\x89PNG\r\n\x1a\nrest")
	a := add(t, ledger, "Ana", "50.00", model.MethodPix, &dto.ReceiptUpload{Ext: "png", Data: png})
	b := add(t, ledger, "Ana", "50.00", model.MethodPix, &dto.ReceiptUpload{Ext: ".PNG", Data: png})
	add(t, ledger, "Bruno", "10.00", model.MethodCash, nil)
	_, err := ledger.CloseDay(ctx, day)
	require.NoError(t, err)

	archive, err := NewBuilder(ledger).Build(ctx, day)
	require.NoError(t, err)
	files := unzip(t, archive.Data)

	var receipts []string
	for name := range files {
		if strings.HasPrefix(name, ReceiptsDir) {
			receipts = append(receipts, name)
		}
	}
	sort.Strings(receipts)
	require.Len(t, receipts, 2)
	assert.NotEqual(t, receipts[0], receipts[1])
	assert.Contains(t, receipts[0], "_pix_ana_50-00.png")
	assert.True(t, strings.HasPrefix(receipts[0], ReceiptsDir+"00000"))
	assert.Equal(t, png, files[receipts[0]])
	assert.NotEqual(t, a.ID, b.ID)

	rows, err := ReadTable(archive.TableName, files[archive.TableName])
	require.NoError(t, err)
	flags := 0
	for _, r := range rows {
		if r.HasReceipt {
			flags++
		}
	}
	assert.Equal(t, 2, flags)
}

func TestBuildFallsBackToCSV(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	add(t, ledger, "Ana", "50.00", model.MethodPix, nil)
	_, err := ledger.CloseDay(ctx, day)
	require.NoError(t, err)

	b := NewBuilder(ledger)
	b.encodeXLSX = func([]Row, model.Totals) ([]byte, error) {
		return nil, errors.New("encoding exploded")
	}
	archive, err := b.Build(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, archive.TableFormat)

	files := unzip(t, archive.Data)
	table, ok := files["relatorio_2024-01-01.csv"]
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(table, utf8BOM))
	assert.Contains(t, string(table), "id;day;client;amount;method;receipt")
	assert.Contains(t, string(table), ";Ana;50.00;PIX;no")
}

func TestBuildRequiresClosedDay(t *testing.T) {
	ledger := newLedger(t)
	add(t, ledger, "Ana", "50.00", model.MethodPix, nil)

	_, err := NewBuilder(ledger).Build(context.Background(), day)
	var open *apperror.DayOpenError
	assert.ErrorAs(t, err, &open)
}

func TestBuildEmptyDay(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	_, err := ledger.CloseDay(ctx, day)
	require.NoError(t, err)

	_, err = NewBuilder(ledger).Build(ctx, day)
	var empty *apperror.EmptyReportError
	assert.ErrorAs(t, err, &empty)
}

type mapCache struct {
	data map[string][]byte
	gets int
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.gets++
	d, ok := c.data[key]
	return d, ok
}

func (c *mapCache) Set(_ context.Context, key string, data []byte) { c.data[key] = data }

type countingSource struct {
	SnapshotSource
	calls int
}

func (s *countingSource) Snapshot(ctx context.Context, day string) (*model.DaySnapshot, error) {
	s.calls++
	return s.SnapshotSource.Snapshot(ctx, day)
}

func TestBuildUsesCache(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	add(t, ledger, "Ana", "50.00", model.MethodPix, nil)
	_, err := ledger.CloseDay(ctx, day)
	require.NoError(t, err)

	src := &countingSource{SnapshotSource: ledger}
	cache := &mapCache{data: map[string][]byte{}}
	b := NewBuilder(src, WithCache(cache))

	first, err := b.Build(ctx, day)
	require.NoError(t, err)
	second, err := b.Build(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first.Data, second.Data)
	assert.Contains(t, cache.data, "report:2024-01-01:xlsx")
}

func TestBuildFailsWhenStoredReceiptCannotBeNamed(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryPaymentRepository()
	require.NoError(t, repo.EnsureDay(ctx, day))
	// Written straight to the store, bypassing the ledger's extension check.
	ext := ".exe"
	require.NoError(t, repo.Append(ctx, &model.Payment{
		Day:         day,
		ClientName:  "Ana",
		Amount:      decimal.RequireFromString("10.00"),
		Method:      model.MethodPix,
		ReceiptExt:  &ext,
		ReceiptData: []byte("MZ\x90\x00"),
	}))
	ledger := service.NewLedgerService(repo)
	_, err := ledger.CloseDay(ctx, day)
	require.NoError(t, err)

	archive, err := NewBuilder(ledger).Build(ctx, day)
	require.Error(t, err)
	assert.Nil(t, archive)
	assert.Contains(t, err.Error(), ".exe")
	// Corrupt stored data is a server fault, not a client error.
	var invalid *apperror.InvalidExtensionError
	assert.False(t, errors.As(err, &invalid))
}
