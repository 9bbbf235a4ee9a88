// Package report turns a closed day into a downloadable zip: one table file
// at the root plus every attached receipt under receipts/.
package report

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"time"

	"caixa/internal/apperror"
	"caixa/internal/metrics"
	"caixa/internal/model"
	"caixa/internal/naming"

	"github.com/rs/zerolog/log"
)

// ReceiptsDir is the archive folder holding receipt attachments.
const ReceiptsDir = "receipts/"

// SnapshotSource yields the immutable payment set of a closed day.
type SnapshotSource interface {
	Snapshot(ctx context.Context, day string) (*model.DaySnapshot, error)
}

// Archive is a built report ready for download or storage.
type Archive struct {
	FileName    string
	TableName   string
	TableFormat Format
	Data        []byte
}

type Option func(*Builder)

// WithFormat selects the preferred table format (xlsx by default).
func WithFormat(f Format) Option {
	return func(b *Builder) { b.format = f }
}

func WithCache(c Cache) Option {
	return func(b *Builder) { b.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

type Builder struct {
	src        SnapshotSource
	format     Format
	cache      Cache
	metrics    *metrics.Metrics
	encodeXLSX func([]Row, model.Totals) ([]byte, error)
}

func NewBuilder(src SnapshotSource, opts ...Option) *Builder {
	b := &Builder{src: src, format: FormatXLSX, encodeXLSX: encodeXLSX}
	for _, opt := range opts {
		opt(b)
	}
	if b.format != FormatCSV {
		b.format = FormatXLSX
	}
	return b
}

// ArchiveName is the download name of a day's archive.
func ArchiveName(day string) string {
	return fmt.Sprintf("fechamento_caixa_%s.zip", day)
}

func tableName(day string, f Format) string {
	return fmt.Sprintf("relatorio_%s.%s", day, f)
}

func cacheKey(day string, f Format) string {
	return fmt.Sprintf("report:%s:%s", day, f)
}

// Build produces the archive of a closed day.
func (b *Builder) Build(ctx context.Context, day string) (*Archive, error) {
	if b.cache != nil {
		if data, ok := b.cache.Get(ctx, cacheKey(day, b.format)); ok {
			b.metrics.ReportCacheHit()
			return &Archive{
				FileName:    ArchiveName(day),
				TableName:   tableName(day, b.format),
				TableFormat: b.format,
				Data:        data,
			}, nil
		}
	}

	snap, err := b.src.Snapshot(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(snap.Payments) == 0 {
		return nil, &apperror.EmptyReportError{Day: snap.Day.Day}
	}

	day = snap.Day.Day
	table, format, err := b.encodeTable(snap.Payments)
	if err != nil {
		return nil, fmt.Errorf("encode report table: %w", err)
	}

	modified := time.Now()
	if snap.Day.ClosedAt != nil {
		modified = *snap.Day.ClosedAt
	}
	data, err := writeArchive(tableName(day, format), table, snap.Payments, modified)
	if err != nil {
		return nil, fmt.Errorf("write report archive: %w", err)
	}

	b.metrics.ReportBuilt(string(format))
	if b.cache != nil && format == b.format {
		b.cache.Set(ctx, cacheKey(day, format), data)
	}

	return &Archive{
		FileName:    ArchiveName(day),
		TableName:   tableName(day, format),
		TableFormat: format,
		Data:        data,
	}, nil
}

// encodeTable prefers the spreadsheet and degrades to CSV on any failure.
func (b *Builder) encodeTable(payments []model.Payment) ([]byte, Format, error) {
	rows := rowsFromPayments(payments)
	if b.format == FormatXLSX {
		data, err := b.encodeXLSX(rows, model.ComputeTotals(payments))
		if err == nil {
			return data, FormatXLSX, nil
		}
		log.Warn().Err(err).Msg("xlsx report failed, falling back to csv")
	}
	data, err := encodeCSV(rows)
	return data, FormatCSV, err
}

func writeArchive(table string, tableData []byte, payments []model.Payment, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	used := map[string]bool{}
	add := func(name string, data []byte) error {
		if used[name] {
			return fmt.Errorf("duplicate archive entry %q", name)
		}
		used[name] = true
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	if err := add(table, tableData); err != nil {
		return nil, err
	}
	for i := range payments {
		p := &payments[i]
		if !p.HasReceipt() {
			continue
		}
		// Every receipt listed in the table must be in the archive.
		name, err := naming.ForPayment(p)
		if err != nil {
			return nil, fmt.Errorf("receipt name for payment %d: %v", p.ID, err)
		}
		if err := add(ReceiptsDir+name, p.ReceiptData); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
