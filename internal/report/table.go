package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"strings"

	"caixa/internal/model"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Format is the serialization of the table file.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const (
	paymentsSheet = "Payments"
	totalsSheet   = "Totals"
	csvSeparator  = ';'
	receiptYes    = "yes"
	receiptNo     = "no"
)

var header = []string{"id", "day", "client", "amount", "method", "receipt"}

// utf8BOM lets spreadsheet apps detect UTF-8 when opening the CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one line of the table file.
type Row struct {
	ID         int64
	Day        string
	Client     string
	Amount     decimal.Decimal
	Method     model.Method
	HasReceipt bool
}

func rowsFromPayments(payments []model.Payment) []Row {
	rows := make([]Row, 0, len(payments))
	for i := range payments {
		p := &payments[i]
		rows = append(rows, Row{
			ID:         p.ID,
			Day:        p.Day,
			Client:     p.ClientName,
			Amount:     p.Amount,
			Method:     p.Method,
			HasReceipt: p.HasReceipt(),
		})
	}
	return rows
}

func receiptFlag(has bool) string {
	if has {
		return receiptYes
	}
	return receiptNo
}

// encodeXLSX writes the Payments sheet plus a Totals sheet.
func encodeXLSX(rows []Row, totals model.Totals) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", paymentsSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(paymentsSheet, "A1", &header); err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{r.ID, r.Day, r.Client, r.Amount.InexactFloat64(), string(r.Method), receiptFlag(r.HasReceipt)}
		if err := f.SetSheetRow(paymentsSheet, cell, &values); err != nil {
			return nil, err
		}
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(paymentsSheet, "D2", fmt.Sprintf("D%d", len(rows)+1), money); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(totalsSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(totalsSheet, "A1", &[]interface{}{"method", "total"}); err != nil {
		return nil, err
	}
	line := 2
	for _, m := range model.Methods {
		values := []interface{}{m.Label(), totals.ByMethod[m].InexactFloat64()}
		if err := f.SetSheetRow(totalsSheet, fmt.Sprintf("A%d", line), &values); err != nil {
			return nil, err
		}
		line++
	}
	if err := f.SetSheetRow(totalsSheet, fmt.Sprintf("A%d", line), &[]interface{}{"Total", totals.Grand.InexactFloat64()}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(totalsSheet, "B2", fmt.Sprintf("B%d", line), money); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeCSV is the plain-text rendition; it only fails if the writer does.
func encodeCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)
	w := csv.NewWriter(&buf)
	w.Comma = csvSeparator
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.ID, 10),
			r.Day,
			r.Client,
			r.Amount.StringFixed(2),
			string(r.Method),
			receiptFlag(r.HasReceipt),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadTable parses a table file produced by the builder. The format is
// chosen from the file name extension.
func ReadTable(name string, data []byte) ([]Row, error) {
	var records [][]string
	switch strings.TrimPrefix(path.Ext(name), ".") {
	case string(FormatXLSX):
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open xlsx: %w", err)
		}
		defer f.Close()
		records, err = f.GetRows(paymentsSheet)
		if err != nil {
			return nil, fmt.Errorf("read xlsx rows: %w", err)
		}
	case string(FormatCSV):
		r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
		r.Comma = csvSeparator
		var err error
		records, err = r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown table file %q", name)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("table %q has no header", name)
	}
	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < len(header) {
			return nil, fmt.Errorf("table %q line %d: %d columns", name, i+2, len(rec))
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("table %q line %d: id: %w", name, i+2, err)
		}
		amount, err := decimal.NewFromString(rec[3])
		if err != nil {
			return nil, fmt.Errorf("table %q line %d: amount: %w", name, i+2, err)
		}
		rows = append(rows, Row{
			ID:         id,
			Day:        rec[1],
			Client:     rec[2],
			Amount:     amount,
			Method:     model.Method(rec[4]),
			HasReceipt: rec[5] == receiptYes,
		})
	}
	return rows, nil
}
