package ledger

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
)

const (
	csvBufferSize = 32 * 1024
	xlsxSheet     = "Entries"
)

var exportHeader = []string{
	"Entry ID", "Date", "Source", "Product", "Description", "Quantity", "Price", "Amount",
	"Payment Status", "Checked", "Claim", "Balance After",
}

func exportRow(e models.LedgerEntry) []string {
	date := ""
	if !e.Date.IsZero() {
		date = e.Date.Format(filenameDateLayout)
	}
	return []string{
		strconv.FormatInt(e.ID, 10),
		date,
		string(e.SourceType),
		e.ProductName,
		e.Description,
		strconv.Itoa(e.Quantity),
		e.Price.StringFixed(2),
		e.Amount.StringFixed(2),
		string(e.PaymentStatus),
		yesNo(e.Checked()),
		yesNo(bool(e.IsClaim)),
		e.BalanceAfter.StringFixed(2),
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// WriteCSV streams entries as CSV.
func WriteCSV(w io.Writer, entries []models.LedgerEntry) error {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writer.Write(exportRow(e)); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

// WriteXLSX writes entries as a single-sheet workbook. Money columns are written as
// numbers so spreadsheet formulas work on them.
func WriteXLSX(w io.Writer, dealerName string, entries []models.LedgerEntry) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: dealerName + " ledger"}); err != nil {
		return err
	}
	for i, h := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(xlsxSheet, cell, h); err != nil {
			return err
		}
	}
	for r, e := range entries {
		row := exportRow(e)
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		values[5] = e.Quantity
		values[6], _ = e.Price.Float64()
		values[7], _ = e.Amount.Float64()
		values[11], _ = e.BalanceAfter.Float64()
		cell := fmt.Sprintf("A%d", r+2)
		if err := f.SetSheetRow(xlsxSheet, cell, &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}
