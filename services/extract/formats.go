package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/extrame/xls"
	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// extractPDF concatenates the text of every page, page order preserved,
// pages joined by newline.
func extractPDF(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var pages []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", pageNum, err)
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n"), nil
}

// extractDOCX concatenates paragraph text in document order, joined by
// newline.
func extractDOCX(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", err
	}

	doc, err := docx.Parse(file, stat.Size())
	if err != nil {
		return "", err
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if paragraph, ok := item.(*docx.Paragraph); ok {
			paragraphs = append(paragraphs, paragraph.String())
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}

// extractXLSX walks every worksheet in order; per row the non-empty cell
// values are joined by a single space, wholly-blank rows are skipped and
// the surviving rows are joined by newline.
func extractXLSX(path string) (string, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer workbook.Close()

	var lines []string
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			if line := joinCells(row); line != "" {
				lines = append(lines, line)
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}

// extractXLS applies the same row/cell join rule over the legacy format's
// sheet and row iteration.
func extractXLS(path string) (string, error) {
	workbook, err := xls.Open(path, "utf-8")
	if err != nil {
		return "", err
	}

	var lines []string
	for sheetNum := 0; sheetNum < workbook.NumSheets(); sheetNum++ {
		sheet := workbook.GetSheet(sheetNum)
		if sheet == nil {
			continue
		}
		for rowNum := 0; rowNum <= int(sheet.MaxRow); rowNum++ {
			row := sheet.Row(rowNum)
			if row == nil {
				continue
			}
			var cells []string
			for colNum := row.FirstCol(); colNum < row.LastCol(); colNum++ {
				cells = append(cells, row.Col(colNum))
			}
			if line := joinCells(cells); line != "" {
				lines = append(lines, line)
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}

func joinCells(cells []string) string {
	var nonEmpty []string
	for _, cell := range cells {
		if cell != "" {
			nonEmpty = append(nonEmpty, cell)
		}
	}

	return strings.TrimSpace(strings.Join(nonEmpty, " "))
}
