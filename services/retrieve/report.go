package retrieve

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	manifestTextName   = "MANIFEST.txt"
	manifestXLSXName   = "MANIFEST.xlsx"
	foundFilesCSVName  = "found_files.csv"
	missingCSVName     = "missing_media.csv"
	duplicatesCSVName  = "duplicates_detected.csv"
	manifestSheetTitle = "Retrieval Manifest"
)

// writeReports emits the report artifacts of one run: the text manifest
// always, the spreadsheet mirror only when requested (and only
// best-effort), and the CSV exports when they have rows. A failure to
// write the mandatory text manifest or a CSV is fatal; the spreadsheet
// degrades silently to absent.
func (s *Service) writeReports(outputPath string, blocks []termBlock, duplicates []duplicateEntry, exportXLSX bool) error {
	lines := manifestLines(blocks, duplicates)

	if err := writeManifestText(filepath.Join(outputPath, manifestTextName), lines); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if exportXLSX {
		if err := writeManifestXLSX(filepath.Join(outputPath, manifestXLSXName), lines); err != nil {
			s.logger.Warn("skipping spreadsheet manifest", "err", err.Error())
		}
	}

	var found []ManifestEntry
	for _, block := range blocks {
		found = append(found, block.Entries...)
	}
	if len(found) > 0 {
		if err := writeFoundFilesCSV(filepath.Join(outputPath, foundFilesCSVName), found); err != nil {
			return fmt.Errorf("failed to write found files export: %w", err)
		}
	}

	if missing := missingTerms(blocks); len(missing) > 0 {
		if err := writeMissingCSV(filepath.Join(outputPath, missingCSVName), missing); err != nil {
			return fmt.Errorf("failed to write missing terms export: %w", err)
		}
	}

	if len(duplicates) > 0 {
		if err := writeDuplicatesCSV(filepath.Join(outputPath, duplicatesCSVName), duplicates); err != nil {
			return fmt.Errorf("failed to write duplicates export: %w", err)
		}
	}

	return nil
}

func manifestLines(blocks []termBlock, duplicates []duplicateEntry) []string {
	totalFound := 0

	lines := []string{
		"DOCUMENT RETRIEVAL MANIFEST",
		fmt.Sprintf("Generated: %s", time.Now().Format(time.RFC3339)),
		fmt.Sprintf("Total Search Terms: %d", len(blocks)),
		"======================================================================",
		"",
	}

	for _, block := range blocks {
		lines = append(lines, fmt.Sprintf("Search Term: %s (%s)", block.Term.Value, block.Term.Kind))

		if block.Missing {
			lines = append(lines, "  ✗ NOT FOUND")
		}
		for _, entry := range block.Entries {
			marker := ""
			if entry.Duplicate {
				marker = " [DUPLICATE]"
			}
			lines = append(lines,
				fmt.Sprintf("  ✓ %s%s", entry.OutputFilename, marker),
				fmt.Sprintf("    Source: %s", entry.Filepath),
				fmt.Sprintf("    Size: %s bytes", formatWithCommas(entry.Size)),
			)
			totalFound++
		}
		for _, message := range block.Errors {
			lines = append(lines, fmt.Sprintf("  ✗ ERROR: %s", message))
		}
		lines = append(lines, "")
	}

	lines = append(lines, fmt.Sprintf("SUMMARY: Retrieved %d files for %d search terms", totalFound, len(blocks)))
	if len(duplicates) > 0 {
		lines = append(lines, fmt.Sprintf("Duplicates detected: %d", len(duplicates)))
	}

	return lines
}

func writeManifestText(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if _, err := file.WriteString(line + "\n"); err != nil {
			file.Close()
			return err
		}
	}

	return file.Close()
}

// writeManifestXLSX mirrors the text manifest's rows into one worksheet.
func writeManifestXLSX(path string, lines []string) error {
	workbook := excelize.NewFile()
	defer workbook.Close()

	sheet := workbook.GetSheetName(0)
	if err := workbook.SetSheetName(sheet, manifestSheetTitle); err != nil {
		return err
	}

	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := workbook.SetCellValue(manifestSheetTitle, cell, line); err != nil {
			return err
		}
	}

	return workbook.SaveAs(path)
}

func writeFoundFilesCSV(path string, entries []ManifestEntry) error {
	rows := [][]string{{"search_term", "search_type", "filename", "filepath", "file_extension", "file_size", "output_filename", "is_duplicate"}}
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Term.Value,
			string(entry.Term.Kind),
			entry.Filename,
			entry.Filepath,
			entry.Extension,
			strconv.FormatInt(entry.Size, 10),
			entry.OutputFilename,
			strconv.FormatBool(entry.Duplicate),
		})
	}
	return writeCSV(path, rows)
}

func writeMissingCSV(path string, blocks []termBlock) error {
	rows := [][]string{{"search_term", "search_type"}}
	for _, block := range blocks {
		rows = append(rows, []string{block.Term.Value, string(block.Term.Kind)})
	}
	return writeCSV(path, rows)
}

func writeDuplicatesCSV(path string, duplicates []duplicateEntry) error {
	rows := [][]string{{"original", "duplicate", "search_term"}}
	for _, duplicate := range duplicates {
		rows = append(rows, []string{duplicate.Original, duplicate.Duplicate, duplicate.Term})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		file.Close()
		return err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func missingTerms(blocks []termBlock) []termBlock {
	var missing []termBlock
	for _, block := range blocks {
		if block.Missing {
			missing = append(missing, block)
		}
	}
	return missing
}

func formatWithCommas(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var out []byte
	for i, digit := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}

	return string(out)
}
