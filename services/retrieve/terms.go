package retrieve

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docufetch/docufetch/db/catalog"
)

// TermSources are the three ways a caller can supply search criteria: a
// CSV of account IDs (header row skipped, first column used), a single
// account value, and first/last name fields combined into one name query.
type TermSources struct {
	CSVPath   string
	Account   string
	FirstName string
	LastName  string
}

// BuildTerms produces the per-run search terms from the given sources, in
// CSV order first, then the single account, then the combined name.
func BuildTerms(sources TermSources) ([]catalog.SearchTerm, error) {
	var terms []catalog.SearchTerm

	if csvPath := strings.TrimSpace(sources.CSVPath); csvPath != "" {
		csvTerms, err := readTermsCSV(csvPath)
		if err != nil {
			return nil, err
		}
		terms = append(terms, csvTerms...)
	}

	if account := strings.TrimSpace(sources.Account); account != "" {
		terms = append(terms, catalog.SearchTerm{Kind: catalog.TermKindAccount, Value: account})
	}

	name := strings.TrimSpace(strings.TrimSpace(sources.FirstName) + " " + strings.TrimSpace(sources.LastName))
	if name != "" {
		terms = append(terms, catalog.SearchTerm{Kind: catalog.TermKindName, Value: name})
	}

	if len(terms) == 0 {
		return nil, errors.New("no search criteria provided")
	}

	return terms, nil
}

func readTermsCSV(path string) ([]catalog.SearchTerm, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var terms []catalog.SearchTerm
	header := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(row) == 0 {
			continue
		}
		if value := strings.TrimSpace(row[0]); value != "" {
			terms = append(terms, catalog.SearchTerm{Kind: catalog.TermKindAccount, Value: value})
		}
	}

	return terms, nil
}
