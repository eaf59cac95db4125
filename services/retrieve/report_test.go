package retrieve

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docufetch/docufetch/db/catalog"
)

var formatWithCommasTestCases = []struct {
	input    int64
	expected string
}{
	{input: 0, expected: "0"},
	{input: 7, expected: "7"},
	{input: 999, expected: "999"},
	{input: 1000, expected: "1,000"},
	{input: 54321, expected: "54,321"},
	{input: 1234567, expected: "1,234,567"},
	{input: 1000000000, expected: "1,000,000,000"},
}

func TestFormatWithCommas(t *testing.T) {
	assert := require.New(t)
	for _, testCase := range formatWithCommasTestCases {
		assert.Equal(testCase.expected, formatWithCommas(testCase.input), "input %d", testCase.input)
	}
}

func TestManifestLines(t *testing.T) {
	assert := require.New(t)

	blocks := []termBlock{
		{
			Term: catalog.SearchTerm{Kind: catalog.TermKindAccount, Value: "123456"},
			Entries: []ManifestEntry{
				{
					Filename:       "123456_contract.pdf",
					Filepath:       "/mnt/drive/123456_contract.pdf",
					OutputFilename: "123456_contract.pdf",
					Size:           1048576,
				},
				{
					Filename:       "123456_copy.pdf",
					Filepath:       "/mnt/drive/123456_copy.pdf",
					OutputFilename: "123456_copy.pdf",
					Size:           1048576,
					Duplicate:      true,
				},
			},
		},
		{
			Term:    catalog.SearchTerm{Kind: catalog.TermKindName, Value: "Jane Doe"},
			Missing: true,
		},
		{
			Term:   catalog.SearchTerm{Kind: catalog.TermKindAccount, Value: "777"},
			Errors: []string{"failed to copy /mnt/drive/777.pdf: permission denied"},
		},
	}
	duplicates := []duplicateEntry{
		{Original: "123456_contract.pdf", Duplicate: "123456_copy.pdf", Term: "123456"},
	}

	manifest := strings.Join(manifestLines(blocks, duplicates), "\n")

	assert.Contains(manifest, "DOCUMENT RETRIEVAL MANIFEST")
	assert.Contains(manifest, "Total Search Terms: 3")
	assert.Contains(manifest, "Search Term: 123456 (account)")
	assert.Contains(manifest, "Search Term: Jane Doe (name)")
	assert.Contains(manifest, "  ✓ 123456_contract.pdf\n")
	assert.Contains(manifest, "  ✓ 123456_copy.pdf [DUPLICATE]")
	assert.Contains(manifest, "    Source: /mnt/drive/123456_contract.pdf")
	assert.Contains(manifest, "    Size: 1,048,576 bytes")
	assert.Contains(manifest, "  ✗ NOT FOUND")
	assert.Contains(manifest, "  ✗ ERROR: failed to copy /mnt/drive/777.pdf: permission denied")
	assert.Contains(manifest, "SUMMARY: Retrieved 2 files for 3 search terms")
	assert.Contains(manifest, "Duplicates detected: 1")
}

func TestResolveCollisionSuffixes(t *testing.T) {
	assert := require.New(t)
	outputPath := t.TempDir()

	first := resolveCollision(outputPath, "report.txt")
	assert.Equal("report.txt", filepath.Base(first))
	assert.NoError(os.WriteFile(first, []byte("a"), 0644))

	second := resolveCollision(outputPath, "report.txt")
	assert.Equal("report_1.txt", filepath.Base(second))
	assert.NoError(os.WriteFile(second, []byte("b"), 0644))

	third := resolveCollision(outputPath, "report.txt")
	assert.Equal("report_2.txt", filepath.Base(third))
}
