package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Dataset is an in-memory, immutable record sequence loaded from CSV files.
type Dataset struct {
	records []Record
}

// NewDataset wraps an already-built record slice. Mostly useful in tests and
// for embedding small demo datasets.
func NewDataset(records []Record) *Dataset {
	return &Dataset{records: records}
}

func (d *Dataset) Len() int {
	return len(d.records)
}

func (d *Dataset) At(i int) (Record, error) {
	if i < 0 || i >= len(d.records) {
		return Record{}, fmt.Errorf("record index %d out of range [0,%d)", i, len(d.records))
	}
	return d.records[i], nil
}

// Load reads the transaction CSV, optionally left-joins identity rows on
// TransactionID, and returns the merged dataset in file order. Column names
// are normalized by replacing hyphens with underscores. identityPath may be
// empty, in which case no identity columns are merged.
func Load(transactionsPath, identityPath string) (*Dataset, error) {
	header, rows, err := readCSV(transactionsPath)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}

	idIdx := columnIndex(header, "TransactionID")
	if idIdx < 0 {
		return nil, fmt.Errorf("%s: missing TransactionID column", transactionsPath)
	}
	amtIdx := columnIndex(header, "TransactionAmt")
	if amtIdx < 0 {
		return nil, fmt.Errorf("%s: missing TransactionAmt column", transactionsPath)
	}

	var identity map[string]map[string]string
	if identityPath != "" {
		identity, err = loadIdentity(identityPath)
		if err != nil {
			return nil, fmt.Errorf("loading identity: %w", err)
		}
	}

	records := make([]Record, 0, len(rows))
	for n, row := range rows {
		if idIdx >= len(row) || amtIdx >= len(row) {
			return nil, fmt.Errorf("%s: row %d: too few columns (%d)", transactionsPath, n+2, len(row))
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[col] = row[i]
			}
		}

		id := row[idIdx]
		amount, err := strconv.ParseFloat(row[amtIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: bad TransactionAmt %q: %w", transactionsPath, n+2, row[amtIdx], err)
		}

		// Left join: keep the transaction whether or not identity data exists.
		if idFields, ok := identity[id]; ok {
			for k, v := range idFields {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
		}

		records = append(records, Record{
			TransactionID: id,
			Amount:        amount,
			Fields:        fields,
		})
	}

	return &Dataset{records: records}, nil
}

func loadIdentity(path string) (map[string]map[string]string, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	idIdx := columnIndex(header, "TransactionID")
	if idIdx < 0 {
		return nil, fmt.Errorf("%s: missing TransactionID column", path)
	}

	byID := make(map[string]map[string]string, len(rows))
	for _, row := range rows {
		if idIdx >= len(row) {
			continue
		}
		fields := make(map[string]string, len(header)-1)
		for i, col := range header {
			if i == idIdx || i >= len(row) {
				continue
			}
			fields[col] = row[i]
		}
		byID[row[idIdx]] = fields
	}
	return byID, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	for i, col := range header {
		header[i] = strings.ReplaceAll(col, "-", "_")
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return header, rows, nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return -1
}
