// internal/repository/file_source.go
package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// Table base names looked up in the source directory, as .csv or .xlsx.
const (
	TableSales     = "sales"
	TableInventory = "inventory"
	TableProducts  = "products"
	TableStores    = "stores"
)

var errTableNotFound = errors.New("table file not found")

// Column aliases after normalization (lowercase, alphanumerics only).
var (
	colSaleItemID   = []string{"saleitemid", "id"}
	colProductID    = []string{"productid"}
	colProductName  = []string{"productname"}
	colStoreID      = []string{"storeid", "locationid"}
	colSaleDay      = []string{"saleday", "saledate", "date"}
	colQuantitySold = []string{"quantitysold", "quantity", "qty"}
	colOnHand       = []string{"quantity", "quantityonhand", "stock", "onhand"}
	colName         = []string{"name", "productname", "storename"}
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// FileSource reads exported tables from a directory of CSV or XLSX files.
type FileSource struct {
	dir string
}

// NewFileSource creates a file-backed sales repository rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

var _ SalesRepository = (*FileSource)(nil)

func (s *FileSource) SalesHistory(ctx context.Context) ([]domain.SaleRecord, error) {
	t, err := s.readTable(TableSales)
	if err != nil {
		return nil, domain.NewDataSourceError("sales history", err)
	}

	records := make([]domain.SaleRecord, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2

		day, err := parseDate(t.get(row, colSaleDay))
		if err != nil {
			return nil, domain.NewDataSourceError("sales history", fmt.Errorf("%s row %d: %w", t.path, line, err))
		}

		rec := domain.SaleRecord{
			SaleItemID:  int64(line - 1),
			ProductName: t.get(row, colProductName),
			SaleDay:     day,
		}
		if id, ok, err := parseOptionalInt(t.get(row, colSaleItemID)); err != nil {
			return nil, domain.NewDataSourceError("sales history", fmt.Errorf("%s row %d: %w", t.path, line, err))
		} else if ok {
			rec.SaleItemID = id
		}
		if rec.ProductID, err = optionalInt(t.get(row, colProductID)); err != nil {
			return nil, domain.NewDataSourceError("sales history", fmt.Errorf("%s row %d: %w", t.path, line, err))
		}
		if rec.StoreID, err = optionalInt(t.get(row, colStoreID)); err != nil {
			return nil, domain.NewDataSourceError("sales history", fmt.Errorf("%s row %d: %w", t.path, line, err))
		}
		if rec.QuantitySold, err = optionalFloat(t.get(row, colQuantitySold)); err != nil {
			return nil, domain.NewDataSourceError("sales history", fmt.Errorf("%s row %d: %w", t.path, line, err))
		}

		records = append(records, rec)
	}

	return records, nil
}

func (s *FileSource) Inventory(ctx context.Context) ([]domain.InventorySnapshot, error) {
	t, err := s.readTable(TableInventory)
	if err != nil {
		return nil, domain.NewDataSourceError("inventory", err)
	}

	out := make([]domain.InventorySnapshot, 0, len(t.rows))
	for i, row := range t.rows {
		productID, okP, errP := parseOptionalInt(t.get(row, colProductID))
		storeID, okS, errS := parseOptionalInt(t.get(row, colStoreID))
		if err := errors.Join(errP, errS); err != nil {
			return nil, domain.NewDataSourceError("inventory", fmt.Errorf("%s row %d: %w", t.path, i+2, err))
		}
		if !okP || !okS {
			continue
		}

		qty, _, err := parseOptionalInt(t.get(row, colOnHand))
		if err != nil {
			return nil, domain.NewDataSourceError("inventory", fmt.Errorf("%s row %d: %w", t.path, i+2, err))
		}

		out = append(out, domain.InventorySnapshot{ProductID: productID, StoreID: storeID, QuantityOnHand: qty})
	}
	return out, nil
}

func (s *FileSource) ProductNames(ctx context.Context) ([]domain.ProductName, error) {
	pairs, err := s.readNames(TableProducts, colProductID)
	if err != nil {
		return nil, domain.NewDataSourceError("product names", err)
	}
	out := make([]domain.ProductName, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.ProductName{ProductID: p.id, Name: p.name})
	}
	return out, nil
}

func (s *FileSource) StoreNames(ctx context.Context) ([]domain.StoreName, error) {
	pairs, err := s.readNames(TableStores, colStoreID)
	if err != nil {
		return nil, domain.NewDataSourceError("store names", err)
	}
	out := make([]domain.StoreName, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.StoreName{StoreID: p.id, Name: p.name})
	}
	return out, nil
}

type namePair struct {
	id   int64
	name string
}

// readNames treats a missing name table as empty; names are optional.
func (s *FileSource) readNames(name string, idCols []string) ([]namePair, error) {
	t, err := s.readTable(name)
	if errors.Is(err, errTableNotFound) {
		log.Warn().Str("table", name).Str("dir", s.dir).Msg("file source: name table not found, names will be unknown")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]namePair, 0, len(t.rows))
	for i, row := range t.rows {
		id, ok, err := parseOptionalInt(t.get(row, idCols))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", t.path, i+2, err)
		}
		if !ok {
			continue
		}
		out = append(out, namePair{id: id, name: t.get(row, colName)})
	}
	return out, nil
}

type table struct {
	path    string
	columns map[string]int
	rows    [][]string
}

// get returns the first non-missing alias value in row, trimmed.
func (t *table) get(row []string, aliases []string) string {
	for _, alias := range aliases {
		idx, ok := t.columns[alias]
		if !ok || idx >= len(row) {
			continue
		}
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func (s *FileSource) readTable(name string) (*table, error) {
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		var (
			records [][]string
			err     error
		)
		if ext == ".csv" {
			records, err = readCSV(path)
		} else {
			records, err = readXLSX(path)
		}
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%s has no header row", path)
		}

		t := &table{path: path, columns: make(map[string]int), rows: records[1:]}
		for i, col := range records[0] {
			key := normalizeColumnName(col)
			if _, dup := t.columns[key]; !dup {
				t.columns[key] = i
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("%s in %s: %w", name, s.dir, errTableNotFound)
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// normalizeColumnName folds "PRODUCTID", "product_id" and "Product Id" together.
func normalizeColumnName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

// parseOptionalInt accepts integers written as floats ("12.0"), as
// spreadsheets export them.
func parseOptionalInt(v string) (int64, bool, error) {
	if v == "" || strings.EqualFold(v, "null") {
		return 0, false, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false, fmt.Errorf("invalid integer %q", v)
	}
	return int64(f), true, nil
}

func optionalInt(v string) (*int64, error) {
	n, ok, err := parseOptionalInt(v)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

func optionalFloat(v string) (*float64, error) {
	if v == "" || strings.EqualFold(v, "null") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", v)
	}
	return &f, nil
}
