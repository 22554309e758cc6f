// internal/repository/sales_repository.go
package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/andresuchdata/restock-forecast/internal/domain"
)

// Selecter is the read side of sqldb.DB.
type Selecter interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// SalesRepository reads the sales history, inventory snapshot and name
// tables the forecast pipeline consumes.
type SalesRepository interface {
	SalesHistory(ctx context.Context) ([]domain.SaleRecord, error)
	Inventory(ctx context.Context) ([]domain.InventorySnapshot, error)
	ProductNames(ctx context.Context) ([]domain.ProductName, error)
	StoreNames(ctx context.Context) ([]domain.StoreName, error)
}

var schemaPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

type salesRepository struct {
	db     Selecter
	prefix string
}

// NewSalesRepository builds a SQL-backed repository. schema may be empty.
func NewSalesRepository(db Selecter, schema string) (SalesRepository, error) {
	if !schemaPattern.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name %q", schema)
	}
	prefix := ""
	if schema != "" {
		prefix = schema + "."
	}
	return &salesRepository{db: db, prefix: prefix}, nil
}

// SalesHistory sums sold quantity per sale item and calendar day.
func (r *salesRepository) SalesHistory(ctx context.Context) ([]domain.SaleRecord, error) {
	query := fmt.Sprintf(`
		SELECT
			si.sale_item_id,
			i.product_id,
			COALESCE(p.name, '') AS product_name,
			e.store_id,
			CAST(s.sale_date AS DATE) AS sale_day,
			SUM(si.quantity) AS quantity_sold
		FROM %[1]ssale_items si
		JOIN %[1]ssales s ON si.sale_id = s.sale_id
		JOIN %[1]semployees e ON s.employee_id = e.employee_id
		JOIN %[1]sinventory i ON si.inventory_id = i.inventory_id
		JOIN %[1]sproducts p ON i.product_id = p.product_id
		GROUP BY si.sale_item_id, i.product_id, p.name, e.store_id, CAST(s.sale_date AS DATE)
		ORDER BY sale_day
	`, r.prefix)

	var rows []domain.SaleRecord
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, domain.NewDataSourceError("sales history", err)
	}
	return rows, nil
}

func (r *salesRepository) Inventory(ctx context.Context) ([]domain.InventorySnapshot, error) {
	query := fmt.Sprintf(`
		SELECT product_id, store_id, COALESCE(quantity, 0) AS quantity
		FROM %sinventory
		WHERE product_id IS NOT NULL AND store_id IS NOT NULL
	`, r.prefix)

	var rows []domain.InventorySnapshot
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, domain.NewDataSourceError("inventory", err)
	}
	return rows, nil
}

func (r *salesRepository) ProductNames(ctx context.Context) ([]domain.ProductName, error) {
	query := fmt.Sprintf(`
		SELECT product_id, COALESCE(name, '') AS name
		FROM %sproducts
	`, r.prefix)

	var rows []domain.ProductName
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, domain.NewDataSourceError("product names", err)
	}
	return rows, nil
}

func (r *salesRepository) StoreNames(ctx context.Context) ([]domain.StoreName, error) {
	query := fmt.Sprintf(`
		SELECT store_id, COALESCE(name, '') AS name
		FROM %slocations
	`, r.prefix)

	var rows []domain.StoreName
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, domain.NewDataSourceError("store names", err)
	}
	return rows, nil
}
