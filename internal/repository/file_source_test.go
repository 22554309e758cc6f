package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFileSource_SalesHistoryCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales.csv", "SALEITEMID,PRODUCTID,PRODUCTNAME,STOREID,SALEDAY,QUANTITY_SOLD\n"+
		"1,10,Leche,3,2024-04-02,4\n"+
		"2,,Pan,3,2024-04-02 13:10:00,1\n"+
		"3,11.0,Queso,,2024/04/03,\n")

	records, err := NewFileSource(dir).SalesHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, int64(1), records[0].SaleItemID)
	assert.Equal(t, int64(10), *records[0].ProductID)
	assert.Equal(t, "Leche", records[0].ProductName)
	assert.Equal(t, 4.0, *records[0].QuantitySold)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), records[0].SaleDay)

	assert.Nil(t, records[1].ProductID)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), records[1].SaleDay)

	assert.Equal(t, int64(11), *records[2].ProductID)
	assert.Nil(t, records[2].StoreID)
	assert.Nil(t, records[2].QuantitySold)
}

func TestFileSource_BadRowReportsLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sales.csv", "product_id,store_id,sale_day,quantity_sold\n1,1,2024-01-01,2\n1,1,yesterday,2\n")

	_, err := NewFileSource(dir).SalesHistory(context.Background())

	var dsErr *domain.DataSourceError
	require.True(t, errors.As(err, &dsErr))
	assert.Contains(t, err.Error(), "row 3")
}

func TestFileSource_MissingSalesTable(t *testing.T) {
	_, err := NewFileSource(t.TempDir()).SalesHistory(context.Background())

	var dsErr *domain.DataSourceError
	require.True(t, errors.As(err, &dsErr))
	assert.True(t, errors.Is(err, errTableNotFound))
}

func TestFileSource_InventoryXLSX(t *testing.T) {
	dir := t.TempDir()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"ProductId", "StoreId", "Quantity"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1, 2, 15}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"", 2, 3}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{4, 2, ""}))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "inventory.xlsx")))
	require.NoError(t, f.Close())

	inv, err := NewFileSource(dir).Inventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.InventorySnapshot{
		{ProductID: 1, StoreID: 2, QuantityOnHand: 15},
		{ProductID: 4, StoreID: 2, QuantityOnHand: 0},
	}, inv)
}

func TestFileSource_NamesAreOptional(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "products.csv", "PRODUCTID,NAME\n1,Leche\n,orphan\n")

	src := NewFileSource(dir)

	products, err := src.ProductNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ProductName{{ProductID: 1, Name: "Leche"}}, products)

	stores, err := src.StoreNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestNormalizeColumnName(t *testing.T) {
	assert.Equal(t, "productid", normalizeColumnName("PRODUCTID"))
	assert.Equal(t, "productid", normalizeColumnName("product_id"))
	assert.Equal(t, "productid", normalizeColumnName(" Product Id "))
	assert.Equal(t, "quantitysold", normalizeColumnName("QUANTITY_SOLD"))
}

func TestParseOptionalInt(t *testing.T) {
	n, ok, err := parseOptionalInt("12.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	_, ok, err = parseOptionalInt("")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = parseOptionalInt("12.5")
	assert.Error(t, err)
}
