// internal/domain/models.go
package domain

import "time"

// SaleRecord is one aggregated (sale item, day) row from the sales history.
// Ids and quantity are pointers because the source may yield NULLs.
type SaleRecord struct {
	SaleItemID   int64     `json:"sale_item_id" db:"sale_item_id"`
	ProductID    *int64    `json:"product_id" db:"product_id"`
	ProductName  string    `json:"product_name" db:"product_name"`
	StoreID      *int64    `json:"store_id" db:"store_id"`
	SaleDay      time.Time `json:"sale_day" db:"sale_day"`
	QuantitySold *float64  `json:"quantity_sold" db:"quantity_sold"`
}

// FeatureRow holds the model inputs for one (product, store, day).
// Calendar fields are always derived from a single date.
type FeatureRow struct {
	ProductID  int64 `json:"productId"`
	StoreID    int64 `json:"storeId"`
	DayOfWeek  int   `json:"dayOfWeek"` // Monday=0 .. Sunday=6
	Day        int   `json:"day"`
	Month      int   `json:"month"`
	Year       int   `json:"year"`
	WeekOfYear int   `json:"weekOfYear"` // ISO-8601 week
	IsWeekend  int   `json:"isWeekend"`
}

// TrainingRow is a FeatureRow plus its log1p(quantitySold) target.
type TrainingRow struct {
	FeatureRow
	Target float64 `json:"target"`
}

// InventorySnapshot is the on-hand quantity for a (product, store) pair.
type InventorySnapshot struct {
	ProductID      int64 `json:"product_id" db:"product_id"`
	StoreID        int64 `json:"store_id" db:"store_id"`
	QuantityOnHand int64 `json:"quantity" db:"quantity"`
}

// ProductName maps a product id to its display name.
type ProductName struct {
	ProductID int64  `db:"product_id"`
	Name      string `db:"name"`
}

// StoreName maps a store id to its display name.
type StoreName struct {
	StoreID int64  `db:"store_id"`
	Name    string `db:"name"`
}

// Prediction is the forecasted demand for one horizon row.
type Prediction struct {
	ProductID         int64     `json:"productId"`
	StoreID           int64     `json:"storeId"`
	Date              time.Time `json:"date"`
	PredictedQuantity float64   `json:"predictedQuantity"`
}

// Alert is a restock alert for a (product, store) pair.
type Alert struct {
	ProductID         int64    `json:"productId"`
	ProductName       string   `json:"productName"`
	StoreID           int64    `json:"storeId"`
	StoreName         string   `json:"storeName"`
	PredictedQuantity float64  `json:"predictedQuantity"`
	QuantityOnHand    int64    `json:"quantityOnHand"`
	Deficit           float64  `json:"deficit"`
	Priority          Priority `json:"priority"`
}
