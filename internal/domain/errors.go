package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when no usable training rows remain.
var ErrInsufficientData = errors.New("insufficient data: no usable training rows")

// DataSourceError wraps a connection or query failure against a data source.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// NewDataSourceError wraps err, or returns nil when err is nil.
func NewDataSourceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DataSourceError{Op: op, Err: err}
}

// SchemaMismatchError reports a feature row or model lacking a required column.
type SchemaMismatchError struct {
	Column string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("schema mismatch: missing column %q", e.Column)
	}
	return fmt.Sprintf("schema mismatch on column %q: %s", e.Column, e.Reason)
}

// SerializationError reports an unreadable or corrupt model artifact.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("model artifact %s: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PredictionError reports a model output that cannot be mapped to a quantity.
type PredictionError struct {
	ProductID int64
	StoreID   int64
	Raw       float64
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction for product %d store %d is not finite (raw %g)", e.ProductID, e.StoreID, e.Raw)
}
