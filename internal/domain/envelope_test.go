package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_FailureHasNoAlertsKey(t *testing.T) {
	env := NewEnvelope([]Alert{{ProductID: 1}}, errors.New("connection refused"))

	payload, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"connection refused"}`, string(payload))

	var generic map[string]any
	require.NoError(t, json.Unmarshal(payload, &generic))
	_, hasAlerts := generic["alerts"]
	assert.False(t, hasAlerts)
}

func TestEnvelope_SuccessWithoutAlertsKeepsEmptyList(t *testing.T) {
	payload, err := json.Marshal(NewEnvelope(nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"alerts":[]}`, string(payload))
}

func TestEnvelope_SuccessFields(t *testing.T) {
	env := NewEnvelope([]Alert{{
		ProductID:         3,
		ProductName:       "Cafe",
		StoreID:           1,
		StoreName:         "Centro",
		PredictedQuantity: 12.5,
		QuantityOnHand:    2,
		Deficit:           10.5,
		Priority:          PriorityHigh,
	}}, nil)

	payload, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"alerts":[{"productId":3,"productName":"Cafe","storeId":1,"storeName":"Centro","predictedQuantity":12.5,"quantityOnHand":2,"deficit":10.5,"priority":"Alta"}]}`, string(payload))

	var decoded Envelope
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.True(t, decoded.Success)
	require.Len(t, decoded.Alerts, 1)
	assert.Equal(t, PriorityHigh, decoded.Alerts[0].Priority)
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewDataSourceError("sales history", cause)

	var dsErr *DataSourceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "sales history", dsErr.Op)
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, NewDataSourceError("noop", nil))

	serr := &SerializationError{Key: "model.json", Err: cause}
	assert.ErrorIs(t, serr, cause)
	assert.Contains(t, (&SchemaMismatchError{Column: "month"}).Error(), "month")
}

func TestParsePriority(t *testing.T) {
	p, ok := ParsePriority(" ALTA ")
	require.True(t, ok)
	assert.Equal(t, PriorityHigh, p)
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())

	_, ok = ParsePriority("Default")
	assert.False(t, ok)
	assert.False(t, Priority("Default").Valid())
}
