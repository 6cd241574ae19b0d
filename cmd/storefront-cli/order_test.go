package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	charges []gateway.Charge
	err     error
}

func (s stubSearcher) SearchCharges(context.Context, string) ([]gateway.Charge, error) {
	return s.charges, s.err
}

func TestLookupOrder_NotFound(t *testing.T) {
	rep, err := lookupOrder(context.Background(), stubSearcher{}, "ord-1")
	require.NoError(t, err)
	assert.False(t, rep.Found)
	assert.Equal(t, "Order ord-1 not found.", rep.Notice)

	var buf bytes.Buffer
	require.NoError(t, printOrder(&buf, rep, false))
	assert.Contains(t, buf.String(), "not found")
}

func TestLookupOrder_Successful(t *testing.T) {
	gw := stubSearcher{charges: []gateway.Charge{{
		ID: "chrg_1", Status: gateway.StatusSuccessful, Amount: 8000, Currency: "thb", OrderID: "ord-2",
	}}}
	rep, err := lookupOrder(context.Background(), gw, "ord-2")
	require.NoError(t, err)
	require.True(t, rep.Found)
	assert.Equal(t, orders.StatusSuccessful, rep.Outcome.Status)
	assert.Equal(t, "Payment successful! Order ID: ord-2", rep.Notice)

	var buf bytes.Buffer
	require.NoError(t, printOrder(&buf, rep, true))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ord-2", decoded["order_id"])
	assert.Equal(t, true, decoded["found"])
}

func TestLookupOrder_GatewayError(t *testing.T) {
	_, err := lookupOrder(context.Background(), stubSearcher{err: assert.AnError}, "ord-3")
	assert.ErrorIs(t, err, assert.AnError)
}
