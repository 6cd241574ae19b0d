package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:    srv.URL,
		SecretKey:  "skey_test",
		APIVersion: "2019-05-29",
		Timeout:    2 * time.Second,
	})
}

func TestCreateCharge_SendsRequest(t *testing.T) {
	var got createChargeJSON
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charges", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "skey_test", user)
		assert.Equal(t, "2019-05-29", r.Header.Get("Omise-Version"))
		assert.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"object":"charge","id":"chrg_1","status":"successful","amount":8000,
			"currency":"thb","failure_code":null,"failure_message":null,
			"metadata":{"order_id":"order-1"}}`))
	})

	ch, err := c.CreateCharge(context.Background(), ChargeRequest{
		Amount:         8000,
		Currency:       "THB",
		Nonce:          PaymentNonce{Card: "tokn_1"},
		Metadata:       map[string]any{MetadataOrderID: "order-1"},
		ReturnURI:      "https://shop.example/orders/order-1/complete",
		IP:             "10.0.0.1",
		Capture:        true,
		IdempotencyKey: "order-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(8000), got.Amount)
	assert.Equal(t, "tokn_1", got.Card)
	assert.Empty(t, got.Source)
	assert.Equal(t, "https://shop.example/orders/order-1/complete", got.ReturnURI)
	require.NotNil(t, got.Capture)
	assert.True(t, *got.Capture)

	assert.Equal(t, "chrg_1", ch.ID)
	assert.Equal(t, StatusSuccessful, ch.Status)
	assert.Equal(t, "order-1", ch.OrderID)
	assert.Equal(t, SourceNone, ch.Source.Kind)
}

func TestCreateCharge_InvalidNonce(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})

	_, err := c.CreateCharge(context.Background(), ChargeRequest{Amount: 100, Currency: "THB"})
	assert.ErrorIs(t, err, ErrInvalidNonce)

	_, err = c.CreateCharge(context.Background(), ChargeRequest{
		Amount: 100, Currency: "THB", Nonce: PaymentNonce{Source: "src_1", Card: "tokn_1"},
	})
	assert.ErrorIs(t, err, ErrInvalidNonce)
}

func TestPaymentNonce_Validate(t *testing.T) {
	assert.NoError(t, PaymentNonce{Card: "tokn"}.Validate())
	assert.NoError(t, PaymentNonce{Source: "src"}.Validate())
	assert.NoError(t, PaymentNonce{Customer: "cust"}.Validate())
	assert.NoError(t, PaymentNonce{Customer: "cust", Card: "tokn"}.Validate())
	assert.Error(t, PaymentNonce{}.Validate())
	assert.Error(t, PaymentNonce{Customer: "cust", Source: "src"}.Validate())
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","location":"https://www.omise.co/api-errors#invalid-card",
			"code":"invalid_card","message":"number is invalid"}`))
	})

	_, err := c.CreateCharge(context.Background(), ChargeRequest{
		Amount: 100, Currency: "THB", Nonce: PaymentNonce{Card: "tokn_bad"},
	})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_card", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, IsGatewayError(err))
}

func TestTransportError_Unreadable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.RetrieveCharge(context.Background(), "chrg_1")
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.True(t, IsGatewayError(err))
	assert.False(t, IsGatewayError(errors.New("local")))
}

func TestRetrieveCharge_DecodesSources(t *testing.T) {
	bodies := map[string]string{
		"/charges/chrg_econ": `{"object":"charge","id":"chrg_econ","status":"pending",
			"authorize_uri":"https://pay.example/econ","source":{"type":"econtext"}}`,
		"/charges/chrg_bill": `{"object":"charge","id":"chrg_bill","status":"pending",
			"source":{"type":"bill_payment_tesco_lotus","references":{"reference_number_1":"111",
			"reference_number_2":"222","barcode":"https://api.omise.co/barcode.svg","expires_at":"2026-10-20T00:00:00Z"}}}`,
		"/charges/chrg_bank": `{"object":"charge","id":"chrg_bank","status":"pending",
			"authorize_uri":"https://pay.example/bank","source":{"type":"internet_banking_scb","references":null}}`,
		"/charges/chrg_card": `{"object":"charge","id":"chrg_card","status":"failed",
			"failure_code":"insufficient_fund","failure_message":"insufficient funds","source":null}`,
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object":"error","code":"not_found","message":"charge not found"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	})
	ctx := context.Background()

	econ, err := c.RetrieveCharge(ctx, "chrg_econ")
	require.NoError(t, err)
	assert.Equal(t, SourceEcontext, econ.Source.Kind)
	assert.Equal(t, "https://pay.example/econ", econ.AuthorizeURI)

	bill, err := c.RetrieveCharge(ctx, "chrg_bill")
	require.NoError(t, err)
	assert.Equal(t, SourceBillPayment, bill.Source.Kind)
	require.NotNil(t, bill.Source.References)
	assert.Equal(t, "111", bill.Source.References.ReferenceNumber1)

	bank, err := c.RetrieveCharge(ctx, "chrg_bank")
	require.NoError(t, err)
	assert.Equal(t, SourceOther, bank.Source.Kind)
	assert.Nil(t, bank.Source.References)

	card, err := c.RetrieveCharge(ctx, "chrg_card")
	require.NoError(t, err)
	assert.Equal(t, SourceNone, card.Source.Kind)
	assert.Equal(t, "insufficient funds", card.FailureMessage)

	_, err = c.RetrieveCharge(ctx, "chrg_missing")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestSearchCharges(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "charge", r.URL.Query().Get("scope"))
		if r.URL.Query().Get("query") == "order-none" {
			_, _ = w.Write([]byte(`{"object":"search","data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"search","data":[
			{"object":"charge","id":"chrg_other","status":"successful","metadata":{"order_id":"order-10"}},
			{"object":"charge","id":"chrg_1","status":"pending","metadata":{"order_id":"order-1"}}]}`))
	})
	ctx := context.Background()

	found, err := c.SearchCharges(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "chrg_1", found[0].ID)

	none, err := c.SearchCharges(ctx, "order-none")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCreateCustomer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers", r.URL.Path)
		var body createCustomerJSON
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buyer@example.com", body.Email)
		assert.Equal(t, "tokn_1", body.Card)
		_, _ = w.Write([]byte(`{"object":"customer","id":"cust_1","email":"buyer@example.com","default_card":"card_1"}`))
	})

	cust, err := c.CreateCustomer(context.Background(), CustomerRequest{Email: "buyer@example.com", Card: "tokn_1"})
	require.NoError(t, err)
	assert.Equal(t, "cust_1", cust.ID)
	assert.Equal(t, "card_1", cust.DefaultCard)
}

func TestBreaker_OpensOnServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","code":"invalid_card","message":"declined"}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{
		BaseURL: srv.URL,
		Breaker: gobreaker.Settings{
			ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 },
			Timeout:     time.Minute,
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.RetrieveCharge(ctx, "chrg_1")
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
	}
	assert.Equal(t, int32(3), calls.Load())

	fail.Store(true)
	for i := 0; i < 2; i++ {
		_, _ = c.RetrieveCharge(ctx, "chrg_1")
	}
	_, err := c.RetrieveCharge(ctx, "chrg_1")
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), calls.Load())
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, SecretKey: "skey_test", Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := c.RetrieveCharge(context.Background(), "chrg_1")
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}
