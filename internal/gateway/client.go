package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const userAgent = "go-omise-storefront/1.0"

type Options struct {
	BaseURL    string
	SecretKey  string
	APIVersion string
	// Timeout bounds every call. Zero means 10s.
	Timeout    time.Duration
	HTTPClient *http.Client
	// Breaker settings; a zero value trips after 5 consecutive failures.
	Breaker gobreaker.Settings
}

// Client talks to the Omise REST API. It is built once from configuration
// and shared by all requests.
type Client struct {
	http       *http.Client
	baseURL    string
	secretKey  string
	apiVersion string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	st := opts.Breaker
	if st.Name == "" {
		st.Name = "omise"
	}
	if st.ReadyToTrip == nil {
		st.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 }
	}
	if st.Timeout == 0 {
		st.Timeout = 30 * time.Second
	}
	st.IsSuccessful = countsAsSuccess
	return &Client{
		http:       opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		secretKey:  opts.SecretKey,
		apiVersion: opts.APIVersion,
		timeout:    opts.Timeout,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](st),
	}
}

// countsAsSuccess keeps gateway answers like a declined card from tripping
// the breaker; only outages and 5xx do.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}

func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := req.Nonce.Validate(); err != nil {
		return nil, err
	}
	body := createChargeJSON{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Card:        req.Nonce.Card,
		Source:      req.Nonce.Source,
		Customer:    req.Nonce.Customer,
		Metadata:    req.Metadata,
		ReturnURI:   req.ReturnURI,
		IP:          req.IP,
		Description: req.Description,
		Capture:     &req.Capture,
	}
	hdr := http.Header{}
	if req.IdempotencyKey != "" {
		hdr.Set("Idempotency-Key", req.IdempotencyKey)
	}
	data, err := c.do(ctx, http.MethodPost, "/charges", nil, body, hdr)
	if err != nil {
		return nil, err
	}
	return c.charge("create charge", data)
}

func (c *Client) RetrieveCharge(ctx context.Context, id string) (*Charge, error) {
	data, err := c.do(ctx, http.MethodGet, "/charges/"+url.PathEscape(id), nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return c.charge("retrieve charge", data)
}

// SearchCharges returns charges whose metadata order id equals orderID. No
// match is an empty slice, not an error.
func (c *Client) SearchCharges(ctx context.Context, orderID string) ([]Charge, error) {
	q := url.Values{}
	q.Set("scope", "charge")
	q.Set("query", orderID)
	data, err := c.do(ctx, http.MethodGet, "/search", q, nil, nil)
	if err != nil {
		return nil, err
	}
	var res searchJSON
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, &TransportError{Op: "search charges", Err: fmt.Errorf("decode: %w", err)}
	}
	out := []Charge{}
	for _, cj := range res.Data {
		ch := cj.toCharge()
		if ch.OrderID == orderID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	data, err := c.do(ctx, http.MethodPost, "/customers", nil, createCustomerJSON(req), nil)
	if err != nil {
		return nil, err
	}
	var cj customerJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, &TransportError{Op: "create customer", Err: fmt.Errorf("decode: %w", err)}
	}
	return &Customer{ID: cj.ID, Email: cj.Email, DefaultCard: cj.DefaultCard}, nil
}

func (c *Client) charge(op string, data []byte) (*Charge, error) {
	ch, err := decodeCharge(data)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return ch, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, hdr http.Header) ([]byte, error) {
	op := method + " " + path
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, query, body, hdr)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &TransportError{Op: op, Err: err}
	}
	return data, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body any, hdr http.Header) ([]byte, error) {
	op := method + " " + path
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Omise-Version", c.apiVersion)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, data)
	}
	return data, nil
}

func decodeError(status int, data []byte) error {
	var body struct {
		Object   string `json:"object"`
		Location string `json:"location"`
		Code     string `json:"code"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Object != "error" {
		return &Error{StatusCode: status, Code: "unexpected_response", Message: http.StatusText(status)}
	}
	return &Error{StatusCode: status, Code: body.Code, Message: body.Message, Location: body.Location}
}
