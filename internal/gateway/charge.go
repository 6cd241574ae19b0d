package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ChargeStatus string

const (
	StatusPending    ChargeStatus = "pending"
	StatusSuccessful ChargeStatus = "successful"
	StatusFailed     ChargeStatus = "failed"
	StatusExpired    ChargeStatus = "expired"
)

// MetadataOrderID is the charge metadata field holding our order id.
const MetadataOrderID = "order_id"

// SourceKind tags which payment-source shape a charge carries.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceEcontext
	SourceBillPayment
	SourceOther
)

func (k SourceKind) String() string {
	switch k {
	case SourceNone:
		return "none"
	case SourceEcontext:
		return "econtext"
	case SourceBillPayment:
		return "bill_payment"
	default:
		return "other"
	}
}

const sourceTypeEcontext = "econtext"

// References is the out-of-band payment data of a barcode / bill payment
// source.
type References struct {
	ExpiresAt        string `json:"expires_at,omitempty"`
	ReferenceNumber1 string `json:"reference_number_1,omitempty"`
	ReferenceNumber2 string `json:"reference_number_2,omitempty"`
	Barcode          string `json:"barcode,omitempty"`
}

func (r *References) empty() bool {
	return r == nil || *r == (References{})
}

// Source is decoded once from the gateway response. References is set only
// for SourceBillPayment.
type Source struct {
	Kind       SourceKind
	Type       string
	References *References
}

type Charge struct {
	ID             string
	Status         ChargeStatus
	Amount         int64
	Currency       string
	FailureCode    string
	FailureMessage string
	AuthorizeURI   string
	Source         Source
	OrderID        string
	Metadata       map[string]any
}

// PaymentNonce identifies what to charge. Valid shapes: Card, Source,
// Customer, or Customer with Card.
type PaymentNonce struct {
	Card     string
	Source   string
	Customer string
}

var ErrInvalidNonce = errors.New("exactly one payment method is required")

func (n PaymentNonce) Validate() error {
	switch {
	case n.Source != "" && (n.Card != "" || n.Customer != ""):
		return ErrInvalidNonce
	case n.Source == "" && n.Card == "" && n.Customer == "":
		return ErrInvalidNonce
	}
	return nil
}

type ChargeRequest struct {
	Amount         int64
	Currency       string
	Nonce          PaymentNonce
	Metadata       map[string]any
	ReturnURI      string
	IP             string
	Description    string
	Capture        bool
	IdempotencyKey string
}

type CustomerRequest struct {
	Email       string
	Card        string
	Description string
}

type Customer struct {
	ID          string
	Email       string
	DefaultCard string
}

// ---- wire shapes ----

type chargeJSON struct {
	Object         string         `json:"object"`
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	FailureCode    *string        `json:"failure_code"`
	FailureMessage *string        `json:"failure_message"`
	AuthorizeURI   string         `json:"authorize_uri"`
	Source         *sourceJSON    `json:"source"`
	Metadata       map[string]any `json:"metadata"`
}

type sourceJSON struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	References *References `json:"references"`
}

type createChargeJSON struct {
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Card        string         `json:"card,omitempty"`
	Source      string         `json:"source,omitempty"`
	Customer    string         `json:"customer,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ReturnURI   string         `json:"return_uri,omitempty"`
	IP          string         `json:"ip,omitempty"`
	Description string         `json:"description,omitempty"`
	Capture     *bool          `json:"capture,omitempty"`
}

type customerJSON struct {
	Object      string `json:"object"`
	ID          string `json:"id"`
	Email       string `json:"email"`
	DefaultCard string `json:"default_card"`
}

type createCustomerJSON struct {
	Email       string `json:"email,omitempty"`
	Card        string `json:"card,omitempty"`
	Description string `json:"description,omitempty"`
}

type searchJSON struct {
	Object string       `json:"object"`
	Data   []chargeJSON `json:"data"`
}

func decodeCharge(data []byte) (*Charge, error) {
	var cj chargeJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, fmt.Errorf("decode charge: %w", err)
	}
	if cj.Object != "" && cj.Object != "charge" {
		return nil, fmt.Errorf("decode charge: unexpected object %q", cj.Object)
	}
	ch := cj.toCharge()
	return &ch, nil
}

func (cj chargeJSON) toCharge() Charge {
	ch := Charge{
		ID:           cj.ID,
		Status:       ChargeStatus(cj.Status),
		Amount:       cj.Amount,
		Currency:     cj.Currency,
		AuthorizeURI: cj.AuthorizeURI,
		Source:       decodeSource(cj.Source),
		Metadata:     cj.Metadata,
	}
	if cj.FailureCode != nil {
		ch.FailureCode = *cj.FailureCode
	}
	if cj.FailureMessage != nil {
		ch.FailureMessage = *cj.FailureMessage
	}
	if id, ok := cj.Metadata[MetadataOrderID].(string); ok {
		ch.OrderID = id
	}
	return ch
}

func decodeSource(s *sourceJSON) Source {
	switch {
	case s == nil || s.Type == "":
		return Source{Kind: SourceNone}
	case s.Type == sourceTypeEcontext:
		return Source{Kind: SourceEcontext, Type: s.Type}
	case !s.References.empty():
		return Source{Kind: SourceBillPayment, Type: s.Type, References: s.References}
	default:
		return Source{Kind: SourceOther, Type: s.Type}
	}
}
