package cart

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-omise-storefront/internal/session"
)

// ErrUnknownItem is returned when the cart holds an id the price table does
// not know. Such items are never priced as free.
var ErrUnknownItem = errors.New("unknown item")

type Pricer interface {
	Price(id string) (int64, bool)
}

// Line is one grouped cart entry.
type Line struct {
	ItemID    string `json:"item"`
	Quantity  int    `json:"units"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

// Cart is a multiset of item ids kept in the caller's session.
type Cart struct {
	sess   *session.Session
	prices Pricer
}

func New(sess *session.Session, prices Pricer) *Cart {
	if sess.Cart == nil {
		sess.Cart = []string{}
	}
	return &Cart{sess: sess, prices: prices}
}

func (c *Cart) Add(itemID string) {
	c.sess.Cart = append(c.sess.Cart, itemID)
}

// Items groups the cart by item id in first-seen order.
func (c *Cart) Items() ([]Line, error) {
	idx := map[string]int{}
	var out []Line
	for _, id := range c.sess.Cart {
		if i, ok := idx[id]; ok {
			out[i].Quantity++
			out[i].LineTotal += out[i].UnitPrice
			continue
		}
		price, ok := c.prices.Price(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		idx[id] = len(out)
		out = append(out, Line{ItemID: id, Quantity: 1, UnitPrice: price, LineTotal: price})
	}
	return out, nil
}

func (c *Cart) Total() (int64, error) {
	lines, err := c.Items()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, l := range lines {
		total += l.LineTotal
	}
	return total, nil
}

// Snapshot is the cart as embedded in charge metadata under cart.items.
func (c *Cart) Snapshot() (map[string]any, error) {
	lines, err := c.Items()
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []Line{}
	}
	return map[string]any{"items": lines}, nil
}

// Empty clears the cart. Safe to call on an already empty cart.
func (c *Cart) Empty() {
	c.sess.Cart = []string{}
}

// Settle empties the cart when orderID was placed for it, and forgets every
// order pending on it. It reports whether the cart was settled; a second
// call for the same order is a no-op.
func (c *Cart) Settle(orderID string) bool {
	if !c.sess.HasPendingOrder(orderID) {
		return false
	}
	c.Empty()
	c.sess.PendingOrders = nil
	return true
}

func (c *Cart) IsEmpty() bool { return len(c.sess.Cart) == 0 }

// Count is the number of units in the cart.
func (c *Cart) Count() int { return len(c.sess.Cart) }
