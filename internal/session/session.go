package session

// maxPendingOrders bounds how many unsettled orders a session remembers.
const maxPendingOrders = 5

// Session is the per-request state of one browser: its cart, the orders
// placed for that cart that are not settled yet, and the notices to show on
// the next rendered page. Handlers load it, mutate it and save it before
// writing the response.
type Session struct {
	ID            string   `json:"-"`
	Cart          []string `json:"cart"`
	PendingOrders []string `json:"pending_orders,omitempty"`
	Flashes       []string `json:"flashes,omitempty"`
}

func (s *Session) AddFlash(msg string) {
	s.Flashes = append(s.Flashes, msg)
}

// PopFlashes returns pending notices and clears them.
func (s *Session) PopFlashes() []string {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// AddPendingOrder remembers that orderID was placed for the current cart.
// Only the newest orders are kept.
func (s *Session) AddPendingOrder(orderID string) {
	if s.HasPendingOrder(orderID) {
		return
	}
	s.PendingOrders = append(s.PendingOrders, orderID)
	if n := len(s.PendingOrders); n > maxPendingOrders {
		s.PendingOrders = append([]string(nil), s.PendingOrders[n-maxPendingOrders:]...)
	}
}

func (s *Session) HasPendingOrder(orderID string) bool {
	for _, id := range s.PendingOrders {
		if id == orderID {
			return true
		}
	}
	return false
}
