package orders

// Status is the last observed outcome of an order's charge.
type Status string

const (
	StatusCreated               Status = "CREATED"
	StatusPendingRedirect       Status = "PENDING_REDIRECT"
	StatusPendingExternalAction Status = "PENDING_EXTERNAL_ACTION"
	StatusSuccessful            Status = "SUCCESSFUL"
	StatusExpired               Status = "EXPIRED"
	StatusFailed                Status = "FAILED"
	StatusUnknown               Status = "UNKNOWN"
)

// PendingRedirect is never re-entered: the customer goes through the
// gateway's authorization page at most once.
var validNext = map[Status]map[Status]bool{
	StatusCreated: {
		StatusPendingRedirect: true, StatusPendingExternalAction: true, StatusSuccessful: true,
		StatusExpired: true, StatusFailed: true, StatusUnknown: true,
	},
	StatusPendingRedirect: {
		StatusPendingExternalAction: true, StatusSuccessful: true,
		StatusExpired: true, StatusFailed: true, StatusUnknown: true,
	},
	StatusPendingExternalAction: {StatusSuccessful: true, StatusExpired: true, StatusFailed: true, StatusUnknown: true},
	StatusUnknown:               {StatusPendingExternalAction: true, StatusSuccessful: true, StatusExpired: true, StatusFailed: true},
	StatusSuccessful:            {},
	StatusExpired:               {},
	StatusFailed:                {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further observation can change the order.
func (s Status) Terminal() bool {
	return s == StatusSuccessful || s == StatusExpired || s == StatusFailed
}

// ClearsCart reports whether reaching s settles the customer's cart.
func (s Status) ClearsCart() bool {
	return s == StatusSuccessful || s == StatusPendingExternalAction
}
