package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/session"
)

// Settler empties a session's cart when an order placed for it was settled
// by another request or a webhook.
type Settler interface {
	SettlePending(ctx context.Context, sess *session.Session) bool
}

// Sessions resolves the browser's session from its signed cookie.
type Sessions struct {
	Store   *session.Store
	Cookies *session.Cookies
	Orders  Settler // optional
	Log     *logging.Logger
}

// Load returns the caller's session, starting a new one when the cookie is
// missing, invalid, expired or points at a corrupt record. Redis failures are
// returned.
func (s *Sessions) Load(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if id, ok := s.Cookies.Read(r); ok {
		sess, err := s.Store.Load(r.Context(), id)
		switch {
		case err == nil:
			s.settle(r.Context(), sess)
			return sess, nil
		case errors.Is(err, session.ErrCorrupt):
			s.Log.Warn(logging.Fields{Step: "session", Message: "discarding corrupt session", Error: err.Error()})
			if derr := s.Store.Delete(r.Context(), id); derr != nil {
				return nil, derr
			}
		case !errors.Is(err, session.ErrNotFound):
			return nil, err
		}
	}

	sess := s.Store.New()
	if err := s.Cookies.Write(w, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Sessions) Save(ctx context.Context, sess *session.Session) error {
	return s.Store.Save(ctx, sess)
}

func (s *Sessions) settle(ctx context.Context, sess *session.Session) {
	if s.Orders == nil || len(sess.PendingOrders) == 0 {
		return
	}
	if s.Orders.SettlePending(ctx, sess) {
		if err := s.Store.Save(ctx, sess); err != nil {
			s.Log.Warn(logging.Fields{Step: "save_session", Error: err.Error()})
		}
	}
}
