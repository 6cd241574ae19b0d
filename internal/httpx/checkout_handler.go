package httpx

import (
	"net"
	"net/http"

	"github.com/ariefcatur/go-omise-storefront/internal/cart"
	"github.com/ariefcatur/go-omise-storefront/internal/catalog"
	"github.com/ariefcatur/go-omise-storefront/internal/checkout"
	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/ariefcatur/go-omise-storefront/internal/orders"
	"github.com/ariefcatur/go-omise-storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type CheckoutHandler struct {
	Service   *checkout.Service
	Catalog   *catalog.Catalog
	Sessions  *Sessions
	Pages     *Pages
	PublicKey string
	Currency  string
	// Scheme is used for the absolute return URI handed to the gateway.
	Scheme string
	Log    *logging.Logger
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Get("/checkout", h.form)
	r.Post("/charge", h.charge)
	r.Get("/orders/{orderId}/complete", h.complete)
}

func (h *CheckoutHandler) form(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(w, r)
	if err != nil {
		h.fail(w, "load_session", err)
		return
	}
	cv, err := newCartView(cart.New(sess, h.Catalog))
	if err != nil {
		h.fail(w, "price_cart", err)
		return
	}
	flashes := sess.PopFlashes()
	if len(flashes) > 0 {
		h.save(r, sess)
	}
	if err := h.Pages.Render(w, http.StatusOK, "checkout", pageData{
		Title:     "Checkout",
		Flashes:   flashes,
		Cart:      cv,
		PublicKey: h.PublicKey,
		Currency:  h.Currency,
	}); err != nil {
		h.Log.Error(logging.Fields{Step: "render", Error: err.Error()})
	}
}

func (h *CheckoutHandler) charge(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(w, r)
	if err != nil {
		h.fail(w, "load_session", err)
		return
	}
	in := checkout.ChargeInput{
		Nonce: gateway.PaymentNonce{
			Card:     r.PostFormValue("omiseToken"),
			Source:   r.PostFormValue("omiseSource"),
			Customer: r.PostFormValue("customer"),
		},
		Email:   r.PostFormValue("email"),
		IP:      clientIP(r),
		BaseURL: h.Scheme + "://" + r.Host,
		TraceID: middleware.GetReqID(r.Context()),
	}
	out, err := h.Service.PlaceCharge(r.Context(), sess, in)
	h.respond(w, r, sess, out, err)
}

func (h *CheckoutHandler) complete(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(w, r)
	if err != nil {
		h.fail(w, "load_session", err)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	out, err := h.Service.Complete(r.Context(), sess, orderID, middleware.GetReqID(r.Context()))
	h.respond(w, r, sess, out, err)
}

// respond turns a checkout result into the next page. Every failure goes
// back to /checkout with a notice; gateway detail stays in the log.
func (h *CheckoutHandler) respond(w http.ResponseWriter, r *http.Request, sess *session.Session, out checkout.Outcome, err error) {
	if err != nil {
		sess.AddFlash(checkout.ErrorNotice(out.OrderID, err))
		h.save(r, sess)
		seeOther(w, r, "/checkout")
		return
	}

	switch out.Status {
	case orders.StatusPendingRedirect:
		h.save(r, sess)
		seeOther(w, r, out.RedirectURI)
	case orders.StatusPendingExternalAction:
		h.save(r, sess)
		cv, _ := newCartView(cart.New(sess, h.Catalog))
		if err := h.Pages.Render(w, http.StatusOK, "pending", pageData{
			Title: "Complete your payment",
			Cart:  cv,
			Pending: &pendingView{
				Notice:      out.Notice(),
				OrderID:     out.OrderID,
				PaymentLink: out.PaymentLink,
				References:  out.References,
			},
		}); err != nil {
			h.Log.Error(logging.Fields{OrderID: out.OrderID, Step: "render", Error: err.Error()})
		}
	case orders.StatusSuccessful:
		sess.AddFlash(out.Notice())
		h.save(r, sess)
		seeOther(w, r, "/")
	default:
		sess.AddFlash(out.Notice())
		h.save(r, sess)
		seeOther(w, r, "/checkout")
	}
}

func (h *CheckoutHandler) save(r *http.Request, sess *session.Session) {
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		h.Log.Error(logging.Fields{Step: "save_session", Error: err.Error()})
	}
}

func (h *CheckoutHandler) fail(w http.ResponseWriter, step string, err error) {
	h.Log.Error(logging.Fields{Step: step, Error: err.Error()})
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// clientIP is the buyer address passed to the gateway. RealIP has already
// applied X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
