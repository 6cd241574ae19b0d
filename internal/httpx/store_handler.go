package httpx

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/ariefcatur/go-omise-storefront/internal/cart"
	"github.com/ariefcatur/go-omise-storefront/internal/catalog"
	"github.com/ariefcatur/go-omise-storefront/internal/logging"
	"github.com/go-chi/chi/v5"
)

const storeTitle = "Omise Go Storefront"

// StoreHandler serves the catalog page, the add-to-cart form and the static
// files.
type StoreHandler struct {
	Catalog  *catalog.Catalog
	Sessions *Sessions
	Pages    *Pages
	Assets   fs.FS // item images
	Static   fs.FS // favicon
	Log      *logging.Logger
}

func (h *StoreHandler) Register(r chi.Router) {
	r.Get("/", h.index)
	r.Post("/add", h.add)
	r.Get("/favicon.ico", h.favicon)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(h.Assets))))
}

func (h *StoreHandler) index(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(w, r)
	if err != nil {
		h.fail(w, "load_session", err)
		return
	}
	items, err := h.Catalog.List()
	if err != nil {
		h.fail(w, "list_catalog", err)
		return
	}
	cv, err := newCartView(cart.New(sess, h.Catalog))
	if err != nil {
		h.fail(w, "price_cart", err)
		return
	}

	flashes := sess.PopFlashes()
	if len(flashes) > 0 {
		if err := h.Sessions.Save(r.Context(), sess); err != nil {
			h.Log.Warn(logging.Fields{Step: "save_session", Error: err.Error()})
		}
	}
	if err := h.Pages.Render(w, http.StatusOK, "store", pageData{
		Title:   storeTitle,
		Flashes: flashes,
		Items:   items,
		Cart:    cv,
	}); err != nil {
		h.Log.Error(logging.Fields{Step: "render", Error: err.Error()})
	}
}

func (h *StoreHandler) add(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(w, r)
	if err != nil {
		h.fail(w, "load_session", err)
		return
	}
	item := r.PostFormValue("item")
	if h.Catalog.Has(item) {
		cart.New(sess, h.Catalog).Add(item)
	} else {
		h.Log.Warn(logging.Fields{Step: "add", Message: "unknown item " + item})
		sess.AddFlash("That item is not for sale.")
	}
	if err := h.Sessions.Save(r.Context(), sess); err != nil {
		h.fail(w, "save_session", err)
		return
	}
	seeOther(w, r, "/")
}

func (h *StoreHandler) favicon(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.Static, "favicon.ico")
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, "favicon", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func (h *StoreHandler) fail(w http.ResponseWriter, step string, err error) {
	h.Log.Error(logging.Fields{Step: step, Error: err.Error()})
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
