package httpx

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ariefcatur/go-omise-storefront/internal/cart"
	"github.com/ariefcatur/go-omise-storefront/internal/catalog"
	"github.com/ariefcatur/go-omise-storefront/internal/gateway"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"store", "checkout", "pending"}

// Pages holds the parsed HTML pages. Each page is rendered inside layout.
type Pages struct {
	pages map[string]*template.Template
}

func NewPages(money *catalog.Formatter) (*Pages, error) {
	funcs := template.FuncMap{"price": money.Format}
	p := &Pages{pages: map[string]*template.Template{}}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		p.pages[name] = t
	}
	return p, nil
}

// Render writes the page only after it executed completely, so a template
// error never leaves half a page behind.
func (p *Pages) Render(w http.ResponseWriter, status int, name string, data pageData) error {
	t, ok := p.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

type pageData struct {
	Title     string
	Flashes   []string
	Items     []catalog.Item
	Cart      cartView
	PublicKey string
	Currency  string
	Pending   *pendingView
}

type cartView struct {
	Lines []cart.Line
	Total int64
	Count int
}

type pendingView struct {
	Notice      string
	OrderID     string
	PaymentLink string
	References  *gateway.References
}

func newCartView(c *cart.Cart) (cartView, error) {
	lines, err := c.Items()
	if err != nil {
		return cartView{}, err
	}
	total, err := c.Total()
	if err != nil {
		return cartView{}, err
	}
	return cartView{Lines: lines, Total: total, Count: c.Count()}, nil
}
