package catalog

import (
	"io/fs"
	"path"
	"sort"
	"strings"
)

// DefaultPrices is the store's price table in minor units of the store currency.
var DefaultPrices = map[string]int64{
	"nuts.jpg":  3000,
	"bolts.jpg": 2000,
}

type Item struct {
	ID         string
	PriceMinor int64
}

// Catalog lists the item images found in an asset directory and prices them
// from a fixed table.
type Catalog struct {
	assets fs.FS
	prices map[string]int64
}

func New(assets fs.FS, prices map[string]int64) *Catalog {
	cp := make(map[string]int64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &Catalog{assets: assets, prices: cp}
}

// Price reports the unit price of id. Unknown ids are not priced.
func (c *Catalog) Price(id string) (int64, bool) {
	p, ok := c.prices[id]
	return p, ok
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.prices[id]
	return ok
}

// List returns the priced *.jpg assets sorted by id. Images without a price
// are not for sale and are left out.
func (c *Catalog) List() ([]Item, error) {
	entries, err := fs.ReadDir(c.assets, ".")
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(path.Ext(e.Name()), ".jpg") {
			continue
		}
		if p, ok := c.prices[e.Name()]; ok {
			out = append(out, Item{ID: e.Name(), PriceMinor: p})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
