package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_OnlyPricedImages(t *testing.T) {
	assets := fstest.MapFS{
		"nuts.jpg":   {Data: []byte("jpg")},
		"bolts.jpg":  {Data: []byte("jpg")},
		"washer.jpg": {Data: []byte("jpg")},
		"readme.txt": {Data: []byte("txt")},
		"sub/x.jpg":  {Data: []byte("jpg")},
	}
	c := New(assets, DefaultPrices)

	items, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []Item{
		{ID: "bolts.jpg", PriceMinor: 2000},
		{ID: "nuts.jpg", PriceMinor: 3000},
	}, items)
}

func TestPrice(t *testing.T) {
	c := New(fstest.MapFS{}, DefaultPrices)

	p, ok := c.Price("nuts.jpg")
	assert.True(t, ok)
	assert.Equal(t, int64(3000), p)

	_, ok = c.Price("free-lunch.jpg")
	assert.False(t, ok)
	assert.False(t, c.Has("free-lunch.jpg"))
}

func TestNew_CopiesPriceTable(t *testing.T) {
	prices := map[string]int64{"nuts.jpg": 3000}
	c := New(fstest.MapFS{}, prices)
	prices["nuts.jpg"] = 1

	p, _ := c.Price("nuts.jpg")
	assert.Equal(t, int64(3000), p)
}

func TestFormatter(t *testing.T) {
	f, err := NewFormatter("THB", "th_TH")
	require.NoError(t, err)

	assert.Equal(t, "THB", f.Currency())
	assert.Equal(t, "30.00", f.Major(3000).StringFixed(2))
	assert.Contains(t, f.Format(3000), "30")
}

func TestFormatter_ZeroDecimalCurrency(t *testing.T) {
	f, err := NewFormatter("JPY", "ja_JP")
	require.NoError(t, err)
	assert.Equal(t, "3000", f.Major(3000).String())
}

func TestFormatter_Invalid(t *testing.T) {
	_, err := NewFormatter("XXXX", "th_TH")
	assert.Error(t, err)

	_, err = NewFormatter("THB", "not a locale!")
	assert.Error(t, err)
}
