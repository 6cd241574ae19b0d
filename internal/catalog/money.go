package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders minor-unit amounts for display in the store's locale.
type Formatter struct {
	unit    currency.Unit
	scale   int
	printer *message.Printer
}

func NewFormatter(code, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("store currency %q: %w", code, err)
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return nil, fmt.Errorf("store locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{unit: unit, scale: scale, printer: message.NewPrinter(tag)}, nil
}

// Currency is the ISO 4217 code sent to the gateway.
func (f *Formatter) Currency() string { return f.unit.String() }

// Major converts minor units (satang, cents) to the major unit.
func (f *Formatter) Major(minor int64) decimal.Decimal {
	return decimal.New(minor, int32(-f.scale))
}

func (f *Formatter) Format(minor int64) string {
	amount := f.Major(minor).InexactFloat64()
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(amount)))
}
