package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Locale describes how numbers are written in the source text.
type Locale struct {
	Decimal   rune
	Thousands rune
}

// BrazilianPortuguese is the pt_BR convention: "1.234,56".
var BrazilianPortuguese = Locale{Decimal: ',', Thousands: '.'}

// Parser converts locale-formatted text into Values. It holds no global state
// and is safe for concurrent use.
type Parser struct {
	locale Locale
}

// NewParser returns a parser for the given locale.
func NewParser(locale Locale) *Parser {
	return &Parser{locale: locale}
}

// Locale returns the parser configuration.
func (p *Parser) Locale() Locale { return p.locale }

// Parse converts raw to a number. Empty or malformed text yields an absent
// Value, never an error.
//
// When normalizeFractions is set and raw carries no decimal separator the
// result is divided by 100: the source renders some fixed-point fields without
// their separator ("1234" means 12.34).
func (p *Parser) Parse(raw string, normalizeFractions bool) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}
	}

	d, ok := p.decimal(s)
	if !ok {
		return Value{}
	}
	if normalizeFractions && !strings.ContainsRune(s, p.locale.Decimal) {
		d = d.Shift(-2)
	}
	return Of(d.InexactFloat64())
}

// ParsePercent strips a trailing "%" marker and parses the remainder. The
// result stays in percent units; callers decide whether to convert.
func (p *Parser) ParsePercent(raw string, normalizeFractions bool) Value {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	return p.Parse(s, normalizeFractions)
}

func (p *Parser) decimal(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case p.locale.Thousands:
			continue
		case p.locale.Decimal:
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
