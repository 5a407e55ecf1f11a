// Package numeric provides an optional float type and a locale-aware parser
// for the textual numbers found in Brazilian market tables.
//
// # Absence
//
// Value replaces NaN as the "no number" marker. The zero Value is absent and
// every arithmetic operation on an absent operand is absent too:
//
//	price := p.Parse("12,50", false) // 12.5
//	none := p.Parse("-", false)      // absent
//	price.Add(none).Present()        // false
//
// # Fraction scaling
//
// Some source columns are rendered as fixed-point integers with the decimal
// separator omitted. Parse with normalizeFractions=true divides such values
// by 100, but only when the text has no decimal separator:
//
//	p := numeric.NewParser(numeric.BrazilianPortuguese)
//	p.Parse("1234", true)  // 12.34
//	p.Parse("12,34", true) // 12.34
//	p.Parse("1234", false) // 1234
package numeric
