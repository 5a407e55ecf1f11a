package fund

import "fmt"

// Field identifies a numeric attribute of a fund.
type Field int

const (
	Price Field = iota
	DailyLiquidity
	PVP
	PVPA
	LastDividend
	DividendYield

	DY3MAccumulated
	DY6MAccumulated
	DY12MAccumulated
	DY3MAverage
	DY6MAverage
	DY12MAverage
	DYYear
	PriceChange
	PeriodReturn
	AccumulatedReturn
	NAVYield
	NAVChange
	NAVPeriodReturn
	NAVAccumulatedReturn

	Shareholders
	NetAssets
	BookValuePerShare
	Volatility

	Vacancy

	fieldCount
)

// Group decides how a column's text is parsed.
type Group int

const (
	// GroupPercent cells carry a "%" marker, use fraction scaling and are
	// stored as fractions.
	GroupPercent Group = iota
	// GroupNumber cells are parsed without fraction scaling.
	GroupNumber
	// GroupMoney cells use fraction scaling.
	GroupMoney
	// GroupEnrichment fields come from a secondary table, not the primary one.
	GroupEnrichment
)

func (g Group) String() string {
	switch g {
	case GroupPercent:
		return "percent"
	case GroupNumber:
		return "number"
	case GroupMoney:
		return "money"
	case GroupEnrichment:
		return "enrichment"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// NormalizeFractions reports whether the parser divides separator-less values by 100.
func (g Group) NormalizeFractions() bool {
	return g == GroupPercent || g == GroupMoney
}

// Column names shared by every source table after canonicalization.
const (
	ColumnID     = "fundos"
	ColumnSector = "setor"
)

// FieldDef describes one field of the schema.
type FieldDef struct {
	Field    Field
	Column   string
	Label    string
	Group    Group
	Required bool
	// Divisor is a fixed post-parse correction; zero means none.
	Divisor float64
}

var schema = [fieldCount]FieldDef{
	{Price, "preco_atual_(r$)", "Preço Atual (R$)", GroupNumber, true, 100},
	{DailyLiquidity, "liquidez_diaria_(r$)", "Liquidez Diária (R$)", GroupMoney, true, 0},
	{PVP, "p/vp", "P/VP", GroupMoney, true, 0},
	{PVPA, "p/vpa", "P/VPA", GroupMoney, true, 10},
	{LastDividend, "ultimo_dividendo", "Último Dividendo", GroupNumber, true, 0},
	{DividendYield, "dividend_yield", "Dividend Yield", GroupPercent, true, 0},

	{DY3MAccumulated, "dy_(3m)_acumulado", "DY (3M) Acumulado", GroupPercent, false, 0},
	{DY6MAccumulated, "dy_(6m)_acumulado", "DY (6M) Acumulado", GroupPercent, false, 0},
	{DY12MAccumulated, "dy_(12m)_acumulado", "DY (12M) Acumulado", GroupPercent, false, 0},
	{DY3MAverage, "dy_(3m)_media", "DY (3M) Média", GroupPercent, false, 0},
	{DY6MAverage, "dy_(6m)_media", "DY (6M) Média", GroupPercent, false, 0},
	{DY12MAverage, "dy_(12m)_media", "DY (12M) Média", GroupPercent, false, 0},
	{DYYear, "dy_ano", "DY Ano", GroupPercent, false, 0},
	{PriceChange, "variacao_preco", "Variação Preço", GroupPercent, false, 0},
	{PeriodReturn, "rentab._periodo", "Rentab. Período", GroupPercent, false, 0},
	{AccumulatedReturn, "rentab._acumulada", "Rentab. Acumulada", GroupPercent, false, 0},
	{NAVYield, "dy_patrimonial", "DY Patrimonial", GroupPercent, false, 0},
	{NAVChange, "variacao_patrimonial", "Variação Patrimonial", GroupPercent, false, 0},
	{NAVPeriodReturn, "rentab._patr._periodo", "Rentab. Patr. Período", GroupPercent, false, 0},
	{NAVAccumulatedReturn, "rentab._patr._acumulada", "Rentab. Patr. Acumulada", GroupPercent, false, 0},

	{Shareholders, "num._cotistas", "Num. Cotistas", GroupNumber, false, 0},
	{NetAssets, "patrimonio_liquido", "Patrimônio Líquido", GroupNumber, false, 0},
	{BookValuePerShare, "vpa", "VPA", GroupNumber, false, 100},
	{Volatility, "volatilidade", "Volatilidade", GroupMoney, false, 0},

	{Vacancy, "vacancia", "Vacância", GroupEnrichment, false, 0},
}

var byColumn = func() map[string]Field {
	m := make(map[string]Field, len(schema))
	for _, s := range schema {
		m[s.Column] = s.Field
	}
	return m
}()

// Schema returns every field definition in declaration order.
func Schema() []FieldDef {
	out := make([]FieldDef, len(schema))
	copy(out, schema[:])
	return out
}

// Fields returns every field in declaration order.
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// RequiredFields returns the fields that every normalized record must carry.
func RequiredFields() []Field {
	var out []Field
	for _, s := range schema {
		if s.Required {
			out = append(out, s.Field)
		}
	}
	return out
}

// Lookup resolves a canonical column name.
func Lookup(column string) (Field, bool) {
	f, ok := byColumn[column]
	return f, ok
}

// Def returns the schema entry for f.
func (f Field) Def() FieldDef {
	if !f.Valid() {
		return FieldDef{Field: f}
	}
	return schema[f]
}

// Valid reports whether f is a declared field.
func (f Field) Valid() bool { return f >= 0 && f < fieldCount }

// Column returns the canonical column name.
func (f Field) Column() string { return f.Def().Column }

// Label returns the display header used on export.
func (f Field) Label() string { return f.Def().Label }

func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return schema[f].Column
}
