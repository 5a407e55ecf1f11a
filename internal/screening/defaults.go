package screening

import (
	"fmt"

	"fiirank/internal/config"
	"fiirank/internal/fund"
)

// DefaultSectors is the lower-risk sector allow-list.
var DefaultSectors = []string{
	"Indefinido",
	"Papéis",
	"Fundo de Fundos",
	"Misto",
	"Imóveis Residenciais",
	"Imóveis Industriais e Logísticos",
	"Agências de Bancos",
	"Imóveis Comerciais - Outros",
	"Varejo",
}

// QuantileRule is a configurable quantile filter addressed by column name.
type QuantileRule struct {
	Column     string
	Percentile float64
	Mode       string
}

// DefaultQuantileRules is the relative part of the default sequence.
var DefaultQuantileRules = []QuantileRule{
	{Column: "patrimonio_liquido", Percentile: 0.25, Mode: string(Larger)},
	{Column: "dy_(12m)_acumulado", Percentile: 0.50, Mode: string(Larger)},
	{Column: "num._cotistas", Percentile: 0.25, Mode: string(Larger)},
	{Column: "liquidez_diaria_(r$)", Percentile: 0.25, Mode: string(Larger)},
	{Column: "volatilidade", Percentile: 0.80, Mode: string(Smaller)},
}

// DefaultFilters returns the standard screening sequence.
func DefaultFilters() []Filter {
	filters, err := Build(DefaultSectors, DefaultQuantileRules)
	if err != nil {
		panic(fmt.Sprintf("screening: default rules: %v", err))
	}
	return filters
}

// Build assembles the screening sequence: basic sanity thresholds, the sector
// allow-list, vacancy and price-to-book bounds, then the quantile rules in
// the given order.
func Build(sectors []string, rules []QuantileRule) ([]Filter, error) {
	filters := []Filter{
		GreaterThan(fund.NetAssets, 0),
		LessThan(fund.PVP, 10),
		GreaterThan(fund.Shareholders, 0),
		GreaterThan(fund.DY12MAverage, 0),
		SectorIn(sectors...),
		LessThanOrAbsent(fund.Vacancy, 0.25),
		Between(fund.PVPA, 0.9, 1.1),
	}

	for _, rule := range rules {
		f, ok := fund.Lookup(rule.Column)
		if !ok {
			return nil, fmt.Errorf("quantile rule: unknown column %q", rule.Column)
		}
		q := Quantile(f, rule.Percentile, Mode(rule.Mode))
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("quantile rule: %w", err)
		}
		filters = append(filters, q)
	}
	return filters, nil
}

// FromConfig builds the screening sequence from configuration. Empty sector
// or quantile lists keep the defaults.
func FromConfig(cfg config.ScreeningConfig) ([]Filter, error) {
	sectors := cfg.Sectors
	if len(sectors) == 0 {
		sectors = DefaultSectors
	}

	rules := DefaultQuantileRules
	if len(cfg.Quantiles) > 0 {
		rules = make([]QuantileRule, len(cfg.Quantiles))
		for i, q := range cfg.Quantiles {
			rules[i] = QuantileRule{Column: q.Column, Percentile: q.Percentile, Mode: q.Mode}
		}
	}
	return Build(sectors, rules)
}
