package fund

import "fiirank/internal/numeric"

// Record is one fund after normalization. Numeric attributes are addressed by
// Field; text columns outside the schema are kept in Extra for export.
type Record struct {
	ID     string
	Sector string
	Extra  map[string]string

	values [fieldCount]numeric.Value
}

// Get returns the value of f, absent for unknown fields.
func (r Record) Get(f Field) numeric.Value {
	if !f.Valid() {
		return numeric.Absent()
	}
	return r.values[f]
}

// Set stores v for f. Unknown fields are ignored.
func (r *Record) Set(f Field, v numeric.Value) {
	if f.Valid() {
		r.values[f] = v
	}
}

// With returns a copy of r with f set to v.
func (r Record) With(f Field, v numeric.Value) Record {
	r.Set(f, v)
	return r
}

// MissingRequired lists the required fields that are absent.
func (r Record) MissingRequired() []Field {
	var missing []Field
	for _, f := range RequiredFields() {
		if r.values[f].IsAbsent() {
			missing = append(missing, f)
		}
	}
	return missing
}

// Scored is a record plus the population-dependent scoring attributes.
type Scored struct {
	Record

	YieldRank             numeric.Value
	VolatilityRank        numeric.Value
	VolatilityInverseRank numeric.Value
	ValuationSignal       numeric.Value

	// Score is meaningful only when HasScore is true.
	Score    int
	HasScore bool

	// Position is the 1-based rank assigned after sorting; zero before.
	Position int
}
