package middleware

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "fiirank/internal/errors"
)

// QueryDecoder fills a struct from URL query parameters and validates it.
// Fields are matched by their `query` tag; supported kinds are string, int,
// float64 and bool. Validation errors name the query parameter.
type QueryDecoder struct {
	validator *validator.Validate
}

// NewQueryDecoder creates a decoder with a validator that reports query
// parameter names.
func NewQueryDecoder() *QueryDecoder {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &QueryDecoder{validator: v}
}

// Decode parses q into dst, a pointer to a struct, and validates the result.
// Malformed values and failed rules are returned as *errors.APIError.
func (d *QueryDecoder) Decode(q url.Values, dst any) error {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()

	var bad []apierrors.ValidationError
	for i := 0; i < rt.NumField(); i++ {
		name := strings.SplitN(rt.Field(i).Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" || !q.Has(name) {
			continue
		}
		raw := strings.TrimSpace(q.Get(name))
		field := rv.Field(i)

		var err error
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int64:
			var n int64
			if n, err = strconv.ParseInt(raw, 10, 64); err == nil {
				field.SetInt(n)
			}
		case reflect.Float64:
			var f float64
			if f, err = strconv.ParseFloat(raw, 64); err == nil {
				field.SetFloat(f)
			}
		case reflect.Bool:
			var b bool
			if b, err = strconv.ParseBool(raw); err == nil {
				field.SetBool(b)
			}
		}
		if err != nil {
			bad = append(bad, apierrors.ValidationError{Field: name, Message: "malformed value " + strconv.Quote(raw)})
		}
	}
	if len(bad) > 0 {
		return apierrors.NewValidationErrors(bad)
	}

	if err := d.validator.Struct(dst); err != nil {
		return apierrors.FromValidator(err)
	}
	return nil
}
