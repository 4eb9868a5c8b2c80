package upstream

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// rateFields is the ordered candidate list for best-effort numeric
// extraction. The historical upstreams disagreed on field names and some
// renamed them between versions, so the extractor probes them in a fixed,
// documented order instead of trusting any single schema.
var rateFields = []string{
	"lastFundingRate",
	"fundingRate",
	"openInterest",
	"value",
	"rate",
}

// ExtractRate pulls a numeric value out of a defensively parsed JSON body.
//
// Probe order: the candidate fields on the top-level object, then the same
// fields under a "data" wrapper object, then the first element of a
// top-level (or "data"-wrapped) array. Numbers encoded as JSON strings are
// accepted. Returns ok == false when nothing numeric is found.
func ExtractRate(parsed any) (decimal.Decimal, bool) {
	switch v := parsed.(type) {
	case map[string]any:
		for _, field := range rateFields {
			if raw, exists := v[field]; exists {
				if d, ok := toDecimal(raw); ok {
					return d, true
				}
			}
		}
		if inner, exists := v["data"]; exists {
			return ExtractRate(inner)
		}
	case []any:
		if len(v) > 0 {
			return ExtractRate(v[0])
		}
	default:
		return toDecimal(parsed)
	}
	return decimal.Decimal{}, false
}

func toDecimal(raw any) (decimal.Decimal, bool) {
	switch n := raw.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		if _, err := strconv.ParseFloat(n, 64); err != nil {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}

// AppError reports whether an HTTP-200 body carries an application-level
// error flag: success == false, a non-zero numeric "code", or a non-empty
// "error" field. These are terminal failures and are never retried.
func AppError(parsed any) bool {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return false
	}

	if success, exists := obj["success"]; exists {
		if b, ok := success.(bool); ok && !b {
			return true
		}
	}
	if code, exists := obj["code"]; exists {
		if n, ok := code.(float64); ok && n != 0 {
			return true
		}
		if s, ok := code.(string); ok && s != "" && s != "0" {
			return true
		}
	}
	if errVal, exists := obj["error"]; exists {
		if s, ok := errVal.(string); ok && s != "" {
			return true
		}
		if m, ok := errVal.(map[string]any); ok && len(m) > 0 {
			return true
		}
	}
	return false
}
