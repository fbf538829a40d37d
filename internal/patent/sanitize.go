package patent

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Raw is one untrusted record candidate as decoded from a model response.
// Only Sanitize may read it.
type Raw map[string]any

// RawFrom converts a decoded JSON value into a Raw record. Anything that is
// not a JSON object becomes an empty record, which Sanitize fills with defaults.
func RawFrom(v any) Raw {
	switch m := v.(type) {
	case Raw:
		return m
	case map[string]any:
		return Raw(m)
	default:
		return Raw{}
	}
}

// Sanitize normalizes a raw candidate into a Record. It never fails: every
// missing or malformed field falls back to its default.
func Sanitize(raw Raw) Record {
	return Record{
		ID:                            idField(raw),
		Title:                         stringField(raw, FieldTitle, DefaultTitle),
		Abstract:                      stringField(raw, FieldAbstract, DefaultAbstract),
		Assignee:                      stringField(raw, FieldAssignee, DefaultAssignee),
		FilingDate:                    stringField(raw, FieldFilingDate, DefaultDate),
		ExpirationDate:                stringField(raw, FieldExpirationDate, DefaultDate),
		Status:                        enumField(raw, FieldStatus, Statuses, StatusActive),
		Jurisdictions:                 stringsField(raw, FieldJurisdictions),
		UKReplicabilityScore:          scoreField(raw, FieldReplicabilityScore, DefaultReplicScore),
		UKReplicabilityReason:         stringField(raw, FieldReplicability, DefaultReason),
		OpportunityType:               enumField(raw, FieldOpportunityType, OpportunityTypes, OpportunityRiskHigh),
		RiskScore:                     scoreField(raw, FieldRiskScore, DefaultRiskScore),
		ReverseEngineeringFeasibility: enumField(raw, FieldFeasibility, Feasibilities, FeasibilityMedium),
		IsTradeSecretCandidate:        boolField(raw, FieldTradeSecret),
	}
}

func stringField(raw Raw, key, fallback string) string {
	s, ok := raw[key].(string)
	if !ok {
		return fallback
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

// idField accepts any scalar id, so numeric ids keep their value. Empty,
// zero and false ids fall back to DefaultID.
func idField(raw Raw) string {
	switch x := raw[FieldID].(type) {
	case bool:
		if !x {
			return DefaultID
		}
	case float64:
		if x == 0 {
			return DefaultID
		}
	}
	if s, ok := scalarString(raw[FieldID]); ok {
		return s
	}
	return DefaultID
}

func enumField[T ~string](raw Raw, key string, allowed []T, fallback T) T {
	s, ok := raw[key].(string)
	if !ok {
		return fallback
	}
	v := T(strings.TrimSpace(s))
	if slices.Contains(allowed, v) {
		return v
	}
	return fallback
}

func stringsField(raw Raw, key string) []string {
	out := []string{}
	switch items := raw[key].(type) {
	case []string:
		for _, s := range items {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range items {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		return x, x != ""
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// scoreField coerces a numeric field, treating zero, NaN and non-numeric
// values as absent, then clamps to [0,100]. Infinities clamp to the bounds.
func scoreField(raw Raw, key string, fallback int) int {
	n, ok := toNumber(raw[key])
	if !ok || n == 0 {
		return fallback
	}
	n = math.Round(math.Min(100, math.Max(0, n)))
	return int(n)
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, ok := parseFloat(string(x))
		if !ok {
			return 0, false
		}
		n = f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, ok := parseFloat(s)
		if !ok {
			return 0, false
		}
		n = f
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
	if math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// parseFloat keeps out-of-range values as ±Inf so they clamp like any other
// large number.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

func boolField(raw Raw, key string) bool {
	switch x := raw[key].(type) {
	case bool:
		return x
	case string:
		s := strings.TrimSpace(x)
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return s != ""
	case nil:
		return false
	default:
		n, ok := toNumber(x)
		return ok && n != 0
	}
}
