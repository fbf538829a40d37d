package patent

import (
	"encoding/json"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertInDomain(t *testing.T, r Record) {
	t.Helper()
	assert.NotEmpty(t, r.ID)
	assert.NotEmpty(t, r.Title)
	assert.NotEmpty(t, r.Abstract)
	assert.NotEmpty(t, r.Assignee)
	assert.NotEmpty(t, r.FilingDate)
	assert.NotEmpty(t, r.ExpirationDate)
	assert.NotEmpty(t, r.UKReplicabilityReason)
	assert.GreaterOrEqual(t, r.UKReplicabilityScore, 0)
	assert.LessOrEqual(t, r.UKReplicabilityScore, 100)
	assert.GreaterOrEqual(t, r.RiskScore, 0)
	assert.LessOrEqual(t, r.RiskScore, 100)
	assert.True(t, slices.Contains(Statuses, r.Status), "status %q", r.Status)
	assert.True(t, slices.Contains(OpportunityTypes, r.OpportunityType), "opportunity %q", r.OpportunityType)
	assert.True(t, slices.Contains(Feasibilities, r.ReverseEngineeringFeasibility), "feasibility %q", r.ReverseEngineeringFeasibility)
	assert.NotNil(t, r.Jurisdictions)
	assert.Nil(t, r.PriorArtReport)
}

func TestSanitizeEmptyRecordUsesDefaults(t *testing.T) {
	r := Sanitize(Raw{})
	assertInDomain(t, r)
	assert.Equal(t, DefaultID, r.ID)
	assert.Equal(t, DefaultTitle, r.Title)
	assert.Equal(t, DefaultAbstract, r.Abstract)
	assert.Equal(t, DefaultAssignee, r.Assignee)
	assert.Equal(t, DefaultDate, r.FilingDate)
	assert.Equal(t, DefaultDate, r.ExpirationDate)
	assert.Equal(t, StatusActive, r.Status)
	assert.Empty(t, r.Jurisdictions)
	assert.Equal(t, 0, r.UKReplicabilityScore)
	assert.Equal(t, 50, r.RiskScore)
	assert.Equal(t, DefaultReason, r.UKReplicabilityReason)
	assert.Equal(t, OpportunityRiskHigh, r.OpportunityType)
	assert.Equal(t, FeasibilityMedium, r.ReverseEngineeringFeasibility)
	assert.False(t, r.IsTradeSecretCandidate)
}

func TestSanitizeBatteryScenario(t *testing.T) {
	r := Sanitize(Raw{"id": "US123", "ukReplicabilityScore": 150.0, "status": "bogus"})
	assert.Equal(t, "US123", r.ID)
	assert.Equal(t, 100, r.UKReplicabilityScore)
	assert.Equal(t, StatusActive, r.Status)
}

func TestSanitizeHostileInputsStayInDomain(t *testing.T) {
	cases := map[string]Raw{
		"nil map":        nil,
		"null fields":    {"id": nil, "title": nil, "status": nil, "riskScore": nil, "jurisdictions": nil},
		"wrong types":    {"id": 42.0, "title": []any{"x"}, "status": 3.0, "jurisdictions": "GB", "ukReplicabilityScore": map[string]any{}},
		"out of range":   {"ukReplicabilityScore": -40.0, "riskScore": 1e9},
		"non finite":     {"ukReplicabilityScore": math.Inf(1), "riskScore": math.NaN()},
		"blank strings":  {"id": "   ", "assignee": "", "opportunityType": " "},
		"numeric string": {"ukReplicabilityScore": "87.6", "riskScore": "abc"},
		"nested garbage": {"jurisdictions": []any{"GB", nil, map[string]any{"x": 1}, 7.0, true}},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() { assertInDomain(t, Sanitize(raw)) })
		})
	}
}

func TestSanitizeCoercesNumbers(t *testing.T) {
	r := Sanitize(Raw{"ukReplicabilityScore": "87.6", "riskScore": -5.0})
	assert.Equal(t, 88, r.UKReplicabilityScore)
	assert.Equal(t, 0, r.RiskScore)

	r = Sanitize(Raw{"riskScore": 0.0})
	assert.Equal(t, DefaultRiskScore, r.RiskScore, "zero risk is treated as absent")

	r = Sanitize(Raw{"riskScore": json.Number("73")})
	assert.Equal(t, 73, r.RiskScore)
}

func TestSanitizeClampsInfinities(t *testing.T) {
	r := Sanitize(Raw{"ukReplicabilityScore": math.Inf(1), "riskScore": math.Inf(-1)})
	assert.Equal(t, 100, r.UKReplicabilityScore)
	assert.Equal(t, 0, r.RiskScore)

	r = Sanitize(Raw{"ukReplicabilityScore": json.Number("1e400"), "riskScore": "-1e400"})
	assert.Equal(t, 100, r.UKReplicabilityScore)
	assert.Equal(t, 0, r.RiskScore)

	r = Sanitize(Raw{"ukReplicabilityScore": math.NaN(), "riskScore": math.NaN()})
	assert.Equal(t, DefaultReplicScore, r.UKReplicabilityScore)
	assert.Equal(t, DefaultRiskScore, r.RiskScore)
}

func TestSanitizeKeepsScalarIDs(t *testing.T) {
	cases := map[string]struct {
		id   any
		want string
	}{
		"number":      {7654321.0, "7654321"},
		"json number": {json.Number("1234"), "1234"},
		"string":      {" US99 ", "US99"},
		"zero":        {0.0, DefaultID},
		"false":       {false, DefaultID},
		"object":      {map[string]any{"v": 1}, DefaultID},
		"array":       {[]any{"US1"}, DefaultID},
		"infinite":    {math.Inf(1), DefaultID},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sanitize(Raw{"id": tc.id}).ID)
		})
	}
}

func TestSanitizeTextFieldsStayStringOnly(t *testing.T) {
	r := Sanitize(Raw{"title": 42.0, "abstract": true, "assignee": 7.0})
	assert.Equal(t, DefaultTitle, r.Title)
	assert.Equal(t, DefaultAbstract, r.Abstract)
	assert.Equal(t, DefaultAssignee, r.Assignee)
}

func TestSanitizeKeepsValidEnumsAndJurisdictions(t *testing.T) {
	r := Sanitize(Raw{
		"status":                        "Expiring Soon",
		"opportunityType":               "Territorial Gap",
		"reverseEngineeringFeasibility": "Low",
		"jurisdictions":                 []any{"US", " EP ", "", 3.0, nil},
		"isTradeSecretCandidate":        true,
	})
	assert.Equal(t, StatusExpiringSoon, r.Status)
	assert.Equal(t, OpportunityTerritorialGap, r.OpportunityType)
	assert.Equal(t, FeasibilityLow, r.ReverseEngineeringFeasibility)
	assert.Equal(t, []string{"US", "EP", "3"}, r.Jurisdictions)
	assert.True(t, r.IsTradeSecretCandidate)
}

func TestSanitizeBooleanCoercion(t *testing.T) {
	for raw, want := range map[any]bool{
		"false": false,
		"true":  true,
		"yes":   true,
		"":      false,
		1.0:     true,
		0.0:     false,
	} {
		assert.Equal(t, want, Sanitize(Raw{"isTradeSecretCandidate": raw}).IsTradeSecretCandidate, "input %#v", raw)
	}
}

func TestSanitizeIgnoresIncomingPriorArt(t *testing.T) {
	r := Sanitize(Raw{"priorArtReport": "injected"})
	assert.Nil(t, r.PriorArtReport)
}

func TestRawFromNonObject(t *testing.T) {
	assert.Empty(t, RawFrom("string"))
	assert.Empty(t, RawFrom([]any{1.0}))
	assert.Equal(t, Raw{"id": "x"}, RawFrom(map[string]any{"id": "x"}))
}
