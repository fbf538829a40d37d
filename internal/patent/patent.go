// Package patent holds the sanitized patent-opportunity record, the sanitizer
// that is the only reader of raw model output, and the view projector.
package patent

// Status is the legal status of a patent as reported by the model.
type Status string

const (
	StatusActive       Status = "Active"
	StatusExpired      Status = "Expired"
	StatusExpiringSoon Status = "Expiring Soon"
)

// Statuses lists the accepted values in schema order.
var Statuses = []Status{StatusActive, StatusExpired, StatusExpiringSoon}

// OpportunityType classifies how a UK developer could exploit a patent.
type OpportunityType string

const (
	OpportunityPublicDomain   OpportunityType = "Public Domain"
	OpportunityLicensing      OpportunityType = "Licensing"
	OpportunityRiskHigh       OpportunityType = "Risk High"
	OpportunityTerritorialGap OpportunityType = "Territorial Gap"
)

var OpportunityTypes = []OpportunityType{
	OpportunityPublicDomain,
	OpportunityLicensing,
	OpportunityRiskHigh,
	OpportunityTerritorialGap,
}

// Feasibility rates how practical it is to reverse engineer the invention.
type Feasibility string

const (
	FeasibilityHigh   Feasibility = "High"
	FeasibilityMedium Feasibility = "Medium"
	FeasibilityLow    Feasibility = "Low"
)

var Feasibilities = []Feasibility{FeasibilityHigh, FeasibilityMedium, FeasibilityLow}

// Defaults applied by Sanitize when a field is missing or malformed.
const (
	DefaultID          = "UNKNOWN_ID"
	DefaultTitle       = "Untitled Patent Analysis"
	DefaultAbstract    = "No abstract available for this asset."
	DefaultAssignee    = "Unknown Entity"
	DefaultDate        = "N/A"
	DefaultReason      = "Automated analysis unavailable."
	DefaultReplicScore = 0
	DefaultRiskScore   = 50
)

// Raw field names, shared by the sanitizer and the response schema.
const (
	FieldID                 = "id"
	FieldTitle              = "title"
	FieldAbstract           = "abstract"
	FieldAssignee           = "assignee"
	FieldFilingDate         = "filingDate"
	FieldExpirationDate     = "expirationDate"
	FieldStatus             = "status"
	FieldJurisdictions      = "jurisdictions"
	FieldReplicabilityScore = "ukReplicabilityScore"
	FieldReplicability      = "ukReplicabilityReason"
	FieldOpportunityType    = "opportunityType"
	FieldRiskScore          = "riskScore"
	FieldFeasibility        = "reverseEngineeringFeasibility"
	FieldTradeSecret        = "isTradeSecretCandidate"
)

// Record is a sanitized patent-opportunity record. Every Record held by the
// session store was produced by Sanitize.
type Record struct {
	ID                            string          `json:"id"`
	Title                         string          `json:"title"`
	Abstract                      string          `json:"abstract"`
	Assignee                      string          `json:"assignee"`
	FilingDate                    string          `json:"filingDate"`
	ExpirationDate                string          `json:"expirationDate"`
	Status                        Status          `json:"status"`
	Jurisdictions                 []string        `json:"jurisdictions"`
	UKReplicabilityScore          int             `json:"ukReplicabilityScore"`
	UKReplicabilityReason         string          `json:"ukReplicabilityReason"`
	OpportunityType               OpportunityType `json:"opportunityType"`
	RiskScore                     int             `json:"riskScore"`
	ReverseEngineeringFeasibility Feasibility     `json:"reverseEngineeringFeasibility"`
	IsTradeSecretCandidate        bool            `json:"isTradeSecretCandidate"`

	// PriorArtReport is absent until a prior-art dossier has been attached.
	PriorArtReport *string `json:"priorArtReport,omitempty"`
	// PriorArtFallback marks a dossier that was substituted after the model call failed.
	PriorArtFallback bool `json:"priorArtFallback,omitempty"`
}

// HasPriorArt reports whether a dossier is attached.
func (r Record) HasPriorArt() bool { return r.PriorArtReport != nil }

// Clone returns a copy that shares no slices or pointers with r.
func (r Record) Clone() Record {
	out := r
	if r.Jurisdictions != nil {
		out.Jurisdictions = append([]string(nil), r.Jurisdictions...)
	}
	if r.PriorArtReport != nil {
		s := *r.PriorArtReport
		out.PriorArtReport = &s
	}
	return out
}

// WithPriorArt returns a copy of r carrying the given dossier.
func (r Record) WithPriorArt(report string, fallback bool) Record {
	out := r.Clone()
	out.PriorArtReport = &report
	out.PriorArtFallback = fallback
	return out
}

// CloneAll deep-copies a slice of records.
func CloneAll(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
