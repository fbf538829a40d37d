package agent

import (
	"fmt"
	"strings"

	"github.com/joelkehle/patentos/internal/gateway"
	"github.com/joelkehle/patentos/internal/patent"
)

// recordSchema constrains the landscape search response to an array of
// patent-opportunity objects.
var recordSchema = &gateway.Schema{
	Type: gateway.TypeArray,
	Items: &gateway.Schema{
		Type: gateway.TypeObject,
		Properties: map[string]*gateway.Schema{
			patent.FieldID:             {Type: gateway.TypeString, Description: "Patent Number (e.g., US7654321B2)"},
			patent.FieldTitle:          {Type: gateway.TypeString, Description: "Official Title"},
			patent.FieldAbstract:       {Type: gateway.TypeString, Description: "Technical summary of the invention"},
			patent.FieldAssignee:       {Type: gateway.TypeString, Description: "Company or Inventor"},
			patent.FieldFilingDate:     {Type: gateway.TypeString, Description: "YYYY-MM-DD"},
			patent.FieldExpirationDate: {Type: gateway.TypeString, Description: "YYYY-MM-DD"},
			patent.FieldStatus:         {Type: gateway.TypeString, Enum: enumValues(patent.Statuses)},
			patent.FieldJurisdictions: {
				Type:        gateway.TypeArray,
				Items:       &gateway.Schema{Type: gateway.TypeString},
				Description: "Active jurisdictions (e.g., US, EP, GB, WO)",
			},
			patent.FieldReplicabilityScore: {Type: gateway.TypeNumber, Description: "0-100 Safety Score"},
			patent.FieldReplicability:      {Type: gateway.TypeString, Description: "Short legal rationale for the score."},
			patent.FieldOpportunityType:    {Type: gateway.TypeString, Enum: enumValues(patent.OpportunityTypes)},
			patent.FieldRiskScore:          {Type: gateway.TypeNumber, Description: "0-100 Legal Danger Score"},
			patent.FieldFeasibility:        {Type: gateway.TypeString, Enum: enumValues(patent.Feasibilities)},
			patent.FieldTradeSecret:        {Type: gateway.TypeBoolean, Description: "Is this better as a secret?"},
		},
		Required: []string{
			patent.FieldID, patent.FieldTitle, patent.FieldAbstract, patent.FieldAssignee,
			patent.FieldFilingDate, patent.FieldExpirationDate, patent.FieldStatus,
			patent.FieldJurisdictions, patent.FieldReplicabilityScore, patent.FieldReplicability,
			patent.FieldOpportunityType, patent.FieldRiskScore, patent.FieldFeasibility,
			patent.FieldTradeSecret,
		},
	},
}

func enumValues[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

func searchPrompt(query string, candidates int) string {
	return fmt.Sprintf(`You are PatentOS, an elite IP Strategy Agent specializing in the UK Market.

OBJECTIVE:
Search for %d REAL or HIGHLY REALISTIC patents related to: "%s".
Prioritize identifying "Blue Ocean" opportunities for UK developers:
1. **Expired Patents**: Technologies now in the public domain.
2. **Territorial Gaps**: US Patents that were NEVER filed in the UK/Europe.
3. **Expiring Soon**: Patents expiring within 2 years.

ANALYSIS REQUIRED:
For each patent, calculate specific risk metrics.
- UK Replicability Score (0-100): High means safe to build in UK.
- Risk Score (0-100): High means likely to be sued (e.g., Active UK patent).
- Reverse Engineering Feasibility: Can this be built without viewing the source code?
- Trade Secret Candidate: If the patent is weak, is it better kept as a secret?

DISCLAIMER MANDATE:
You are an AI technical analyst, NOT a lawyer.
Use probabilistic language ("likely", "suggests").
NEVER provide legal guarantees.

Return strictly JSON.`, candidates, query)
}

func deepDivePrompt(rec patent.Record) string {
	return fmt.Sprintf(`Generate a 'Freedom to Operate' (FTO) Executive Summary for patent %s: "%s".

CONTEXT:
The user is a UK-based engineer looking to replicate this technology.
Current Status: %s.
Replicability Score: %d/100.
Jurisdictions: %s.

OUTPUT FORMAT (Strict Markdown):

# Executive Verdict
[Clear YES/NO/CAUTION statement on building this in the UK]

## Technical Claims Analysis
*Simplify the legal jargon into engineering terms. What exactly is protected?*

## Territorial Gap Analysis (If applicable)
*If this is a US-only patent, explicitly state why it is likely safe in the UK.*

## Risk Mitigation Strategy
*Specific engineering steps to avoid infringement (Design-around).*

## Commercial Viability
*Estimated market value and implementation use cases.*

DISCLAIMER:
Append a standard legal disclaimer that this is AI-generated technical analysis, not legal advice.`,
		rec.ID, rec.Title, rec.Status, rec.UKReplicabilityScore, strings.Join(rec.Jurisdictions, ", "))
}

func priorArtPrompt(rec patent.Record) string {
	return fmt.Sprintf(`Act as a Senior Patent Examiner. Perform a 'Prior Art' simulation for the patent described below.

PATENT DATA:
ID: %s
Title: %s
Abstract: %s

TASK:
Generate a realistic "Prior Art & Invalidity Risk" report.
Since you cannot access real-time private databases, simulate 3 highly plausible citation vectors (US, EP, or JP patents) that would likely exist for this technology.

OUTPUT FORMAT (Markdown):

**CITATION ANALYSIS RESULTS**
1. [Patent Number] ([Year]) - [Similarity Score]%% Similarity.
   *Context: Brief explanation of the overlap.*
2. [Patent Number] ([Year]) - [Similarity Score]%% Similarity.
   *Context: Brief explanation.*
3. [Patent Number] ([Year]) - [Similarity Score]%% Similarity.
   *Context: Brief explanation.*

**STRATEGIC RECOMMENDATION**
[Assessment of whether the original claims are likely invalid due to this prior art].

DISCLAIMER:
State clearly that this is a simulation based on semantic analysis.`, rec.ID, rec.Title, rec.Abstract)
}
