// Package report builds the exportable data packet for one patent record and
// renders it as Markdown, HTML or PDF.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/patentos/internal/patent"
)

const Disclaimer = "Generated by PatentOS Neural Core. AI-generated technical analysis. " +
	"Non-binding technical assessment only. Not legal advice."

// Packet is the export input. Analysis may be empty when the detail view has
// not produced one yet.
type Packet struct {
	Record      patent.Record
	Analysis    string
	GeneratedAt time.Time
}

// Title is the document title used by every format.
func (p Packet) Title() string {
	return fmt.Sprintf("PatentOS Data Packet: %s", p.Record.ID)
}

// Markdown renders the packet.
func (p Packet) Markdown() string {
	r := p.Record
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Title())
	fmt.Fprintf(&b, "**%s**\n\n", r.Title)
	if !p.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated %s_\n\n", p.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	b.WriteString("## Asset Profile\n\n")
	b.WriteString("| Field | Value |\n|---|---|\n")
	row := func(k, v string) {
		fmt.Fprintf(&b, "| %s | %s |\n", k, escapeCell(v))
	}
	row("Patent", r.ID)
	row("Assignee", r.Assignee)
	row("Status", string(r.Status))
	row("Filing Date", r.FilingDate)
	row("Expiration Date", r.ExpirationDate)
	row("Jurisdictions", jurisdictions(r.Jurisdictions))
	row("Opportunity", string(r.OpportunityType))
	row("UK Replicability", fmt.Sprintf("%d/100", r.UKReplicabilityScore))
	row("Risk Score", fmt.Sprintf("%d/100", r.RiskScore))
	row("Reverse Engineering", string(r.ReverseEngineeringFeasibility))
	row("Trade Secret Candidate", yesNo(r.IsTradeSecretCandidate))
	b.WriteString("\n")

	b.WriteString("## Abstract\n\n")
	b.WriteString(r.Abstract + "\n\n")
	b.WriteString("## UK Replicability Rationale\n\n")
	b.WriteString(r.UKReplicabilityReason + "\n\n")

	b.WriteString("## Freedom to Operate Analysis\n\n")
	if a := strings.TrimSpace(p.Analysis); a != "" {
		b.WriteString(shiftHeadings(a) + "\n\n")
	} else {
		b.WriteString("_No analysis has been generated for this asset._\n\n")
	}

	b.WriteString("## Prior Art Dossier\n\n")
	switch {
	case r.PriorArtReport == nil:
		b.WriteString("_Prior art discovery has not been run for this asset._\n\n")
	case r.PriorArtFallback:
		b.WriteString("> Degraded result: the live scan did not complete.\n\n")
		b.WriteString(*r.PriorArtReport + "\n\n")
	default:
		b.WriteString(*r.PriorArtReport + "\n\n")
	}

	b.WriteString("---\n\n")
	b.WriteString("_" + Disclaimer + "_\n")
	return b.String()
}

// shiftHeadings demotes ATX headings by two levels, capped at h6, so model
// output nests under the packet's section headings.
func shiftHeadings(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		level := len(l) - len(strings.TrimLeft(l, "#"))
		if level == 0 || level >= 6 {
			continue
		}
		if rest := l[level:]; rest != "" && rest[0] != ' ' {
			continue
		}
		lines[i] = strings.Repeat("#", min(level+2, 6)-level) + l
	}
	return strings.Join(lines, "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func jurisdictions(js []string) string {
	if len(js) == 0 {
		return "None reported"
	}
	return strings.Join(js, ", ")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
