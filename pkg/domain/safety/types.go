package safety

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryToxicity  Category = "toxicity"
	CategoryBias      Category = "bias"
	CategoryJailbreak Category = "jailbreak"
)

// Categories lists every detector category in dispatch order. The verdict's
// findings sequence follows this order regardless of completion order.
var Categories = []Category{CategoryToxicity, CategoryBias, CategoryJailbreak}

type Action string

const (
	ActionNone      Action = "none"
	ActionBlocked   Action = "blocked"
	ActionRewritten Action = "rewritten"
	ActionWarned    Action = "warned"
)

// SubcategoryUnavailable is the reserved tag attached to a finding when the
// backing detector could not be reached. It distinguishes "could not check"
// from "checked and clean".
const SubcategoryUnavailable = "unavailable"

// Span marks a substring of the analyzed text by byte offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Finding is the immutable result of a single detector invocation.
type Finding struct {
	Category      Category `json:"category"`
	Score         float64  `json:"score"`
	Flagged       bool     `json:"flagged"`
	Subcategories []string `json:"subcategories,omitempty"`
	Spans         []Span   `json:"spans,omitempty"`
}

// Unavailable reports whether the finding records a detector that could not
// produce a result.
func (f Finding) Unavailable() bool {
	for _, s := range f.Subcategories {
		if s == SubcategoryUnavailable {
			return true
		}
	}
	return false
}

// AnalysisRequest is the unit of work handed to the pipeline. It is built once
// per call and never mutated.
type AnalysisRequest struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	TenantID string `json:"tenant_id"`
	Config   Config `json:"config"`
}

// Verdict is the record of one pipeline run. Pipeline stages never mutate a
// verdict in place; each stage derives a new value from the previous one.
type Verdict struct {
	ID                   uuid.UUID `json:"id"`
	TenantID             string    `json:"tenant_id"`
	Findings             []Finding `json:"findings"`
	RevalidationFindings []Finding `json:"revalidation_findings,omitempty"`
	OverallFlagged       bool      `json:"overall_flagged"`
	Action               Action    `json:"action_taken"`
	OriginalText         string    `json:"original_text,omitempty"`
	RewrittenText        string    `json:"rewritten_text,omitempty"`
	Explanation          string    `json:"explanation,omitempty"`
	LatencyMS            int64     `json:"latency_ms"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewVerdict assembles the initial verdict from the ordered findings of a
// detector pass. OverallFlagged is the logical OR of the findings.
func NewVerdict(tenantID string, findings []Finding) Verdict {
	flagged := false
	for _, f := range findings {
		if f.Flagged {
			flagged = true
			break
		}
	}
	return Verdict{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Findings:       findings,
		OverallFlagged: flagged,
		Action:         ActionNone,
		CreatedAt:      time.Now(),
	}
}

// WithAction returns a copy of the verdict with the enforcement action set.
func (v Verdict) WithAction(action Action) Verdict {
	v.Action = action
	return v
}

// WithRewrite returns a copy carrying the rewritten text alongside the
// original, so the audit trail keeps both.
func (v Verdict) WithRewrite(original, rewritten string) Verdict {
	v.OriginalText = original
	v.RewrittenText = rewritten
	return v
}

// WithRevalidation returns a copy carrying the findings of the post-rewrite
// detector pass.
func (v Verdict) WithRevalidation(findings []Finding) Verdict {
	v.RevalidationFindings = findings
	return v
}

// WithExplanation returns a copy with the rationale attached.
func (v Verdict) WithExplanation(explanation string) Verdict {
	v.Explanation = explanation
	return v
}

// WithLatency returns a copy with the total pipeline latency recorded.
func (v Verdict) WithLatency(d time.Duration) Verdict {
	v.LatencyMS = d.Milliseconds()
	return v
}
