package telemetry

import (
	"context"
	"time"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

// Exporter streams verdict events to an external telemetry sink.
type Exporter interface {
	Handle(ctx context.Context, evt *VerdictEvent) error
	Close()
}

// VerdictEvent is the wire shape published for every completed pipeline run.
type VerdictEvent struct {
	VerdictID     string           `json:"verdict_id"`
	TenantID      string           `json:"tenant_id"`
	Action        safety.Action    `json:"action"`
	Flagged       bool             `json:"flagged"`
	Findings      []safety.Finding `json:"findings"`
	UnitsConsumed int64            `json:"units_consumed"`
	LatencyMS     int64            `json:"latency_ms"`
	CreatedAt     time.Time        `json:"created_at"`
}

// EventFromVerdict flattens a verdict into its exportable form.
func EventFromVerdict(v *safety.Verdict, unitsConsumed int64) *VerdictEvent {
	return &VerdictEvent{
		VerdictID:     v.ID.String(),
		TenantID:      v.TenantID,
		Action:        v.Action,
		Flagged:       v.OverallFlagged,
		Findings:      v.Findings,
		UnitsConsumed: unitsConsumed,
		LatencyMS:     v.LatencyMS,
		CreatedAt:     v.CreatedAt,
	}
}
