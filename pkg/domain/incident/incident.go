package incident

import (
	"time"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Incident is the durable record of a completed pipeline run. The pipeline
// only constructs and hands it off; reads happen in the dashboard layer.
type Incident struct {
	ID             uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	VerdictID      uuid.UUID     `json:"verdict_id" gorm:"type:uuid;index"`
	TenantID       string        `json:"tenant_id" gorm:"index"`
	Findings       FindingsJSON  `json:"findings" gorm:"type:jsonb"`
	OverallFlagged bool          `json:"overall_flagged"`
	Action         safety.Action `json:"action_taken"`
	OriginalText   string        `json:"original_text,omitempty"`
	RewrittenText  string        `json:"rewritten_text,omitempty"`
	Explanation    string        `json:"explanation,omitempty"`
	LatencyMS      int64         `json:"latency_ms"`
	UnitsConsumed  int64         `json:"units_consumed"`
	CreatedAt      time.Time     `json:"created_at"`
}

func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	return nil
}

// FromVerdict maps a final verdict plus its quota delta onto the storable
// incident shape.
func FromVerdict(v safety.Verdict, unitsConsumed int64) *Incident {
	return &Incident{
		VerdictID:      v.ID,
		TenantID:       v.TenantID,
		Findings:       FindingsJSON(v.Findings),
		OverallFlagged: v.OverallFlagged,
		Action:         v.Action,
		OriginalText:   v.OriginalText,
		RewrittenText:  v.RewrittenText,
		Explanation:    v.Explanation,
		LatencyMS:      v.LatencyMS,
		UnitsConsumed:  unitsConsumed,
		CreatedAt:      v.CreatedAt,
	}
}
