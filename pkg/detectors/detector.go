package detectors

import (
	"context"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

// Context carries the per-request inputs a detector may need beyond the text
// under analysis.
type Context struct {
	// Prompt is the prompt that produced the analyzed text. The bias checker
	// runs its paired substitutions against it.
	Prompt string
	// ToxicityThreshold is the caller-configured flagging threshold.
	ToxicityThreshold float64
}

// Detector is the capability contract every safety detector implements. The
// orchestrator dispatches over a set of Detectors without knowing concrete
// types.
//
// Analyze must respect the ctx deadline. Failure is signaled with
// *safety.DetectorUnavailableError (upstream call failed or timed out) or
// *safety.DetectorFaultError (malformed input or internal fault); both are
// distinct from a clean, unflagged finding.
type Detector interface {
	Category() safety.Category
	Analyze(ctx context.Context, text string, dctx Context) (safety.Finding, error)
}
