package guardian

import (
	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

// EvaluatePolicy maps the aggregated flag state and caller configuration to an
// enforcement action. Pure function; the orchestrator validates the
// configuration before any detector runs, so an unknown on_flag here is a
// programming error surfaced as a configuration error rather than a silent
// default.
//
//	on_flag      | not flagged | flagged
//	strict       | none        | blocked
//	warn_only    | none        | warned
//	auto_correct | none        | rewritten (blocked without remediation)
func EvaluatePolicy(overallFlagged bool, cfg safety.Config) (safety.Action, error) {
	switch cfg.OnFlag {
	case safety.OnFlagStrict, safety.OnFlagWarnOnly, safety.OnFlagAutoCorrect:
	default:
		return "", safety.NewConfigurationError("unknown on_flag value: " + string(cfg.OnFlag))
	}

	if !overallFlagged {
		return safety.ActionNone, nil
	}

	switch cfg.OnFlag {
	case safety.OnFlagStrict:
		return safety.ActionBlocked, nil
	case safety.OnFlagWarnOnly:
		return safety.ActionWarned, nil
	default:
		if cfg.EnableRemediation {
			return safety.ActionRewritten, nil
		}
		return safety.ActionBlocked, nil
	}
}
