package guardian

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

func TestEvaluatePolicy(t *testing.T) {
	tests := []struct {
		name        string
		onFlag      safety.OnFlag
		remediation bool
		flagged     bool
		want        safety.Action
	}{
		{"strict unflagged", safety.OnFlagStrict, true, false, safety.ActionNone},
		{"strict flagged", safety.OnFlagStrict, true, true, safety.ActionBlocked},
		{"warn_only unflagged", safety.OnFlagWarnOnly, true, false, safety.ActionNone},
		{"warn_only flagged", safety.OnFlagWarnOnly, true, true, safety.ActionWarned},
		{"auto_correct unflagged", safety.OnFlagAutoCorrect, true, false, safety.ActionNone},
		{"auto_correct flagged", safety.OnFlagAutoCorrect, true, true, safety.ActionRewritten},
		{"auto_correct flagged without remediation", safety.OnFlagAutoCorrect, false, true, safety.ActionBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := safety.Config{OnFlag: tt.onFlag, EnableRemediation: tt.remediation}
			action, err := EvaluatePolicy(tt.flagged, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, action)
		})
	}
}

func TestEvaluatePolicy_UnknownOnFlag(t *testing.T) {
	_, err := EvaluatePolicy(true, safety.Config{OnFlag: "lenient"})
	assert.True(t, safety.IsConfigurationError(err))
}
