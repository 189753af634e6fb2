package safety

type OnFlag string

const (
	OnFlagStrict      OnFlag = "strict"
	OnFlagAutoCorrect OnFlag = "auto_correct"
	OnFlagWarnOnly    OnFlag = "warn_only"
)

const DefaultToxicityThreshold = 0.7

// Config controls how a single analysis run behaves. Callers may omit it
// entirely, in which case DefaultConfig applies; an invalid value is rejected
// before any detector runs, never silently defaulted.
type Config struct {
	OnFlag               OnFlag  `json:"on_flag" mapstructure:"on_flag"`
	ToxicityThreshold    float64 `json:"toxicity_threshold" mapstructure:"toxicity_threshold"`
	EnableBiasCheck      bool    `json:"enable_bias_check" mapstructure:"enable_bias_check"`
	EnableJailbreakCheck bool    `json:"enable_jailbreak_check" mapstructure:"enable_jailbreak_check"`
	EnableRemediation    bool    `json:"enable_remediation" mapstructure:"enable_remediation"`
}

func DefaultConfig() Config {
	return Config{
		OnFlag:               OnFlagWarnOnly,
		ToxicityThreshold:    DefaultToxicityThreshold,
		EnableBiasCheck:      true,
		EnableJailbreakCheck: true,
		EnableRemediation:    true,
	}
}

// Validate rejects configurations the pipeline must not run with.
func (c Config) Validate() error {
	switch c.OnFlag {
	case OnFlagStrict, OnFlagAutoCorrect, OnFlagWarnOnly:
	default:
		return NewConfigurationError("unknown on_flag value: " + string(c.OnFlag))
	}
	if c.ToxicityThreshold < 0 || c.ToxicityThreshold > 1 {
		return NewConfigurationError("toxicity_threshold must be between 0 and 1")
	}
	return nil
}

// EnabledCategories returns the detector categories this configuration turns
// on, in dispatch order. Toxicity is always checked.
func (c Config) EnabledCategories() []Category {
	enabled := []Category{CategoryToxicity}
	if c.EnableBiasCheck {
		enabled = append(enabled, CategoryBias)
	}
	if c.EnableJailbreakCheck {
		enabled = append(enabled, CategoryJailbreak)
	}
	return enabled
}
