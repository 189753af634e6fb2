package jailbreak

import "regexp"

type patternClass string

const (
	instructionOverride patternClass = "instruction_override"
	rolePlayEscape      patternClass = "role_play_escape"
	systemPromptLeak    patternClass = "system_prompt_leak"
	codeInjection       patternClass = "code_injection"
)

type pattern struct {
	class      patternClass
	re         *regexp.Regexp
	confidence float64
}

// Pattern confidences are calibrated against the 0.5 flagging cutoff:
// phrasings that rarely occur in benign text sit above it, phrasings with
// legitimate uses ("act as a translator") sit below so they surface as
// low-confidence findings in a warn flow instead of hard flags.
var patterns = []pattern{
	{
		class: instructionOverride,
		re: regexp.MustCompile(`(?i)(` +
			`ignore\s+(?:all\s+|any\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|directives|rules)|` +
			`disregard\s+(?:all\s+|any\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts|directives|rules)|` +
			`forget\s+(?:everything|all)\s+(?:you\s+(?:were|have been)\s+told|above)|` +
			`override\s+(?:your|the)\s+(?:instructions|programming|guidelines)|` +
			`do\s+not\s+follow\s+(?:your|the)\s+(?:instructions|guidelines|rules)` +
			`)`),
		confidence: 0.95,
	},
	{
		class: systemPromptLeak,
		re: regexp.MustCompile(`(?i)(` +
			`(?:reveal|show|print|repeat|output|display)\s+(?:me\s+)?(?:your|the)\s+system\s+prompt|` +
			`what\s+(?:is|are)\s+your\s+(?:system\s+prompt|initial\s+instructions)|` +
			`(?:reveal|show|leak)\s+(?:your|the)\s+(?:hidden|initial|original)\s+(?:instructions|prompt)` +
			`)`),
		confidence: 0.9,
	},
	{
		class: rolePlayEscape,
		re: regexp.MustCompile(`(?i)(` +
			`you\s+are\s+now\s+(?:DAN|unrestricted|free\s+from)|` +
			`pretend\s+(?:you\s+(?:are|have)|to\s+be)\s+(?:an?\s+)?(?:unrestricted|unfiltered|jailbroken)|` +
			`no\s+longer\s+(?:bound|restricted)\s+by\s+(?:your\s+)?(?:rules|guidelines|policies)|` +
			`developer\s+mode\s+enabled` +
			`)`),
		confidence: 0.85,
	},
	{
		class: codeInjection,
		re: regexp.MustCompile(`(?i)(` +
			"```" + `\s*(?:bash|sh|powershell)\s|` +
			`[;&|]\s*(?:rm\s+-rf|curl|wget|nc)\s|` +
			`(?:eval|exec|system|subprocess)\s*\(|` +
			`<script[^>]*>` +
			`)`),
		confidence: 0.7,
	},

	// Ambiguous phrasings: recorded, never flagged on their own.
	{
		class:      rolePlayEscape,
		re:         regexp.MustCompile(`(?i)(?:act\s+as|pretend\s+(?:you\s+are|to\s+be)|role-?play\s+as)\s`),
		confidence: 0.3,
	},
	{
		class:      instructionOverride,
		re:         regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
		confidence: 0.4,
	},
}
