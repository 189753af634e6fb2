package guardian

import (
	"fmt"
	"strings"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

// Explainer turns detector findings into a human-readable rationale. The
// output references every flagged category and quotes the implicated
// substrings where spans are present. Findings are never mutated.
type Explainer interface {
	Explain(text string, findings []safety.Finding) string
}

type explainer struct{}

func NewExplainer() Explainer {
	return explainer{}
}

func (explainer) Explain(text string, findings []safety.Finding) string {
	var lines []string
	for _, f := range findings {
		if !f.Flagged && f.Score == 0 {
			continue
		}
		lines = append(lines, describeFinding(text, f))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func describeFinding(text string, f safety.Finding) string {
	var b strings.Builder
	if f.Flagged {
		fmt.Fprintf(&b, "%s: flagged (score %.2f)", f.Category, f.Score)
	} else {
		fmt.Fprintf(&b, "%s: low-confidence signal (score %.2f)", f.Category, f.Score)
	}
	if len(f.Subcategories) > 0 {
		fmt.Fprintf(&b, "; signals: %s", strings.Join(f.Subcategories, ", "))
	}
	if quotes := spanQuotes(text, f.Spans); len(quotes) > 0 {
		fmt.Fprintf(&b, "; matched: %s", strings.Join(quotes, ", "))
	}
	return b.String()
}

func spanQuotes(text string, spans []safety.Span) []string {
	var quotes []string
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		quotes = append(quotes, fmt.Sprintf("%q", text[s.Start:s.End]))
	}
	return quotes
}
