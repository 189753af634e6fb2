package guardian

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/fairsight-ai/guardian/pkg/infra/providers"
)

// Rewriter produces a corrected version of a flagged prompt. Implementations
// return a RemediationUnavailableError when no rewrite could be produced so
// the pipeline can escalate instead of passing the original through.
type Rewriter interface {
	Rewrite(ctx context.Context, text string, findings []safety.Finding) (string, error)
}

const rewriteSystemPrompt = `You rewrite user text so it no longer contains policy violations while preserving the author's intent as closely as possible. Respond with the rewritten text only, no preamble and no commentary.`

type llmRewriter struct {
	logger   *logrus.Logger
	provider providers.Client
	config   *providers.Config
}

// NewLLMRewriter builds a Rewriter backed by a completion provider. The
// provider configuration carries the model and credentials; the system prompt
// is fixed.
func NewLLMRewriter(logger *logrus.Logger, provider providers.Client, config *providers.Config) Rewriter {
	cfg := *config
	cfg.SystemPrompt = rewriteSystemPrompt
	return &llmRewriter{
		logger:   logger,
		provider: provider,
		config:   &cfg,
	}
}

func (r *llmRewriter) Rewrite(ctx context.Context, text string, findings []safety.Finding) (string, error) {
	prompt := buildRewritePrompt(text, findings)

	resp, err := r.provider.Ask(ctx, r.config, prompt)
	if err != nil {
		r.logger.WithError(err).Error("rewrite completion failed")
		return "", &safety.RemediationUnavailableError{Err: err}
	}

	rewritten := strings.TrimSpace(resp.Response)
	if rewritten == "" {
		return "", &safety.RemediationUnavailableError{Err: fmt.Errorf("provider returned an empty rewrite")}
	}
	return rewritten, nil
}

func buildRewritePrompt(text string, findings []safety.Finding) string {
	labels := make([]string, 0, len(findings))
	for _, f := range findings {
		if !f.Flagged {
			continue
		}
		label := string(f.Category)
		if len(f.Subcategories) > 0 {
			label += " (" + strings.Join(f.Subcategories, ", ") + ")"
		}
		labels = append(labels, label)
	}

	var b strings.Builder
	b.WriteString("The following text was flagged for: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString(".\n\nRewrite it to remove the violations:\n\n")
	b.WriteString(text)
	return b.String()
}
