package toxicity

import (
	"context"
	"errors"
	"sort"

	"github.com/fairsight-ai/guardian/pkg/detectors"
	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/fairsight-ai/guardian/pkg/infra/moderation"
	"github.com/sirupsen/logrus"
)

// Detector classifies text across the toxicity categories {hate, harassment,
// violence, self-harm, sexual} via a moderation capability. It flags when the
// highest category score reaches the configured threshold; subcategories below
// threshold are still reported when they scored above zero, so the
// explainability engine has something to work with.
type Detector struct {
	client moderation.Client
	logger *logrus.Logger
}

func NewDetector(logger *logrus.Logger, client moderation.Client) detectors.Detector {
	return &Detector{
		client: client,
		logger: logger,
	}
}

func (d *Detector) Category() safety.Category {
	return safety.CategoryToxicity
}

func (d *Detector) Analyze(ctx context.Context, text string, dctx detectors.Context) (safety.Finding, error) {
	scores, err := d.client.Classify(ctx, text)
	if err != nil {
		if errors.Is(err, moderation.ErrMalformedResponse) {
			d.logger.WithError(err).Error("moderation returned an uninterpretable reply")
			return safety.Finding{}, &safety.DetectorFaultError{
				Category: safety.CategoryToxicity,
				Err:      err,
			}
		}
		d.logger.WithError(err).Warn("moderation call failed")
		return safety.Finding{}, &safety.DetectorUnavailableError{
			Category: safety.CategoryToxicity,
			Err:      err,
		}
	}

	var subcategories []string
	for name, score := range scores {
		if score > 0 {
			subcategories = append(subcategories, name)
		}
	}
	sort.Strings(subcategories)

	_, max := scores.Max()
	return safety.Finding{
		Category:      safety.CategoryToxicity,
		Score:         max,
		Flagged:       max >= dctx.ToxicityThreshold,
		Subcategories: subcategories,
	}, nil
}
