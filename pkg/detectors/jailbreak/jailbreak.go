package jailbreak

import (
	"context"
	"sort"

	"github.com/fairsight-ai/guardian/pkg/detectors"
	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/sirupsen/logrus"
)

// DefaultConfidenceCutoff is the match confidence at which a pattern hit flags
// the finding. Matches below it are still recorded as low-confidence findings
// rather than silently dropped, so a warn flow can surface them.
const DefaultConfidenceCutoff = 0.5

// Detector applies local pattern heuristics for instruction-override phrasing,
// role-play escapes, system-prompt leaks and embedded code or command
// injection. It needs no upstream call, so it never reports unavailable.
type Detector struct {
	logger *logrus.Logger
	cutoff float64
}

func NewDetector(logger *logrus.Logger) detectors.Detector {
	return &Detector{
		logger: logger,
		cutoff: DefaultConfidenceCutoff,
	}
}

func (d *Detector) Category() safety.Category {
	return safety.CategoryJailbreak
}

func (d *Detector) Analyze(ctx context.Context, text string, _ detectors.Context) (safety.Finding, error) {
	if err := ctx.Err(); err != nil {
		return safety.Finding{}, &safety.DetectorUnavailableError{Category: safety.CategoryJailbreak, Err: err}
	}

	var (
		score      float64
		spans      []safety.Span
		subcatSeen = map[string]struct{}{}
	)

	for _, p := range patterns {
		matches := p.re.FindAllStringIndex(text, -1)
		if matches == nil {
			continue
		}
		subcatSeen[string(p.class)] = struct{}{}
		if p.confidence > score {
			score = p.confidence
		}
		for _, m := range matches {
			spans = append(spans, safety.Span{Start: m[0], End: m[1]})
		}
	}

	if len(spans) == 0 {
		return safety.Finding{Category: safety.CategoryJailbreak}, nil
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	subcategories := make([]string, 0, len(subcatSeen))
	for s := range subcatSeen {
		subcategories = append(subcategories, s)
	}
	sort.Strings(subcategories)

	return safety.Finding{
		Category:      safety.CategoryJailbreak,
		Score:         score,
		Flagged:       score >= d.cutoff,
		Subcategories: subcategories,
		Spans:         spans,
	}, nil
}
