package guardian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fairsight-ai/guardian/pkg/detectors"
	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/fairsight-ai/guardian/pkg/infra/prometheus"
	"github.com/fairsight-ai/guardian/pkg/infra/quota"
)

const (
	// DefaultDetectorTimeout bounds every single detector invocation.
	DefaultDetectorTimeout = 10 * time.Second
	// DefaultUnitCost is the SIU price of one detector or remediation call.
	DefaultUnitCost int64 = 1
)

// Pipeline runs the enabled detectors concurrently, evaluates policy, drives
// the bounded remediation loop and hands the finished verdict to the
// recorder. It depends only on the Detector contract, never on concrete
// detector types.
type Pipeline struct {
	logger          *logrus.Logger
	detectors       map[safety.Category]detectors.Detector
	quota           quota.Store
	rewriter        Rewriter
	explainer       Explainer
	recorder        Recorder
	detectorTimeout time.Duration
	unitCost        int64
}

type Option func(*Pipeline)

func WithDetectorTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.detectorTimeout = d }
}

func WithUnitCost(units int64) Option {
	return func(p *Pipeline) { p.unitCost = units }
}

func NewPipeline(
	logger *logrus.Logger,
	detectorSet []detectors.Detector,
	quotaStore quota.Store,
	rewriter Rewriter,
	explainer Explainer,
	recorder Recorder,
	opts ...Option,
) *Pipeline {
	byCategory := make(map[safety.Category]detectors.Detector, len(detectorSet))
	for _, d := range detectorSet {
		byCategory[d.Category()] = d
	}
	p := &Pipeline{
		logger:          logger,
		detectors:       byCategory,
		quota:           quotaStore,
		rewriter:        rewriter,
		explainer:       explainer,
		recorder:        recorder,
		detectorTimeout: DefaultDetectorTimeout,
		unitCost:        DefaultUnitCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnalyzeAndEnforce runs the full pipeline for one request and returns the
// finished verdict. The caller receives either a complete verdict or one of
// the immediate-abort errors (configuration, quota, cancelled context); it
// never sees a partially built verdict.
func (p *Pipeline) AnalyzeAndEnforce(ctx context.Context, req safety.AnalysisRequest) (*safety.Verdict, error) {
	started := time.Now()

	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	enabled := p.enabledDetectors(req.Config)
	if len(enabled) == 0 {
		return nil, safety.NewConfigurationError("no detector enabled for the request")
	}

	// Reserve SIU for the whole detector pass before anything dispatches.
	// Units for detectors that fail to produce a result are released after
	// the pass, so failed invocations never consume quota.
	reserveUnits := p.unitCost * int64(len(enabled))
	if err := p.quota.Reserve(ctx, req.TenantID, reserveUnits); err != nil {
		if errors.Is(err, safety.ErrQuotaExceeded) {
			prometheus.QuotaRejectionsTotal.WithLabelValues(req.TenantID).Inc()
		}
		return nil, err
	}

	dctx := detectors.Context{
		Prompt:            req.Prompt,
		ToxicityThreshold: req.Config.ToxicityThreshold,
	}

	// A request deadline expiring mid-pass does not abort the run: detectors
	// cancelled by the shared context come back as unavailable findings and
	// the verdict is finalized from whatever results arrived.
	findings, consumed := p.runDetectors(ctx, enabled, req.Response, dctx)
	p.settleQuota(req.TenantID, reserveUnits, consumed)

	unitsConsumed := consumed

	verdict := safety.NewVerdict(req.TenantID, findings)

	action, err := EvaluatePolicy(verdict.OverallFlagged, req.Config)
	if err != nil {
		return nil, err
	}
	verdict = verdict.WithAction(action)

	if action == safety.ActionRewritten {
		verdict, unitsConsumed = p.remediate(ctx, verdict, req, dctx, unitsConsumed)
	}

	if explanation := p.explainer.Explain(req.Response, verdict.Findings); explanation != "" {
		verdict = verdict.WithExplanation(explanation)
	}

	verdict = verdict.WithLatency(time.Since(started))

	prometheus.PipelineRunsTotal.WithLabelValues(req.TenantID, string(verdict.Action)).Inc()
	prometheus.PipelineLatency.WithLabelValues(req.TenantID).Observe(float64(verdict.LatencyMS))

	p.recorder.Record(&verdict, unitsConsumed)

	return &verdict, nil
}

// AnalyzeOnly runs the requested detectors against text without quota
// accounting, enforcement or recording. Unknown check names are ignored.
func (p *Pipeline) AnalyzeOnly(ctx context.Context, text string, enabledChecks []safety.Category) ([]safety.Finding, error) {
	requested := make(map[safety.Category]bool, len(enabledChecks))
	for _, c := range enabledChecks {
		requested[c] = true
	}

	var enabled []detectors.Detector
	for _, category := range safety.Categories {
		if d, ok := p.detectors[category]; ok && requested[category] {
			enabled = append(enabled, d)
		}
	}
	if len(enabled) == 0 {
		return nil, safety.NewConfigurationError("no known check requested")
	}

	dctx := detectors.Context{ToxicityThreshold: safety.DefaultToxicityThreshold}
	findings, _ := p.runDetectors(ctx, enabled, text, dctx)
	return findings, nil
}

// enabledDetectors returns the configured detectors in dispatch order.
func (p *Pipeline) enabledDetectors(cfg safety.Config) []detectors.Detector {
	var out []detectors.Detector
	for _, category := range cfg.EnabledCategories() {
		if d, ok := p.detectors[category]; ok {
			out = append(out, d)
		}
	}
	return out
}

// runDetectors fans the detector set out concurrently and collects findings
// in dispatch order. Failed invocations yield an unavailable finding instead
// of an error; consumed reports the SIU burned by successful invocations.
func (p *Pipeline) runDetectors(ctx context.Context, enabled []detectors.Detector, text string, dctx detectors.Context) ([]safety.Finding, int64) {
	findings := make([]safety.Finding, len(enabled))
	succeeded := make([]bool, len(enabled))

	var wg sync.WaitGroup
	for i, d := range enabled {
		wg.Add(1)
		go func(i int, d detectors.Detector) {
			defer wg.Done()
			findings[i], succeeded[i] = p.runDetector(ctx, d, text, dctx)
		}(i, d)
	}
	wg.Wait()

	var consumed int64
	for i := range succeeded {
		if succeeded[i] {
			consumed += p.unitCost
		}
	}
	return findings, consumed
}

func (p *Pipeline) runDetector(ctx context.Context, d detectors.Detector, text string, dctx detectors.Context) (safety.Finding, bool) {
	category := d.Category()

	tctx, cancel := context.WithTimeout(ctx, p.detectorTimeout)
	defer cancel()

	started := time.Now()
	finding, err := d.Analyze(tctx, text, dctx)
	prometheus.DetectorLatency.WithLabelValues(string(category)).Observe(float64(time.Since(started).Milliseconds()))

	if err != nil {
		var faultErr *safety.DetectorFaultError
		kind := "unavailable"
		if errors.As(err, &faultErr) {
			kind = "fault"
			p.logger.WithError(err).WithField("category", category).Error("detector fault")
		} else {
			p.logger.WithError(err).WithField("category", category).Warn("detector unavailable")
		}
		prometheus.DetectorFailuresTotal.WithLabelValues(string(category), kind).Inc()
		return unavailableFinding(category), false
	}

	if finding.Flagged {
		prometheus.FindingsFlaggedTotal.WithLabelValues(string(category)).Inc()
	}
	return finding, true
}

// settleQuota releases the reserved units that no detector consumed and
// commits the rest. Settlement failures only affect accounting, never the
// verdict, so they are logged and swallowed.
func (p *Pipeline) settleQuota(tenantID string, reserved, consumed int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if unused := reserved - consumed; unused > 0 {
		if err := p.quota.Release(ctx, tenantID, unused); err != nil {
			p.logger.WithError(err).WithField("tenant_id", tenantID).Error("failed to release unused quota")
		}
	}
	if consumed > 0 {
		if err := p.quota.Commit(ctx, tenantID, consumed); err != nil {
			p.logger.WithError(err).WithField("tenant_id", tenantID).Error("failed to commit consumed quota")
		}
	}
}

// remediate runs the single rewrite attempt plus one re-validation pass of
// the detectors that originally flagged. Any failure along the way, including
// insufficient quota for the extra detector calls, escalates the action to
// blocked; there is no retry loop.
func (p *Pipeline) remediate(ctx context.Context, verdict safety.Verdict, req safety.AnalysisRequest, dctx detectors.Context, unitsConsumed int64) (safety.Verdict, int64) {
	flagged := flaggedDetectors(p.detectors, verdict.Findings)

	rewriteUnits := p.unitCost * int64(1+len(flagged))
	if err := p.quota.Reserve(ctx, req.TenantID, rewriteUnits); err != nil {
		if errors.Is(err, safety.ErrQuotaExceeded) {
			prometheus.QuotaRejectionsTotal.WithLabelValues(req.TenantID).Inc()
		}
		p.logger.WithError(err).WithField("tenant_id", req.TenantID).Warn("no quota for remediation, blocking")
		return verdict.WithAction(safety.ActionBlocked), unitsConsumed
	}

	rewritten, err := p.rewriter.Rewrite(ctx, req.Response, verdict.Findings)
	if err != nil {
		p.settleQuota(req.TenantID, rewriteUnits, 0)
		p.logger.WithError(err).Warn("remediation unavailable, blocking")
		return verdict.WithAction(safety.ActionBlocked), unitsConsumed
	}

	revalidation, consumed := p.runDetectors(ctx, flagged, rewritten, dctx)
	consumed += p.unitCost // the rewrite call itself
	p.settleQuota(req.TenantID, rewriteUnits, consumed)
	unitsConsumed += consumed

	verdict = verdict.WithRewrite(req.Response, rewritten).WithRevalidation(revalidation)

	for _, f := range revalidation {
		if f.Flagged || f.Unavailable() {
			return verdict.WithAction(safety.ActionBlocked), unitsConsumed
		}
	}
	return verdict, unitsConsumed
}

func flaggedDetectors(byCategory map[safety.Category]detectors.Detector, findings []safety.Finding) []detectors.Detector {
	var out []detectors.Detector
	for _, f := range findings {
		if !f.Flagged {
			continue
		}
		if d, ok := byCategory[f.Category]; ok {
			out = append(out, d)
		}
	}
	return out
}

func unavailableFinding(category safety.Category) safety.Finding {
	return safety.Finding{
		Category:      category,
		Score:         0,
		Flagged:       false,
		Subcategories: []string{safety.SubcategoryUnavailable},
	}
}
