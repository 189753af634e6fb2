package guardian

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairsight-ai/guardian/pkg/detectors"
	"github.com/fairsight-ai/guardian/pkg/domain/safety"
)

type stubDetector struct {
	category  safety.Category
	finding   safety.Finding
	err       error
	calls     int32
	onAnalyze func(text string) (safety.Finding, error)
}

func (d *stubDetector) Category() safety.Category { return d.category }

func (d *stubDetector) Analyze(_ context.Context, text string, _ detectors.Context) (safety.Finding, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.onAnalyze != nil {
		return d.onAnalyze(text)
	}
	if d.err != nil {
		return safety.Finding{}, d.err
	}
	return d.finding, nil
}

func (d *stubDetector) callCount() int {
	return int(atomic.LoadInt32(&d.calls))
}

type stubQuota struct {
	mu        sync.Mutex
	balance   int64
	committed int64
	released  int64
	reserves  int
}

func (q *stubQuota) Reserve(_ context.Context, _ string, units int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.balance < units {
		return safety.ErrQuotaExceeded
	}
	q.balance -= units
	q.reserves++
	return nil
}

func (q *stubQuota) Commit(_ context.Context, _ string, units int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.committed += units
	return nil
}

func (q *stubQuota) Release(_ context.Context, _ string, units int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.balance += units
	q.released += units
	return nil
}

func (q *stubQuota) snapshot() (balance, committed, released int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.balance, q.committed, q.released
}

type stubRewriter struct {
	rewritten string
	err       error
	calls     int32
}

func (r *stubRewriter) Rewrite(_ context.Context, _ string, _ []safety.Finding) (string, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.err != nil {
		return "", r.err
	}
	return r.rewritten, nil
}

type captureRecorder struct {
	mu      sync.Mutex
	verdict *safety.Verdict
	units   int64
	calls   int
}

func (r *captureRecorder) Record(v *safety.Verdict, unitsConsumed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdict = v
	r.units = unitsConsumed
	r.calls++
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func cleanFinding(category safety.Category) safety.Finding {
	return safety.Finding{Category: category, Score: 0, Flagged: false}
}

func flaggedFinding(category safety.Category, score float64) safety.Finding {
	return safety.Finding{
		Category:      category,
		Score:         score,
		Flagged:       true,
		Subcategories: []string{"violence"},
	}
}

func testConfig(onFlag safety.OnFlag) safety.Config {
	return safety.Config{
		OnFlag:               onFlag,
		ToxicityThreshold:    0.7,
		EnableBiasCheck:      true,
		EnableJailbreakCheck: true,
		EnableRemediation:    true,
	}
}

func newTestPipeline(ds []detectors.Detector, q *stubQuota, rw Rewriter, rec Recorder, opts ...Option) *Pipeline {
	return NewPipeline(testLogger(), ds, q, rw, NewExplainer(), rec, opts...)
}

func TestPipeline_StrictBlocksFlaggedContent(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, finding: flaggedFinding(safety.CategoryToxicity, 0.9)}
	bias := &stubDetector{category: safety.CategoryBias, finding: cleanFinding(safety.CategoryBias)}
	jailbreak := &stubDetector{category: safety.CategoryJailbreak, finding: cleanFinding(safety.CategoryJailbreak)}
	quota := &stubQuota{balance: 100}
	recorder := &captureRecorder{}

	p := newTestPipeline([]detectors.Detector{toxicity, bias, jailbreak}, quota, &stubRewriter{}, recorder)

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "I will destroy you",
		TenantID: "tenant-1",
		Config:   testConfig(safety.OnFlagStrict),
	})

	require.NoError(t, err)
	assert.True(t, verdict.OverallFlagged)
	assert.Equal(t, safety.ActionBlocked, verdict.Action)
	assert.NotEmpty(t, verdict.Explanation)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, int64(3), recorder.units)
}

func TestPipeline_CleanInputTakesNoAction(t *testing.T) {
	for _, onFlag := range []safety.OnFlag{safety.OnFlagStrict, safety.OnFlagAutoCorrect, safety.OnFlagWarnOnly} {
		t.Run(string(onFlag), func(t *testing.T) {
			toxicity := &stubDetector{category: safety.CategoryToxicity, finding: cleanFinding(safety.CategoryToxicity)}
			bias := &stubDetector{category: safety.CategoryBias, finding: cleanFinding(safety.CategoryBias)}
			jailbreak := &stubDetector{category: safety.CategoryJailbreak, finding: cleanFinding(safety.CategoryJailbreak)}
			quota := &stubQuota{balance: 100}
			recorder := &captureRecorder{}

			p := newTestPipeline([]detectors.Detector{toxicity, bias, jailbreak}, quota, &stubRewriter{}, recorder)

			verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
				Response: "have a nice day",
				TenantID: "tenant-1",
				Config:   testConfig(onFlag),
			})

			require.NoError(t, err)
			assert.False(t, verdict.OverallFlagged)
			assert.Equal(t, safety.ActionNone, verdict.Action)
			assert.Empty(t, verdict.Explanation)
		})
	}
}

func TestPipeline_WarnOnlyWarns(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, finding: flaggedFinding(safety.CategoryToxicity, 0.8)}
	quota := &stubQuota{balance: 100}
	recorder := &captureRecorder{}

	cfg := testConfig(safety.OnFlagWarnOnly)
	cfg.EnableBiasCheck = false
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{toxicity}, quota, &stubRewriter{}, recorder)

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "bad text",
		TenantID: "tenant-1",
		Config:   cfg,
	})

	require.NoError(t, err)
	assert.Equal(t, safety.ActionWarned, verdict.Action)
	assert.Empty(t, verdict.RewrittenText)
}

func TestPipeline_FindingsFollowDispatchOrder(t *testing.T) {
	// Register detectors out of order and make the first category the
	// slowest responder. The findings sequence still follows category order.
	slow := &stubDetector{category: safety.CategoryToxicity, onAnalyze: func(string) (safety.Finding, error) {
		time.Sleep(20 * time.Millisecond)
		return cleanFinding(safety.CategoryToxicity), nil
	}}
	bias := &stubDetector{category: safety.CategoryBias, finding: cleanFinding(safety.CategoryBias)}
	jailbreak := &stubDetector{category: safety.CategoryJailbreak, finding: cleanFinding(safety.CategoryJailbreak)}
	quota := &stubQuota{balance: 100}

	p := newTestPipeline([]detectors.Detector{jailbreak, bias, slow}, quota, &stubRewriter{}, &captureRecorder{})

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "text",
		TenantID: "tenant-1",
		Config:   testConfig(safety.OnFlagStrict),
	})

	require.NoError(t, err)
	require.Len(t, verdict.Findings, 3)
	assert.Equal(t, safety.CategoryToxicity, verdict.Findings[0].Category)
	assert.Equal(t, safety.CategoryBias, verdict.Findings[1].Category)
	assert.Equal(t, safety.CategoryJailbreak, verdict.Findings[2].Category)
}

func TestPipeline_AutoCorrectRewritesAndRevalidates(t *testing.T) {
	passes := int32(0)
	toxicity := &stubDetector{category: safety.CategoryToxicity, onAnalyze: func(text string) (safety.Finding, error) {
		if atomic.AddInt32(&passes, 1) == 1 {
			return flaggedFinding(safety.CategoryToxicity, 0.9), nil
		}
		return cleanFinding(safety.CategoryToxicity), nil
	}}
	quota := &stubQuota{balance: 100}
	recorder := &captureRecorder{}
	rewriter := &stubRewriter{rewritten: "a calmer version"}

	cfg := testConfig(safety.OnFlagAutoCorrect)
	cfg.EnableBiasCheck = false
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{toxicity}, quota, rewriter, recorder)

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "hostile text",
		TenantID: "tenant-1",
		Config:   cfg,
	})

	require.NoError(t, err)
	assert.Equal(t, safety.ActionRewritten, verdict.Action)
	assert.Equal(t, "hostile text", verdict.OriginalText)
	assert.Equal(t, "a calmer version", verdict.RewrittenText)
	require.Len(t, verdict.RevalidationFindings, 1)
	assert.False(t, verdict.RevalidationFindings[0].Flagged)
	// one detector pass plus the rewrite plus one re-validation pass
	assert.Equal(t, int64(3), recorder.units)
}

func TestPipeline_RemediationBoundedToOneRevalidationPass(t *testing.T) {
	alwaysFlag := &stubDetector{category: safety.CategoryToxicity, finding: flaggedFinding(safety.CategoryToxicity, 0.95)}
	quota := &stubQuota{balance: 100}
	rewriter := &stubRewriter{rewritten: "still hostile"}

	cfg := testConfig(safety.OnFlagAutoCorrect)
	cfg.EnableBiasCheck = false
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{alwaysFlag}, quota, rewriter, &captureRecorder{})

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "hostile text",
		TenantID: "tenant-1",
		Config:   cfg,
	})

	require.NoError(t, err)
	assert.Equal(t, safety.ActionBlocked, verdict.Action)
	assert.Equal(t, 2, alwaysFlag.callCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&rewriter.calls))
	require.Len(t, verdict.RevalidationFindings, 1)
	assert.True(t, verdict.RevalidationFindings[0].Flagged)
}

func TestPipeline_RemediationUnavailableEscalatesToBlocked(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, finding: flaggedFinding(safety.CategoryToxicity, 0.9)}
	quota := &stubQuota{balance: 100}
	rewriter := &stubRewriter{err: &safety.RemediationUnavailableError{Err: errors.New("model down")}}

	cfg := testConfig(safety.OnFlagAutoCorrect)
	cfg.EnableBiasCheck = false
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{toxicity}, quota, rewriter, &captureRecorder{})

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "hostile text",
		TenantID: "tenant-1",
		Config:   cfg,
	})

	require.NoError(t, err)
	assert.Equal(t, safety.ActionBlocked, verdict.Action)
	assert.Empty(t, verdict.RewrittenText)
	assert.Equal(t, 1, toxicity.callCount())
}

func TestPipeline_QuotaExceededAbortsBeforeDispatch(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, finding: cleanFinding(safety.CategoryToxicity)}
	quota := &stubQuota{balance: 1}
	recorder := &captureRecorder{}

	p := newTestPipeline([]detectors.Detector{toxicity, &stubDetector{category: safety.CategoryBias}, &stubDetector{category: safety.CategoryJailbreak}}, quota, &stubRewriter{}, recorder)

	_, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "text",
		TenantID: "tenant-1",
		Config:   testConfig(safety.OnFlagStrict),
	})

	assert.ErrorIs(t, err, safety.ErrQuotaExceeded)
	assert.Equal(t, 0, toxicity.callCount())
	assert.Equal(t, 0, recorder.calls)
}

func TestPipeline_UnavailableDetectorFailsOpenButVisible(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, err: &safety.DetectorUnavailableError{
		Category: safety.CategoryToxicity,
		Err:      errors.New("upstream timeout"),
	}}
	bias := &stubDetector{category: safety.CategoryBias, finding: cleanFinding(safety.CategoryBias)}
	quota := &stubQuota{balance: 100}

	cfg := testConfig(safety.OnFlagWarnOnly)
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{toxicity, bias}, quota, &stubRewriter{}, &captureRecorder{})

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "text",
		TenantID: "tenant-1",
		Config:   cfg,
	})

	require.NoError(t, err)
	require.Len(t, verdict.Findings, 2)
	assert.False(t, verdict.Findings[0].Flagged)
	assert.True(t, verdict.Findings[0].Unavailable())
	assert.False(t, verdict.OverallFlagged)
	assert.Equal(t, safety.ActionNone, verdict.Action)
}

func TestPipeline_FailedDetectorConsumesNoQuota(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, err: &safety.DetectorUnavailableError{
		Category: safety.CategoryToxicity,
		Err:      errors.New("upstream timeout"),
	}}
	bias := &stubDetector{category: safety.CategoryBias, finding: cleanFinding(safety.CategoryBias)}
	quota := &stubQuota{balance: 10}

	cfg := testConfig(safety.OnFlagWarnOnly)
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{toxicity, bias}, quota, &stubRewriter{}, &captureRecorder{})

	_, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "text",
		TenantID: "tenant-1",
		Config:   cfg,
	})
	require.NoError(t, err)

	balance, committed, released := quota.snapshot()
	assert.Equal(t, int64(1), committed)
	assert.Equal(t, int64(1), released)
	assert.Equal(t, int64(9), balance)
}

func TestPipeline_DetectorFaultTreatedAsUnavailable(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, err: &safety.DetectorFaultError{
		Category: safety.CategoryToxicity,
		Err:      errors.New("malformed classifier payload"),
	}}
	quota := &stubQuota{balance: 10}

	cfg := testConfig(safety.OnFlagWarnOnly)
	cfg.EnableBiasCheck = false
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{toxicity}, quota, &stubRewriter{}, &captureRecorder{})

	verdict, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "text",
		TenantID: "tenant-1",
		Config:   cfg,
	})

	require.NoError(t, err)
	assert.True(t, verdict.Findings[0].Unavailable())
	_, committed, _ := quota.snapshot()
	assert.Equal(t, int64(0), committed)
}

func TestPipeline_InvalidConfigRejectedBeforeDispatch(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, finding: cleanFinding(safety.CategoryToxicity)}
	quota := &stubQuota{balance: 100}

	cfg := testConfig("lenient")

	p := newTestPipeline([]detectors.Detector{toxicity}, quota, &stubRewriter{}, &captureRecorder{})

	_, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
		Response: "text",
		TenantID: "tenant-1",
		Config:   cfg,
	})

	assert.True(t, safety.IsConfigurationError(err))
	assert.Equal(t, 0, toxicity.callCount())
	assert.Equal(t, 0, quota.reserves)
}

func TestPipeline_AnalyzeOnlyIsIdempotent(t *testing.T) {
	toxicity := &stubDetector{category: safety.CategoryToxicity, finding: flaggedFinding(safety.CategoryToxicity, 0.8)}
	jailbreak := &stubDetector{category: safety.CategoryJailbreak, finding: cleanFinding(safety.CategoryJailbreak)}
	quota := &stubQuota{balance: 0}
	recorder := &captureRecorder{}

	p := newTestPipeline([]detectors.Detector{toxicity, jailbreak}, quota, &stubRewriter{}, recorder)

	checks := []safety.Category{safety.CategoryToxicity, safety.CategoryJailbreak}
	first, err := p.AnalyzeOnly(context.Background(), "some text", checks)
	require.NoError(t, err)
	second, err := p.AnalyzeOnly(context.Background(), "some text", checks)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, safety.CategoryToxicity, first[0].Category)
	assert.True(t, first[0].Flagged)

	// read-only analysis never touches quota or the recorder
	assert.Equal(t, 0, quota.reserves)
	assert.Equal(t, 0, recorder.calls)
}

func TestPipeline_AnalyzeOnlyRejectsUnknownChecks(t *testing.T) {
	p := newTestPipeline([]detectors.Detector{
		&stubDetector{category: safety.CategoryToxicity, finding: cleanFinding(safety.CategoryToxicity)},
	}, &stubQuota{balance: 10}, &stubRewriter{}, &captureRecorder{})

	_, err := p.AnalyzeOnly(context.Background(), "text", []safety.Category{"sentiment"})
	assert.True(t, safety.IsConfigurationError(err))
}

func TestPipeline_ConcurrentRunsShareTenantQuota(t *testing.T) {
	quota := &stubQuota{balance: 100}
	toxicity := &stubDetector{category: safety.CategoryToxicity, finding: cleanFinding(safety.CategoryToxicity)}

	cfg := testConfig(safety.OnFlagStrict)
	cfg.EnableBiasCheck = false
	cfg.EnableJailbreakCheck = false

	p := newTestPipeline([]detectors.Detector{toxicity}, quota, &stubRewriter{}, &captureRecorder{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.AnalyzeAndEnforce(context.Background(), safety.AnalysisRequest{
				Response: fmt.Sprintf("text %d", i),
				TenantID: "tenant-1",
				Config:   cfg,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	balance, committed, _ := quota.snapshot()
	assert.Equal(t, int64(90), balance)
	assert.Equal(t, int64(10), committed)
}
