package guardian

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fairsight-ai/guardian/pkg/domain/incident"
	"github.com/fairsight-ai/guardian/pkg/domain/safety"
	"github.com/fairsight-ai/guardian/pkg/infra/telemetry"
)

// Recorder receives the final verdict of every completed pipeline run exactly
// once. Implementations must not block the caller; recording failures are
// logged, never surfaced to the analyzed request.
type Recorder interface {
	Record(v *safety.Verdict, unitsConsumed int64)
}

const recorderQueueSize = 256

type recordJob struct {
	verdict       *safety.Verdict
	unitsConsumed int64
}

type asyncRecorder struct {
	logger     *logrus.Logger
	repository incident.Repository
	exporter   telemetry.Exporter
	jobs       chan recordJob
	done       chan struct{}
	closeOnce  sync.Once
}

// NewAsyncRecorder persists verdicts as incidents and, when an exporter is
// configured, streams them to telemetry. Writes happen on a background
// worker; Record drops the event with a warning if the queue is full.
func NewAsyncRecorder(logger *logrus.Logger, repository incident.Repository, exporter telemetry.Exporter) *asyncRecorder {
	r := &asyncRecorder{
		logger:     logger,
		repository: repository,
		exporter:   exporter,
		jobs:       make(chan recordJob, recorderQueueSize),
		done:       make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *asyncRecorder) Record(v *safety.Verdict, unitsConsumed int64) {
	select {
	case r.jobs <- recordJob{verdict: v, unitsConsumed: unitsConsumed}:
	default:
		r.logger.WithFields(logrus.Fields{
			"verdict_id": v.ID,
			"tenant_id":  v.TenantID,
		}).Warn("recorder queue full, dropping verdict")
	}
}

func (r *asyncRecorder) run() {
	defer close(r.done)
	for job := range r.jobs {
		r.record(job)
	}
}

func (r *asyncRecorder) record(job recordJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.repository.Save(ctx, incident.FromVerdict(*job.verdict, job.unitsConsumed)); err != nil {
		r.logger.WithError(err).WithField("verdict_id", job.verdict.ID).Error("failed to persist incident")
	}
	if r.exporter != nil {
		if err := r.exporter.Handle(ctx, telemetry.EventFromVerdict(job.verdict, job.unitsConsumed)); err != nil {
			r.logger.WithError(err).WithField("verdict_id", job.verdict.ID).Error("failed to export verdict event")
		}
	}
}

// Close drains queued jobs and stops the worker.
func (r *asyncRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.jobs)
		<-r.done
	})
}
